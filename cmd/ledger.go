package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"inboxsync/internal/daemon"
	"inboxsync/internal/logger"

	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or prune the record of synced files",
}

var ledgerCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Drop ledger records older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		var resp struct {
			Removed int `json:"removed"`
		}

		_, err := callDaemon(http.MethodPost, "/ledger/cleanup", &resp)
		if errors.Is(err, errDaemonDown) {
			resp.Removed, err = localCleanup(cmd.Context())
		}
		if err != nil {
			return err
		}

		fmt.Printf("removed %d record(s)\n", resp.Removed)
		return nil
	},
}

var ledgerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every synced file so the next sync imports them again",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		_, err := callDaemon(http.MethodPost, "/ledger/reset", nil)
		if errors.Is(err, errDaemonDown) {
			err = localReset(cmd.Context())
		}
		if err != nil {
			return err
		}

		fmt.Println("ledger reset")
		return nil
	},
}

func localCleanup(ctx context.Context) (int, error) {
	l, closeLedger, err := daemon.OpenLedger(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer closeLedger()

	removed := l.Cleanup()
	return removed, l.Save(ctx)
}

func localReset(ctx context.Context) error {
	l, closeLedger, err := daemon.OpenLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	return l.Reset(ctx)
}

func init() {
	ledgerCmd.AddCommand(ledgerCleanupCmd, ledgerResetCmd)
	rootCmd.AddCommand(ledgerCmd)
}
