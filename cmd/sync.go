package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"inboxsync/internal/daemon"
	"inboxsync/internal/logger"
	"inboxsync/internal/model"
	"inboxsync/internal/syncer"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync new notes once, through the daemon when it is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		if err := requireValidConfig(); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		result, err := syncOnce(ctx, localSync)
		if errors.Is(err, syncer.ErrAlreadyRunning) {
			fmt.Println("a sync is already in progress")
			return nil
		}
		if err != nil {
			return err
		}

		printResult(result)
		if !result.Success {
			return fmt.Errorf("sync finished with %d error(s)", len(result.Errors))
		}

		return nil
	},
}

// syncOnce asks the running daemon to sync so its ledger stays the only
// writer. local runs only when no daemon answers.
func syncOnce(ctx context.Context, local func(context.Context) (model.SyncResult, error)) (model.SyncResult, error) {
	var result model.SyncResult

	status, err := callDaemon(http.MethodPost, "/sync", &result)
	switch {
	case errors.Is(err, errDaemonDown):
		logger.Log.Debug("daemon not running, syncing locally", zap.Error(err))
		return local(ctx)
	case err != nil:
		return result, err
	case status == http.StatusConflict:
		return result, syncer.ErrAlreadyRunning
	case status != http.StatusOK:
		return result, fmt.Errorf("daemon refused sync: %s", http.StatusText(status))
	}

	return result, nil
}

func localSync(ctx context.Context) (model.SyncResult, error) {
	manager, closeLedger, err := daemon.NewFromConfig(ctx, cfg)
	if err != nil {
		return model.SyncResult{}, err
	}
	defer closeLedger()

	logger.Log.Info("starting one-shot sync",
		zap.String("repository", cfg.GitHub.Repository),
		zap.String("source", cfg.GitHub.SourcePath))

	return manager.Trigger(ctx, model.TriggerManual)
}

func printResult(result model.SyncResult) {
	fmt.Printf("done: %d added, %d skipped, %d errors (%dms)\n",
		result.FilesAdded, result.FilesSkipped, len(result.Errors), result.DurationMs)

	for _, e := range result.Errors {
		fmt.Printf("  ✗ %s\n", e)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
