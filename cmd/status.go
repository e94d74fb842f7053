package cmd

import (
	"fmt"
	"net/http"
	"time"

	"inboxsync/internal/model"

	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		var snap model.RunSnapshot
		if _, err := callDaemon(http.MethodGet, "/status", &snap); err != nil {
			return err
		}

		lastSync := "never"
		if snap.LastSync != nil {
			lastSync = snap.LastSync.Local().Format(timeLayout)
		}

		fmt.Printf("%-14s %s\n", "status", snap.Status)
		fmt.Printf("%-14s %s\n", "uptime", time.Since(snap.StartedAt).Round(time.Second))
		fmt.Printf("%-14s %s\n", "last sync", lastSync)
		fmt.Printf("%-14s %d\n", "synced files", snap.SyncedFiles)
		fmt.Printf("%-14s %d (%d failed, %d rejected)\n", "runs", snap.Runs, snap.Failed, snap.Rejected)

		if snap.LastResult != nil && snap.LastRun != nil {
			fmt.Printf("%-14s %s by %s: %d added, %d skipped, %d errors\n", "last run",
				snap.LastRun.Local().Format(timeLayout), snap.LastTrigger,
				snap.LastResult.FilesAdded, snap.LastResult.FilesSkipped, len(snap.LastResult.Errors))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
