package cmd

import (
	"fmt"
	"net/http"

	"inboxsync/internal/model"

	"github.com/spf13/cobra"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Ask the running daemon to sync now",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result model.SyncResult
		status, err := callDaemon(http.MethodPost, "/sync", &result)
		if err != nil {
			return err
		}

		if status == http.StatusConflict {
			fmt.Println("a sync is already in progress")
			return nil
		}

		printResult(result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
}
