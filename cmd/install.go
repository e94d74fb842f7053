package cmd

import (
	"fmt"
	"os"

	"inboxsync/internal/autostart"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Start the daemon automatically at login",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireValidConfig(); err != nil {
			return err
		}

		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		if err := autostart.New().Install(execPath); err != nil {
			return err
		}

		fmt.Println("inboxsync daemon registered for autostart")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
