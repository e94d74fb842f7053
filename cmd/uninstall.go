package cmd

import (
	"fmt"

	"inboxsync/internal/autostart"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the login autostart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := autostart.New().Uninstall(); err != nil {
			return err
		}

		fmt.Println("inboxsync daemon autostart removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
