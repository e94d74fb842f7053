package cmd

import (
	"fmt"

	"inboxsync/internal/remote"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Check the GitHub token and repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.GitHub.Validate(); err != nil {
			return fmt.Errorf("invalid github config: %w", err)
		}

		client, err := remote.NewClient(cmd.Context(), remote.OptionsFromConfig(cfg))
		if err != nil {
			return err
		}

		res := client.TestConnection(cmd.Context())
		if !res.Success {
			return fmt.Errorf("connection failed: %s", res.Error)
		}

		fmt.Printf("connected as %s to %s\n", res.User, res.Repository)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
