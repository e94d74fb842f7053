package cmd

import (
	"fmt"
	"net/http"
	"strings"

	"inboxsync/internal/model"

	"github.com/spf13/cobra"
)

var historyN int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		var runs []model.SyncRunRecord
		if _, err := callDaemon(http.MethodGet, fmt.Sprintf("/history?n=%d", historyN), &runs); err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("no history yet")
			return nil
		}

		for _, r := range runs {
			status := "✓"
			if len(r.Errors) > 0 {
				status = "✗"
			}

			fmt.Printf("%s [%s] added %-4d skipped %-4d %s\n",
				status,
				r.Timestamp.Local().Format(timeLayout),
				r.FilesAdded,
				r.FilesSkipped,
				strings.Join(r.Errors, "; "),
			)
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of history entries to show")
	rootCmd.AddCommand(historyCmd)
}
