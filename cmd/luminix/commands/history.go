package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently executed operations",
		Long:  `List the operations recorded in the local journal, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if a.journal == nil {
				return fmt.Errorf("the operation journal is disabled or unavailable")
			}

			entries, err := a.journal.Recent(ctx, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			rows := pterm.TableData{{"When", "Operation", "Executor", "Result", "Duration"}}
			for _, e := range entries {
				status := "ok"
				if !e.Success {
					status = e.ErrorKind
				}
				rows = append(rows, []string{
					e.StartedAt.Local().Format("2006-01-02 15:04:05"),
					e.Kind,
					e.Executor,
					status,
					e.Duration.Round(10 * time.Millisecond).String(),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")

	return cmd
}
