package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luminix/luminix/pkg/engine"
)

func newGenerationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generations",
		Aliases: []string{"gens"},
		Short:   "List the system profile's generations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			result := a.dispatcher.Execute(ctx, engine.Intent{
				Action: engine.ActionListGenerations,
			}, nil)

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
				if !result.Success {
					return fmt.Errorf("operation failed: %s", result.Error.Kind)
				}
				return nil
			}

			if !result.Success {
				return renderResult(result)
			}

			rows := pterm.TableData{{"Generation", "Created", "Current", "Description"}}
			for _, gen := range result.Generations {
				current := ""
				if gen.Current {
					current = "*"
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", gen.ID),
					gen.Timestamp.Format("2006-01-02 15:04:05"),
					current,
					gen.Description,
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		},
	}

	return cmd
}
