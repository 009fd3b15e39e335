package commands

import (
	"github.com/spf13/cobra"

	"github.com/luminix/luminix/pkg/engine"
)

func newUpdateCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Rebuild the system and activate the result",
		Long: `Build the system configuration and switch to it.

With --dry-run the configuration is built but nothing is activated, so
you can check that it evaluates and compiles before committing to it.`,
		Example: `  # Rebuild and activate
  luminix update

  # Build only, activate nothing
  luminix update --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(cmd, engine.Intent{
				Action: engine.ActionUpdate,
				DryRun: dryRun,
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build without activating")

	return cmd
}
