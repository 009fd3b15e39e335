package commands

import (
	"github.com/spf13/cobra"

	"github.com/luminix/luminix/pkg/engine"
)

func newRollbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback [generation]",
		Short: "Switch back to an earlier generation",
		Long: `Activate the generation before the current one. With an explicit
generation number, activate that generation instead.

The switch is verified: if the system profile did not end up on the
requested generation, the command fails.`,
		Example: `  # Back to the previous generation
  luminix rollback

  # Back to a specific generation
  luminix rollback 42`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent := engine.Intent{Action: engine.ActionRollback}
			if len(args) == 1 {
				intent.Target = args[0]
			}
			return runIntent(cmd, intent)
		},
	}

	return cmd
}
