package commands

import (
	"github.com/spf13/cobra"

	"github.com/luminix/luminix/pkg/engine"
)

func newSwitchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "switch <generation>",
		Short: "Activate a specific generation",
		Long: `Point the system profile at the given generation and activate it.
Use 'luminix generations' to see what is available.`,
		Example: `  luminix switch 42`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(cmd, engine.Intent{
				Action: engine.ActionSwitchGeneration,
				Target: args[0],
			})
		},
	}

	return cmd
}
