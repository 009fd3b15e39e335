package commands

import (
	"github.com/spf13/cobra"

	"github.com/luminix/luminix/pkg/engine"
)

func newRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <package>",
		Short:   "Show how to remove a package from the configuration",
		Example: `  luminix remove htop`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(cmd, engine.Intent{
				Action: engine.ActionRemove,
				Target: args[0],
			})
		},
	}

	return cmd
}
