package commands

import (
	"github.com/spf13/cobra"

	"github.com/luminix/luminix/pkg/engine"
)

func newInstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <package>",
		Short: "Show how to add a package to the configuration",
		Long: `Packages on this system are managed declaratively, so install does not
mutate anything. It tells you what to add to the system configuration
and where; run 'luminix update' afterwards to apply it.`,
		Example: `  luminix install htop`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(cmd, engine.Intent{
				Action: engine.ActionInstall,
				Target: args[0],
			})
		},
	}

	return cmd
}
