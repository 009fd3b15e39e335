package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newCapabilitiesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Show what the engine can do in this environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			caps := a.dispatcher.Capabilities()
			caps.NativeAvailable = a.capability.Available
			caps.NativePath = a.capability.ModulePath

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(caps)
			}

			if caps.NativeAvailable {
				pterm.Success.Printfln("native rebuild machinery found at %s", caps.NativePath)
			} else {
				pterm.Warning.Println("native rebuild machinery not found, using command fallback")
			}
			fmt.Printf("native operations:   %v\n", caps.NativeKinds)
			fmt.Printf("fallback operations: %v\n", caps.FallbackKinds)
			return nil
		},
	}

	return cmd
}
