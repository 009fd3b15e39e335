package engine

import "fmt"

// ConfigFile is where declaratively managed systems keep the system
// configuration. Install and remove point the user here instead of
// mutating package state imperatively.
const ConfigFile = "/etc/nixos/configuration.nix"

// InstallInstructions builds the config-edit guidance for adding a
// package. Both executors call this, so the guidance is identical
// regardless of which path handled the request.
func InstallInstructions(pkg string) *Outcome {
	snippet := fmt.Sprintf("environment.systemPackages = with pkgs; [ %s ];", pkg)
	return &Outcome{
		Message: fmt.Sprintf("To install %s, add it to your system configuration and rebuild.", pkg),
		Data: map[string]any{
			"action":    "edit_config",
			"package":   pkg,
			"file":      ConfigFile,
			"snippet":   snippet,
			"next_step": "run an update to apply the change",
		},
	}
}

// RemoveInstructions builds the config-edit guidance for removing a
// package.
func RemoveInstructions(pkg string) *Outcome {
	return &Outcome{
		Message: fmt.Sprintf("To remove %s, delete it from environment.systemPackages in your system configuration and rebuild.", pkg),
		Data: map[string]any{
			"action":    "edit_config",
			"package":   pkg,
			"file":      ConfigFile,
			"snippet":   fmt.Sprintf("remove %q from environment.systemPackages", pkg),
			"next_step": "run an update to apply the change",
		},
	}
}
