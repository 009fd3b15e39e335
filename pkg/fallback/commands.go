// Package fallback executes operations through the standard system
// commands when the native machinery is unavailable. Commands are built
// from fixed argv templates: user input only ever lands in a dedicated
// argv element, never in a shell string.
package fallback

import (
	"path/filepath"
	"strconv"

	"github.com/luminix/luminix/pkg/engine"
	"github.com/luminix/luminix/pkg/generations"
)

// systemProfile is the profile the fallback commands operate on.
var systemProfile = filepath.Join(generations.DefaultProfileDir, generations.DefaultProfileName)

// commandsFor maps an operation onto the argv sequence that performs it.
// Each inner slice is one process invocation, run in order.
func commandsFor(op engine.Operation) [][]string {
	switch op.Kind {
	case engine.OpUpdate:
		if op.DryRun {
			return [][]string{{"nixos-rebuild", "dry-build"}}
		}
		return [][]string{{"sudo", "nixos-rebuild", "switch"}}

	case engine.OpRollback:
		if op.TargetGeneration > 0 {
			return switchGenerationCommands(op.TargetGeneration)
		}
		return [][]string{{"sudo", "nixos-rebuild", "switch", "--rollback"}}

	case engine.OpListGenerations:
		return [][]string{{"nix-env", "--list-generations", "-p", systemProfile}}

	case engine.OpSwitchGeneration:
		return switchGenerationCommands(op.TargetGeneration)
	}
	return nil
}

func switchGenerationCommands(id int) [][]string {
	return [][]string{
		{"sudo", "nix-env", "-p", systemProfile, "--switch-generation", strconv.Itoa(id)},
		{"sudo", filepath.Join(systemProfile, "bin", "switch-to-configuration"), "switch"},
	}
}
