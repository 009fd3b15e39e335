// Package native executes operations through the system's own rebuild
// machinery: it discovers the nixos-rebuild implementation shipped with
// the running system, builds the configuration toplevel directly, and
// activates results through the built system's activation program instead
// of shelling out to porcelain commands.
package native

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// EnvNativePath overrides the discovery search with an explicit path.
const EnvNativePath = "LUMINIX_NATIVE_PATH"

// moduleDir is the directory name that marks a usable rebuild
// implementation inside a site-packages tree.
const moduleDir = "nixos_rebuild"

// searchRoots are probed in order. The running system's sw tree comes
// first; the profile path covers setups where /run/current-system is not
// populated yet.
var searchRoots = []string{
	"/run/current-system/sw/lib/python3.13/site-packages",
	"/run/current-system/sw/lib/python3.12/site-packages",
	"/run/current-system/sw/lib/python3.11/site-packages",
	"/nix/var/nix/profiles/system/sw/lib/python3.13/site-packages",
	"/nix/var/nix/profiles/system/sw/lib/python3.12/site-packages",
}

// Capability is the immutable result of discovery. It is probed once at
// startup and injected into the executor; availability never changes for
// the life of the process, so behavior stays predictable mid-session.
type Capability struct {
	// Available reports whether the native machinery was found.
	Available bool

	// ModulePath is the directory the rebuild implementation lives in,
	// when available.
	ModulePath string
}

// Discover probes for the native rebuild machinery. The environment
// override wins when set; otherwise the known system locations are
// checked in order.
func Discover(logger zerolog.Logger) Capability {
	if override := os.Getenv(EnvNativePath); override != "" {
		if dirExists(filepath.Join(override, moduleDir)) {
			logger.Info().Str("path", override).Msg("native rebuild machinery found via override")
			return Capability{Available: true, ModulePath: override}
		}
		logger.Warn().Str("path", override).
			Msg(fmt.Sprintf("%s is set but contains no %s module", EnvNativePath, moduleDir))
		return Capability{}
	}

	for _, root := range searchRoots {
		if dirExists(filepath.Join(root, moduleDir)) {
			logger.Info().Str("path", root).Msg("native rebuild machinery found")
			return Capability{Available: true, ModulePath: root}
		}
	}

	logger.Info().Msg("native rebuild machinery not found, falling back to commands")
	return Capability{}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
