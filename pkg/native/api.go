package native

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/luminix/luminix/pkg/generations"
)

// SystemAPI is the surface the native executor drives. The production
// implementation works directly against the profile directory and the
// built system's own activation program; tests substitute a fake.
type SystemAPI interface {
	// BuildToplevel evaluates and builds the system configuration's
	// toplevel derivation, returning its store path.
	BuildToplevel(ctx context.Context) (string, error)

	// SetSystemProfile registers storePath as a new generation of the
	// system profile.
	SetSystemProfile(ctx context.Context, storePath string) error

	// SwitchToConfiguration runs the activation program of the given
	// system closure with the given action ("switch", "dry-activate").
	SwitchToConfiguration(ctx context.Context, storePath, action string) error

	// Generations lists the system profile's generations.
	Generations(ctx context.Context) ([]generations.Generation, error)

	// ActivateGeneration points the system profile at the given
	// generation and runs its activation program.
	ActivateGeneration(ctx context.Context, id int) error
}

// commandRunner abstracts process execution for tests.
type commandRunner interface {
	// Run executes argv and returns combined output.
	Run(ctx context.Context, argv []string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, argv []string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	out := buf.String()
	if err != nil {
		return out, fmt.Errorf("failed to run %s: %w: %s", argv[0], err, strings.TrimSpace(out))
	}
	return out, nil
}

// ModuleAPI is the production SystemAPI. Generation state is read and
// flipped in process through the profile scanner; builds and activation
// go through the store tooling with fixed argv.
type ModuleAPI struct {
	scanner *generations.ProfileScanner
	runner  commandRunner
	logger  zerolog.Logger

	// nixosPath is the expression built for the system toplevel.
	nixosPath string
}

// ModuleAPIOption configures a ModuleAPI.
type ModuleAPIOption func(*ModuleAPI)

// WithScanner substitutes the profile scanner.
func WithScanner(s *generations.ProfileScanner) ModuleAPIOption {
	return func(a *ModuleAPI) { a.scanner = s }
}

// WithAPILogger sets the API's logger.
func WithAPILogger(logger zerolog.Logger) ModuleAPIOption {
	return func(a *ModuleAPI) { a.logger = logger }
}

// NewModuleAPI creates the production system API.
func NewModuleAPI(opts ...ModuleAPIOption) *ModuleAPI {
	a := &ModuleAPI{
		scanner: &generations.ProfileScanner{
			Dir:     generations.DefaultProfileDir,
			Profile: generations.DefaultProfileName,
		},
		runner:    execRunner{},
		logger:    zerolog.Nop(),
		nixosPath: "<nixpkgs/nixos>",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildToplevel builds config.system.build.toplevel and returns the
// resulting store path.
func (a *ModuleAPI) BuildToplevel(ctx context.Context) (string, error) {
	out, err := a.runner.Run(ctx, []string{
		"nix-build", a.nixosPath,
		"-A", "config.system.build.toplevel",
		"--no-out-link",
	})
	if err != nil {
		return "", fmt.Errorf("failed to build system toplevel: %w", err)
	}
	// nix-build prints one store path per line; the toplevel is the last.
	lines := strings.Fields(strings.TrimSpace(out))
	if len(lines) == 0 {
		return "", fmt.Errorf("build produced no store path")
	}
	path := lines[len(lines)-1]
	a.logger.Debug().Str("store_path", path).Msg("built system toplevel")
	return path, nil
}

// SetSystemProfile registers storePath as the profile's next generation.
func (a *ModuleAPI) SetSystemProfile(ctx context.Context, storePath string) error {
	profile := filepath.Join(a.scanner.Dir, a.scanner.Profile)
	_, err := a.runner.Run(ctx, []string{
		"nix-env", "-p", profile, "--set", storePath,
	})
	if err != nil {
		return fmt.Errorf("failed to register new generation: %w", err)
	}
	return nil
}

// SwitchToConfiguration runs the closure's own activation program.
func (a *ModuleAPI) SwitchToConfiguration(ctx context.Context, storePath, action string) error {
	program := filepath.Join(storePath, "bin", "switch-to-configuration")
	if _, err := a.runner.Run(ctx, []string{program, action}); err != nil {
		return fmt.Errorf("failed to activate configuration: %w", err)
	}
	return nil
}

// Generations lists the profile's generations via the scanner.
func (a *ModuleAPI) Generations(ctx context.Context) ([]generations.Generation, error) {
	return a.scanner.Generations(ctx)
}

// ActivateGeneration flips the profile symlink to the generation and runs
// its activation program.
func (a *ModuleAPI) ActivateGeneration(ctx context.Context, id int) error {
	path, err := a.scanner.GenerationPath(id)
	if err != nil {
		return err
	}
	if err := a.scanner.SetCurrent(id); err != nil {
		return err
	}
	return a.SwitchToConfiguration(ctx, path, "switch")
}
