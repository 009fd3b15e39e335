// Package commands implements the luminix CLI.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/luminix/luminix/pkg/config"
	"github.com/luminix/luminix/pkg/engine"
	"github.com/luminix/luminix/pkg/fallback"
	"github.com/luminix/luminix/pkg/generations"
	"github.com/luminix/luminix/pkg/journal"
	"github.com/luminix/luminix/pkg/native"
	"github.com/luminix/luminix/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "luminix",
		Short: "Luminix - NixOS operation execution engine",
		Long: `Luminix executes system management operations on NixOS: rebuilding and
activating the configuration, listing and switching generations, and
rolling back.

It prefers the rebuild machinery shipped with the running system and
falls back to the standard commands when that machinery is missing.
Mutating operations are serialized: one at a time, always.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newUpdateCommand())
	rootCmd.AddCommand(newRollbackCommand())
	rootCmd.AddCommand(newGenerationsCommand())
	rootCmd.AddCommand(newSwitchCommand())
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newRemoveCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newCapabilitiesCommand())

	return rootCmd
}

// app bundles everything a command needs.
type app struct {
	cfg        *config.Config
	dispatcher *engine.Dispatcher
	journal    *journal.Journal
	capability native.Capability
	telemetry  *telemetry.Telemetry
}

// newApp wires the engine from configuration.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	telCfg := telemetry.DefaultConfig()
	telCfg.Logging.Level = cfg.Logging.Level
	telCfg.Logging.Format = cfg.Logging.Format
	telCfg.Metrics.Enabled = cfg.Metrics.Enabled
	telCfg.Metrics.ListenAddress = cfg.Metrics.ListenAddress
	telCfg.Tracing.Enabled = cfg.Tracing.Enabled
	telCfg.Tracing.Exporter = cfg.Tracing.Exporter
	telCfg.Tracing.Endpoint = cfg.Tracing.Endpoint
	tel, err := telemetry.NewTelemetry(telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	// The instance passes everything; the global floor carries the
	// configured level so a config reload can change it at runtime.
	logger := tel.Logger.Zerolog().Level(zerolog.TraceLevel)
	applyLogLevel(cfg)
	startConfigWatcher(ctx, logger)

	capability := native.Capability{}
	if !cfg.Native.Disabled {
		capability = native.Discover(logger)
	}
	tel.Metrics.SetNativeAvailable(capability.Available)

	scanner := &generations.ProfileScanner{
		Dir:     cfg.Profile.Dir,
		Profile: cfg.Profile.Name,
	}
	api := native.NewModuleAPI(
		native.WithScanner(scanner),
		native.WithAPILogger(logger),
	)
	nativeExec := native.NewExecutor(capability, api,
		native.WithExecutorLogger(logger))
	fallbackExec := fallback.NewExecutor(
		fallback.WithTimeout(cfg.Fallback.Timeout),
		fallback.WithLogger(logger))

	opts := []engine.DispatcherOption{
		engine.WithLogger(logger),
		engine.WithObserver(tel.Metrics),
	}
	var jnl *journal.Journal
	if !cfg.Journal.Disabled {
		jnl, err = journal.Open(ctx, journal.Config{Path: cfg.Journal.Path})
		if err != nil {
			// The engine works without a journal; say so and move on.
			tel.Logger.WithError(err).Warn("operation journal unavailable")
		} else {
			opts = append(opts, engine.WithRecorder(jnl))
		}
	}

	if err := tel.StartMetricsServer(); err != nil {
		logger.Warn().Err(err).Msg("failed to start metrics server")
	}

	return &app{
		cfg:        cfg,
		dispatcher: engine.NewDispatcher(nativeExec, fallbackExec, opts...),
		journal:    jnl,
		capability: capability,
		telemetry:  tel,
	}, nil
}

// applyLogLevel sets the global level floor from cfg.
func applyLogLevel(cfg *config.Config) {
	lvl, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

// startConfigWatcher reloads the config file in the background and
// applies log-level changes while a long operation runs. --verbose
// pins the level for the life of the process.
func startConfigWatcher(ctx context.Context, logger zerolog.Logger) {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return
		}
		path = p
	}
	watcher, err := config.NewWatcher(path, logger, func(next *config.Config) {
		if verbose {
			return
		}
		applyLogLevel(next)
	})
	if err != nil {
		logger.Debug().Err(err).Msg("config watcher unavailable")
		return
	}
	go watcher.Run(ctx)
}

// close releases the app's resources.
func (a *app) close() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
	_ = a.telemetry.Shutdown(context.Background())
}

// runIntent wires an app, executes one intent, renders the result, and
// maps failure onto the process exit code.
func runIntent(cmd *cobra.Command, intent engine.Intent) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, span := a.telemetry.Tracer.Start(ctx, "operation.execute")
	defer span.End()

	sink := newProgressSink(jsonOutput)
	result := a.dispatcher.Execute(ctx, intent, sink)
	sink.done()

	span.SetAttributes(
		telemetry.AttrOperationID.String(result.OperationID),
		telemetry.AttrOperationKind.String(string(result.Kind)),
		telemetry.AttrExecutor.String(result.Executor),
	)
	if result.Success {
		telemetry.RecordSuccess(span)
	} else {
		span.SetAttributes(telemetry.AttrErrorKind.String(string(result.Error.Kind)))
		telemetry.RecordError(span, errors.New(result.Message))
	}

	opLog := a.telemetry.Logger.
		WithOperationID(result.OperationID).
		WithKind(string(result.Kind)).
		WithExecutor(result.Executor)
	if gen, ok := result.Data["generation"].(int); ok {
		opLog = opLog.WithGeneration(gen)
	}
	opLog.Debug("operation finished")

	return renderResult(result)
}

// renderResult prints the result and returns an error when the operation
// failed so the process exits non-zero.
func renderResult(result *engine.ExecutionResult) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("operation failed: %s", result.Error.Kind)
		}
		return nil
	}

	if result.Success {
		fmt.Println(result.Message)
		printResultData(result)
		return nil
	}

	log.Error().
		Str("kind", string(result.Error.Kind)).
		Msg(result.Message)
	if result.Error.Detail != "" {
		fmt.Fprintln(os.Stderr, result.Error.Detail)
	}
	if result.Error.Remediation != "" {
		fmt.Fprintf(os.Stderr, "hint: %s\n", result.Error.Remediation)
	}
	return fmt.Errorf("operation failed: %s", result.Error.Kind)
}

func printResultData(result *engine.ExecutionResult) {
	if snippet, ok := result.Data["snippet"].(string); ok {
		file, _ := result.Data["file"].(string)
		fmt.Printf("\n  file:    %s\n  snippet: %s\n", file, snippet)
		if next, ok := result.Data["next_step"].(string); ok {
			fmt.Printf("  then:    %s\n", next)
		}
	}
}
