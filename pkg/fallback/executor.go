package fallback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/luminix/luminix/pkg/engine"
	"github.com/luminix/luminix/pkg/generations"
	"github.com/luminix/luminix/pkg/progress"
)

// DefaultTimeout bounds a single fallback invocation. Builds can be slow,
// but a command that runs longer than this is treated as stuck.
const DefaultTimeout = 30 * time.Minute

// runner abstracts process execution for tests.
type runner interface {
	// Run executes argv and returns combined output. On failure the
	// output captured so far is still returned.
	Run(ctx context.Context, argv []string) (string, error)
}

// execRunner runs real processes. Cancellation sends SIGTERM so the
// command can clean up; WaitDelay bounds how long we wait for it to obey
// before the process group is killed.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, argv []string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second

	err := cmd.Run()
	return buf.String(), err
}

// Executor runs operations through the standard system commands. Success
// for mutating operations is judged by exit status alone: their output is
// carried as detail, never parsed for meaning.
type Executor struct {
	runner  runner
	timeout time.Duration
	logger  zerolog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTimeout overrides the per-invocation timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// WithLogger sets the executor's logger.
func WithLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor creates the fallback executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		runner:  execRunner{},
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements engine.OperationExecutor.
func (e *Executor) Name() string { return engine.ExecutorFallback }

// Supports implements engine.OperationExecutor. The fallback handles
// every operation kind.
func (e *Executor) Supports(kind engine.OperationKind) bool {
	switch kind {
	case engine.OpUpdate, engine.OpRollback, engine.OpListGenerations,
		engine.OpInstall, engine.OpRemove, engine.OpSwitchGeneration:
		return true
	}
	return false
}

// Execute implements engine.OperationExecutor.
func (e *Executor) Execute(ctx context.Context, op engine.Operation, reporter *progress.Reporter) (*engine.Outcome, error) {
	switch op.Kind {
	case engine.OpInstall:
		return engine.InstallInstructions(op.Package), nil
	case engine.OpRemove:
		return engine.RemoveInstructions(op.Package), nil
	case engine.OpListGenerations:
		return e.listGenerations(ctx, op)
	case engine.OpUpdate, engine.OpRollback, engine.OpSwitchGeneration:
		return e.mutate(ctx, op, reporter)
	}
	return nil, fmt.Errorf("unsupported operation kind %q", op.Kind)
}

// mutate runs the operation's command sequence. Progress is coarse: the
// commands give no machine-readable progress, so only command boundaries
// are reported.
func (e *Executor) mutate(ctx context.Context, op engine.Operation, reporter *progress.Reporter) (*engine.Outcome, error) {
	cmds := commandsFor(op)
	if len(cmds) == 0 {
		return nil, fmt.Errorf("no command mapping for operation kind %q", op.Kind)
	}

	reporter.Report("run", 10, "running system commands")
	var lastOutput string
	for i, argv := range cmds {
		out, err := e.runOne(ctx, argv)
		if err != nil {
			return nil, err
		}
		lastOutput = out
		pct := 10 + (80*(i+1))/len(cmds)
		reporter.Report("run", pct, fmt.Sprintf("finished %s", argv[firstProgramIndex(argv)]))
	}

	reporter.Report("done", 100, "operation complete")
	outcome := &engine.Outcome{
		Message: successMessage(op),
		Data:    map[string]any{},
	}
	if trimmed := strings.TrimSpace(lastOutput); trimmed != "" {
		outcome.Data["output"] = trimmed
	}
	return outcome, nil
}

// runOne executes a single command under the hard timeout. On timeout the
// partial output is preserved in the error detail.
func (e *Executor) runOne(ctx context.Context, argv []string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Debug().Strs("argv", argv).Msg("running fallback command")
	out, err := e.runner.Run(runCtx, argv)
	if err == nil {
		return out, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return out, engine.NewTimeoutError(tail(out, 4000), err)
	}
	return out, fmt.Errorf("%s failed: %w: %s", argv[firstProgramIndex(argv)], err, tail(out, 4000))
}

func (e *Executor) listGenerations(ctx context.Context, op engine.Operation) (*engine.Outcome, error) {
	cmds := commandsFor(op)
	out, err := e.runOne(ctx, cmds[0])
	if err != nil {
		return nil, err
	}
	gens, err := parseGenerationList(out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generation listing: %w", err)
	}
	// The repository applies the same ordering and single-current checks
	// the native path gets.
	repo := generations.NewRepository(listingSource(gens))
	ordered, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to validate generation listing: %w", err)
	}
	return &engine.Outcome{
		Message:     fmt.Sprintf("This system has %d generations.", len(ordered)),
		Generations: ordered,
	}, nil
}

// listingSource adapts an already-parsed generation listing to
// generations.Source.
type listingSource []generations.Generation

func (s listingSource) Generations(context.Context) ([]generations.Generation, error) {
	return s, nil
}

func successMessage(op engine.Operation) string {
	switch op.Kind {
	case engine.OpUpdate:
		if op.DryRun {
			return "The configuration builds cleanly. No changes were activated."
		}
		return "The system was rebuilt and the new configuration is active."
	case engine.OpRollback:
		return "Rolled back to the previous generation."
	case engine.OpSwitchGeneration:
		return fmt.Sprintf("Switched to generation %d.", op.TargetGeneration)
	}
	return "Operation complete."
}

// firstProgramIndex skips a leading sudo so logs and errors name the real
// program.
func firstProgramIndex(argv []string) int {
	if len(argv) > 1 && argv[0] == "sudo" {
		return 1
	}
	return 0
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
