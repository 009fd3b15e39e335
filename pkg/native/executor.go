package native

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/luminix/luminix/pkg/engine"
	"github.com/luminix/luminix/pkg/generations"
	"github.com/luminix/luminix/pkg/progress"
)

// Executor runs operations through the native system machinery. It is
// constructed with the Capability discovered at startup and never
// re-probes: availability is fixed for the life of the process.
type Executor struct {
	capability Capability
	api        SystemAPI
	repo       *generations.Repository
	bridge     *bridge
	logger     zerolog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the executor's logger.
func WithExecutorLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor creates the native executor over the given system API.
func NewExecutor(capability Capability, api SystemAPI, opts ...ExecutorOption) *Executor {
	e := &Executor{
		capability: capability,
		api:        api,
		repo:       generations.NewRepository(sourceFunc(api.Generations)),
		bridge:     newBridge(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type sourceFunc func(ctx context.Context) ([]generations.Generation, error)

func (f sourceFunc) Generations(ctx context.Context) ([]generations.Generation, error) {
	return f(ctx)
}

// Name implements engine.OperationExecutor.
func (e *Executor) Name() string { return engine.ExecutorNative }

// Supports implements engine.OperationExecutor. Install and remove never
// need the native machinery; everything else requires the discovered
// capability.
func (e *Executor) Supports(kind engine.OperationKind) bool {
	switch kind {
	case engine.OpInstall, engine.OpRemove:
		return true
	case engine.OpUpdate, engine.OpRollback, engine.OpListGenerations, engine.OpSwitchGeneration:
		return e.capability.Available
	}
	return false
}

// Execute implements engine.OperationExecutor.
func (e *Executor) Execute(ctx context.Context, op engine.Operation, reporter *progress.Reporter) (*engine.Outcome, error) {
	switch op.Kind {
	case engine.OpUpdate:
		return e.update(ctx, op, reporter)
	case engine.OpRollback:
		return e.rollback(ctx, op, reporter)
	case engine.OpListGenerations:
		return e.listGenerations(ctx)
	case engine.OpSwitchGeneration:
		return e.switchGeneration(ctx, op, reporter)
	case engine.OpInstall:
		return engine.InstallInstructions(op.Package), nil
	case engine.OpRemove:
		return engine.RemoveInstructions(op.Package), nil
	}
	return nil, fmt.Errorf("unsupported operation kind %q", op.Kind)
}

// update builds the toplevel, registers it as a new generation, and
// activates it. With DryRun set it stops after the build.
func (e *Executor) update(ctx context.Context, op engine.Operation, reporter *progress.Reporter) (*engine.Outcome, error) {
	reporter.Report("plan", 0, "preparing system update")
	reporter.Report("build", 10, "building the system configuration")

	var storePath string
	err := e.bridge.call(ctx, func() error {
		var buildErr error
		storePath, buildErr = e.api.BuildToplevel(context.WithoutCancel(ctx))
		return buildErr
	})
	if err != nil {
		return nil, err
	}
	reporter.Report("build", 70, "build finished")

	if op.DryRun {
		reporter.Report("done", 100, "dry run complete, nothing was activated")
		return &engine.Outcome{
			Message: "The configuration builds cleanly. No changes were activated.",
			Data:    map[string]any{"store_path": storePath, "dry_run": true},
		}, nil
	}

	reporter.Report("activate", 80, "activating the new configuration")
	err = e.bridge.call(ctx, func() error {
		detached := context.WithoutCancel(ctx)
		if err := e.api.SetSystemProfile(detached, storePath); err != nil {
			return err
		}
		return e.api.SwitchToConfiguration(detached, storePath, "switch")
	})
	if err != nil {
		return nil, err
	}

	reporter.Report("done", 100, "system updated")
	return &engine.Outcome{
		Message: "The system was rebuilt and the new configuration is active.",
		Data:    map[string]any{"store_path": storePath},
	}, nil
}

// rollback activates the previous generation, or an explicitly requested
// one. It verifies the switch actually happened before reporting success.
func (e *Executor) rollback(ctx context.Context, op engine.Operation, reporter *progress.Reporter) (*engine.Outcome, error) {
	reporter.Report("plan", 10, "inspecting system generations")

	before, err := e.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var target generations.Generation
	if op.TargetGeneration > 0 {
		target, err = e.repo.Find(ctx, op.TargetGeneration)
		if err != nil {
			return nil, engine.NewNotFoundError(
				fmt.Sprintf("generation %d does not exist", op.TargetGeneration), err)
		}
	} else {
		target, err = e.repo.Previous(ctx)
		if err != nil {
			return nil, engine.NewNotFoundError(
				"there is no previous generation to roll back to", err).
				WithRemediation("the current generation is the oldest one on this system")
		}
	}
	if target.Current {
		return nil, engine.NewInvalidRequestError(
			fmt.Sprintf("generation %d is already active", target.ID))
	}

	reporter.Report("activate", 50, fmt.Sprintf("switching to generation %d", target.ID))
	err = e.bridge.call(ctx, func() error {
		return e.api.ActivateGeneration(context.WithoutCancel(ctx), target.ID)
	})
	if err != nil {
		return nil, err
	}

	reporter.Report("verify", 90, "verifying the switch")
	if err := e.repo.VerifySwitch(ctx, target.ID, before); err != nil {
		return nil, err
	}

	reporter.Report("done", 100, fmt.Sprintf("now on generation %d", target.ID))
	return &engine.Outcome{
		Message: fmt.Sprintf("Rolled back to generation %d (%s).",
			target.ID, target.Timestamp.Format("2006-01-02 15:04")),
		Data: map[string]any{"generation": target.ID},
	}, nil
}

func (e *Executor) listGenerations(ctx context.Context) (*engine.Outcome, error) {
	gens, err := e.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	current, _ := e.repo.Current(ctx)
	return &engine.Outcome{
		Message:     fmt.Sprintf("This system has %d generations; generation %d is active.", len(gens), current.ID),
		Generations: gens,
	}, nil
}

// switchGeneration is rollback with a mandatory explicit target.
func (e *Executor) switchGeneration(ctx context.Context, op engine.Operation, reporter *progress.Reporter) (*engine.Outcome, error) {
	return e.rollback(ctx, engine.Operation{
		ID:               op.ID,
		Kind:             engine.OpRollback,
		TargetGeneration: op.TargetGeneration,
	}, reporter)
}
