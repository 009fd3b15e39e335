package fallback

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminix/luminix/pkg/engine"
	"github.com/luminix/luminix/pkg/generations"
	"github.com/luminix/luminix/pkg/progress"
)

// fakeRunner records every argv and returns scripted results.
type fakeRunner struct {
	calls  [][]string
	output string
	err    error
	onCall func(ctx context.Context, argv []string) (string, error)
}

func (f *fakeRunner) Run(ctx context.Context, argv []string) (string, error) {
	f.calls = append(f.calls, argv)
	if f.onCall != nil {
		return f.onCall(ctx, argv)
	}
	return f.output, f.err
}

func newTestExecutor(r runner, opts ...ExecutorOption) *Executor {
	e := NewExecutor(opts...)
	e.runner = r
	return e
}

const sampleListing = `   5   2025-10-01 12:00:00
   6   2025-10-02 12:00:00
   7   2025-10-03 12:00:00   (current)
`

func TestExecutorUpdateCommand(t *testing.T) {
	r := &fakeRunner{output: "activating the configuration...\ndone"}
	e := newTestExecutor(r)

	outcome, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpUpdate},
		progress.NewReporter(nil))
	require.NoError(t, err)
	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{"sudo", "nixos-rebuild", "switch"}, r.calls[0])
	assert.Contains(t, outcome.Message, "active")
}

func TestExecutorUpdateDryRun(t *testing.T) {
	r := &fakeRunner{}
	e := newTestExecutor(r)

	_, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpUpdate, DryRun: true},
		progress.NewReporter(nil))
	require.NoError(t, err)
	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{"nixos-rebuild", "dry-build"}, r.calls[0])
}

func TestExecutorRollbackCommand(t *testing.T) {
	r := &fakeRunner{}
	e := newTestExecutor(r)

	_, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpRollback},
		progress.NewReporter(nil))
	require.NoError(t, err)
	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{"sudo", "nixos-rebuild", "switch", "--rollback"}, r.calls[0])
}

func TestExecutorSwitchGenerationRunsSequence(t *testing.T) {
	r := &fakeRunner{}
	e := newTestExecutor(r)

	_, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpSwitchGeneration, TargetGeneration: 5},
		progress.NewReporter(nil))
	require.NoError(t, err)
	require.Len(t, r.calls, 2)
	assert.Equal(t, []string{"sudo", "nix-env", "-p", "/nix/var/nix/profiles/system", "--switch-generation", "5"}, r.calls[0])
	assert.Equal(t, "switch", r.calls[1][len(r.calls[1])-1])
}

func TestExecutorMutationJudgedByExitStatusOnly(t *testing.T) {
	// Output that looks alarming is irrelevant when the exit status is
	// zero.
	r := &fakeRunner{output: "warning: error in substituter, retrying"}
	e := newTestExecutor(r)

	outcome, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpUpdate},
		progress.NewReporter(nil))
	require.NoError(t, err)
	assert.Contains(t, outcome.Data["output"], "substituter")
}

func TestExecutorMutationFailure(t *testing.T) {
	r := &fakeRunner{output: "error: builder failed with exit code 1", err: errors.New("exit status 1")}
	e := newTestExecutor(r)

	_, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpUpdate},
		progress.NewReporter(nil))
	require.Error(t, err)
	opErr := engine.Translate(err)
	assert.Equal(t, engine.ErrKindBuildFailure, opErr.Kind)
}

func TestExecutorTimeoutCarriesPartialOutput(t *testing.T) {
	r := &fakeRunner{
		onCall: func(ctx context.Context, _ []string) (string, error) {
			<-ctx.Done()
			return "building '/nix/store/abc-system.drv'...\ncopying 3 paths...", ctx.Err()
		},
	}
	e := newTestExecutor(r, WithTimeout(10*time.Millisecond))

	_, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpUpdate},
		progress.NewReporter(nil))
	require.Error(t, err)
	opErr := engine.Translate(err)
	assert.Equal(t, engine.ErrKindTimeout, opErr.Kind)
	assert.Contains(t, opErr.Detail, "copying 3 paths", "partial output must survive the timeout")
}

func TestExecutorListGenerations(t *testing.T) {
	r := &fakeRunner{output: sampleListing}
	e := newTestExecutor(r)

	outcome, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpListGenerations},
		progress.NewReporter(nil))
	require.NoError(t, err)
	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{"nix-env", "--list-generations", "-p", "/nix/var/nix/profiles/system"}, r.calls[0])
	require.Len(t, outcome.Generations, 3)
	assert.Equal(t, 5, outcome.Generations[0].ID)
	assert.True(t, outcome.Generations[2].Current)
}

func TestExecutorListGenerationsOrdersOutput(t *testing.T) {
	// nix-env output order is not trusted; the listing comes back sorted
	// by id with exactly one current entry.
	const shuffled = `   7   2025-10-03 12:00:00   (current)
   5   2025-10-01 12:00:00
   6   2025-10-02 12:00:00
`
	r := &fakeRunner{output: shuffled}
	e := newTestExecutor(r)

	outcome, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpListGenerations},
		progress.NewReporter(nil))
	require.NoError(t, err)
	require.Len(t, outcome.Generations, 3)
	assert.Equal(t, []int{5, 6, 7}, generations.IDs(outcome.Generations))
	assert.True(t, outcome.Generations[2].Current)
}

func TestExecutorListGenerationsRejectsNoCurrent(t *testing.T) {
	const noCurrent = `   5   2025-10-01 12:00:00
   6   2025-10-02 12:00:00
`
	r := &fakeRunner{output: noCurrent}
	e := newTestExecutor(r)

	_, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpListGenerations},
		progress.NewReporter(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current")
}

func TestExecutorListGenerationsUnparseable(t *testing.T) {
	r := &fakeRunner{output: "nothing useful here"}
	e := newTestExecutor(r)

	_, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpListGenerations},
		progress.NewReporter(nil))
	require.Error(t, err)
}

func TestExecutorGuidanceMatchesNativePath(t *testing.T) {
	e := newTestExecutor(&fakeRunner{})

	outcome, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpInstall, Package: "htop"},
		progress.NewReporter(nil))
	require.NoError(t, err)

	want := engine.InstallInstructions("htop")
	assert.Equal(t, want.Message, outcome.Message)
	assert.Equal(t, want.Data, outcome.Data)
}

func TestArgvIsNeverShellInterpreted(t *testing.T) {
	// A hostile target stays a single argv element all the way down.
	r := &fakeRunner{}
	e := newTestExecutor(r)

	_, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpSwitchGeneration, TargetGeneration: 5},
		progress.NewReporter(nil))
	require.NoError(t, err)
	for _, argv := range r.calls {
		for _, elem := range argv {
			assert.NotContains(t, elem, " && ")
			assert.NotContains(t, elem, ";")
		}
	}
	// And package names reach a snippet, never a command at all.
	outcome, err := e.Execute(context.Background(),
		engine.Operation{ID: "op2", Kind: engine.OpInstall, Package: "htop"},
		progress.NewReporter(nil))
	require.NoError(t, err)
	assert.Len(t, r.calls, 2, "install must not spawn commands")
	assert.Equal(t, "edit_config", outcome.Data["action"])
}

func TestExecutorProgressIsCoarseButTerminal(t *testing.T) {
	r := &fakeRunner{}
	e := newTestExecutor(r)
	collector := &progress.Collector{}

	_, err := e.Execute(context.Background(),
		engine.Operation{ID: "op1", Kind: engine.OpUpdate},
		progress.NewReporter(collector))
	require.NoError(t, err)

	events := collector.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, 100, events[len(events)-1].Percent)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent)
	}
}

func TestExecutorSupportsEverything(t *testing.T) {
	e := NewExecutor()
	for _, k := range []engine.OperationKind{
		engine.OpUpdate, engine.OpRollback, engine.OpListGenerations,
		engine.OpInstall, engine.OpRemove, engine.OpSwitchGeneration,
	} {
		assert.True(t, e.Supports(k), fmt.Sprintf("fallback should support %s", k))
	}
}
