package fallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminix/luminix/pkg/engine"
	"github.com/luminix/luminix/pkg/generations"
	"github.com/luminix/luminix/pkg/native"
	"github.com/luminix/luminix/pkg/progress"
)

// pairAPI is a scripted native system API whose state mirrors the
// scripted command output given to the fallback executor, so both
// executors observe the same system.
type pairAPI struct {
	gens     []generations.Generation
	buildErr error
}

func (p *pairAPI) BuildToplevel(context.Context) (string, error) {
	if p.buildErr != nil {
		return "", p.buildErr
	}
	return "/nix/store/abc123-nixos-system", nil
}

func (p *pairAPI) SetSystemProfile(context.Context, string) error { return nil }

func (p *pairAPI) SwitchToConfiguration(context.Context, string, string) error { return nil }

func (p *pairAPI) Generations(context.Context) ([]generations.Generation, error) {
	out := make([]generations.Generation, len(p.gens))
	copy(out, p.gens)
	return out, nil
}

func (p *pairAPI) ActivateGeneration(_ context.Context, id int) error {
	for i := range p.gens {
		p.gens[i].Current = p.gens[i].ID == id
	}
	return nil
}

// pairGenerations matches sampleListing: generations 5, 6, 7 with 7
// current.
func pairGenerations() []generations.Generation {
	ts := func(day int) time.Time {
		return time.Date(2025, 10, day, 12, 0, 0, 0, time.Local)
	}
	return []generations.Generation{
		{ID: 5, Timestamp: ts(1)},
		{ID: 6, Timestamp: ts(2)},
		{ID: 7, Timestamp: ts(3), Current: true},
	}
}

func currentID(t *testing.T, gens []generations.Generation) int {
	t.Helper()
	for _, g := range gens {
		if g.Current {
			return g.ID
		}
	}
	t.Fatal("no current generation in listing")
	return 0
}

// Both execution paths must agree on success, classified error kind,
// and generation data for the same system state.
func TestFallbackMatchesNativeOutcomes(t *testing.T) {
	newNative := func(api *pairAPI) *native.Executor {
		return native.NewExecutor(
			native.Capability{Available: true, ModulePath: "/run/current-system"}, api)
	}
	ctx := context.Background()

	t.Run("update success", func(t *testing.T) {
		nOut, nErr := newNative(&pairAPI{gens: pairGenerations()}).Execute(ctx,
			engine.Operation{ID: "n1", Kind: engine.OpUpdate}, progress.NewReporter(nil))
		fOut, fErr := newTestExecutor(&fakeRunner{output: "activating the configuration..."}).Execute(ctx,
			engine.Operation{ID: "f1", Kind: engine.OpUpdate}, progress.NewReporter(nil))
		require.NoError(t, nErr)
		require.NoError(t, fErr)
		assert.Equal(t, nOut.Message, fOut.Message)
	})

	t.Run("update dry run", func(t *testing.T) {
		nOut, nErr := newNative(&pairAPI{gens: pairGenerations()}).Execute(ctx,
			engine.Operation{ID: "n1", Kind: engine.OpUpdate, DryRun: true}, progress.NewReporter(nil))
		fOut, fErr := newTestExecutor(&fakeRunner{output: "these derivations will be built:"}).Execute(ctx,
			engine.Operation{ID: "f1", Kind: engine.OpUpdate, DryRun: true}, progress.NewReporter(nil))
		require.NoError(t, nErr)
		require.NoError(t, fErr)
		assert.Equal(t, nOut.Message, fOut.Message)
	})

	t.Run("update build failure", func(t *testing.T) {
		const failure = "error: builder failed with exit code 1"
		_, nErr := newNative(&pairAPI{gens: pairGenerations(), buildErr: errors.New(failure)}).Execute(ctx,
			engine.Operation{ID: "n1", Kind: engine.OpUpdate}, progress.NewReporter(nil))
		_, fErr := newTestExecutor(&fakeRunner{output: failure, err: errors.New("exit status 1")}).Execute(ctx,
			engine.Operation{ID: "f1", Kind: engine.OpUpdate}, progress.NewReporter(nil))
		require.Error(t, nErr)
		require.Error(t, fErr)
		assert.Equal(t, engine.ErrKindBuildFailure, engine.KindOf(engine.Translate(nErr)))
		assert.Equal(t, engine.ErrKindBuildFailure, engine.KindOf(engine.Translate(fErr)))
	})

	t.Run("rollback success", func(t *testing.T) {
		nOut, nErr := newNative(&pairAPI{gens: pairGenerations()}).Execute(ctx,
			engine.Operation{ID: "n1", Kind: engine.OpRollback}, progress.NewReporter(nil))
		fOut, fErr := newTestExecutor(&fakeRunner{output: "switching profile..."}).Execute(ctx,
			engine.Operation{ID: "f1", Kind: engine.OpRollback}, progress.NewReporter(nil))
		require.NoError(t, nErr)
		require.NoError(t, fErr)
		assert.Contains(t, nOut.Message, "Rolled back")
		assert.Contains(t, fOut.Message, "Rolled back")
	})

	t.Run("generation listing", func(t *testing.T) {
		nOut, nErr := newNative(&pairAPI{gens: pairGenerations()}).Execute(ctx,
			engine.Operation{ID: "n1", Kind: engine.OpListGenerations}, progress.NewReporter(nil))
		fOut, fErr := newTestExecutor(&fakeRunner{output: sampleListing}).Execute(ctx,
			engine.Operation{ID: "f1", Kind: engine.OpListGenerations}, progress.NewReporter(nil))
		require.NoError(t, nErr)
		require.NoError(t, fErr)
		assert.Equal(t, generations.IDs(nOut.Generations), generations.IDs(fOut.Generations))
		assert.Equal(t, currentID(t, nOut.Generations), currentID(t, fOut.Generations))
	})
}
