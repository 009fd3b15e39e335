package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminix/luminix/pkg/engine"
	"github.com/luminix/luminix/pkg/progress"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), Config{
		Path: filepath.Join(t.TempDir(), "journal.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func sampleResult(id string, success bool) *engine.ExecutionResult {
	r := &engine.ExecutionResult{
		OperationID: id,
		Kind:        engine.OpUpdate,
		Executor:    engine.ExecutorNative,
		Success:     success,
		Message:     "The system was rebuilt and the new configuration is active.",
		Duration:    90 * time.Second,
		StartedAt:   time.Now().Add(-time.Minute),
	}
	if !success {
		r.Message = "the configuration failed to build"
		r.Error = &engine.ErrorInfo{
			Kind:   engine.ErrKindBuildFailure,
			Detail: "error: syntax error",
		}
	}
	return r
}

func TestJournalRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, sampleResult("op-1", true), nil))
	require.NoError(t, j.Record(ctx, sampleResult("op-2", false), nil))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := map[string]Entry{}
	for _, e := range entries {
		byID[e.OperationID] = e
	}
	assert.True(t, byID["op-1"].Success)
	assert.Empty(t, byID["op-1"].ErrorKind)
	assert.False(t, byID["op-2"].Success)
	assert.Equal(t, string(engine.ErrKindBuildFailure), byID["op-2"].ErrorKind)
	assert.Equal(t, 90*time.Second, byID["op-1"].Duration)
}

func TestJournalRecentLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r := sampleResult(string(rune('a'+i)), true)
		r.StartedAt = time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, j.Record(ctx, r, nil))
	}

	entries, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, "e", entries[0].OperationID)
	assert.Equal(t, "d", entries[1].OperationID)
}

func TestJournalProgressTrail(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	events := []progress.Event{
		{Phase: "build", Percent: 10, Message: "building", Timestamp: base},
		{Phase: "activate", Percent: 80, Message: "activating", Timestamp: base.Add(time.Minute)},
		{Phase: "done", Percent: 100, Message: "done", Timestamp: base.Add(2 * time.Minute)},
	}
	require.NoError(t, j.Record(ctx, sampleResult("op-1", true), events))

	trail, err := j.ProgressTrail(ctx, "op-1")
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, "build", trail[0].Phase)
	assert.Equal(t, 100, trail[2].Percent)

	empty, err := j.ProgressTrail(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestJournalReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, sampleResult("op-1", true), nil))
	require.NoError(t, j.Close())

	j, err = Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
