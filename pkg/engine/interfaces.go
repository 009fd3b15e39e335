package engine

import (
	"context"

	"github.com/luminix/luminix/pkg/generations"
	"github.com/luminix/luminix/pkg/progress"
)

// Outcome is what an executor hands back on success. The dispatcher wraps
// it into the final ExecutionResult.
type Outcome struct {
	// Message is the user-facing summary of what happened.
	Message string

	// Generations carries the generation list for list_generations.
	Generations []generations.Generation

	// Data carries operation-specific payloads.
	Data map[string]any
}

// OperationExecutor runs validated operations. The engine carries two
// implementations, native and fallback, and routes per operation.
type OperationExecutor interface {
	// Name identifies the executor in results and logs.
	Name() string

	// Supports reports whether this executor can run the given kind in
	// the current environment.
	Supports(kind OperationKind) bool

	// Execute runs the operation, reporting progress as it goes. It
	// returns either an Outcome or an error the engine will classify.
	Execute(ctx context.Context, op Operation, reporter *progress.Reporter) (*Outcome, error)
}

// Recorder persists completed operations and their progress trails.
// Recording is best effort: a recorder failure never fails the operation.
type Recorder interface {
	// Record stores a finished operation and the progress events it
	// emitted.
	Record(ctx context.Context, result *ExecutionResult, events []progress.Event) error
}

// MetricsObserver receives operation lifecycle notifications.
type MetricsObserver interface {
	// OperationStarted is called when an operation begins executing.
	OperationStarted(kind OperationKind)

	// OperationCompleted is called when an operation finishes, with its
	// result status and the executor that ran it.
	OperationCompleted(result *ExecutionResult)

	// OperationRejected is called when an operation is refused before
	// execution (busy or invalid).
	OperationRejected(kind ErrorKind)
}
