package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/luminix/luminix/pkg/generations"
	"github.com/luminix/luminix/pkg/progress"
)

// Executor names used in results and logs.
const (
	ExecutorNative   = "native"
	ExecutorFallback = "fallback"
	ExecutorEngine   = "engine"
)

// Dispatcher is the engine's entry point. It validates intents, enforces
// the single-mutating-operation rule, routes operations to the native or
// fallback executor, and always returns a classified ExecutionResult.
type Dispatcher struct {
	native   OperationExecutor
	fallback OperationExecutor
	recorder Recorder
	observer MetricsObserver
	logger   zerolog.Logger

	// mutatingSlot serializes system-mutating operations. TryAcquire
	// keeps the busy path non-blocking: a second caller is told the
	// system is busy instead of being queued.
	mutatingSlot *semaphore.Weighted
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRecorder attaches an operation recorder.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithObserver attaches a metrics observer.
func WithObserver(o MetricsObserver) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// NewDispatcher creates a dispatcher routing between the given executors.
// Either executor may be nil when that path is unavailable.
func NewDispatcher(native, fallback OperationExecutor, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		native:       native,
		fallback:     fallback,
		logger:       zerolog.Nop(),
		mutatingSlot: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute validates the intent and runs the resulting operation, streaming
// progress to sink (which may be nil). It never returns an error: every
// failure is classified into the result.
func (d *Dispatcher) Execute(ctx context.Context, intent Intent, sink progress.Sink) *ExecutionResult {
	started := time.Now()

	op, err := PlanOperation(intent)
	if err != nil {
		d.logger.Warn().
			Str("action", string(intent.Action)).
			Str("target", intent.Target).
			Err(err).
			Msg("intent rejected")
		if d.observer != nil {
			d.observer.OperationRejected(ErrKindInvalidRequest)
		}
		return d.failedResult(op, started, err)
	}

	if op.Kind.Mutating() {
		if !d.mutatingSlot.TryAcquire(1) {
			d.logger.Warn().
				Str("operation_id", op.ID).
				Str("kind", string(op.Kind)).
				Msg("rejected: another mutating operation is in flight")
			if d.observer != nil {
				d.observer.OperationRejected(ErrKindBusy)
			}
			return d.failedResult(op, started, NewBusyError())
		}
		defer d.mutatingSlot.Release(1)
	}

	return d.run(ctx, op, started, sink)
}

// run executes an already-validated operation on the selected executor.
func (d *Dispatcher) run(ctx context.Context, op Operation, started time.Time, sink progress.Sink) *ExecutionResult {
	executor := d.selectExecutor(op.Kind)
	if executor == nil {
		if d.observer != nil {
			d.observer.OperationRejected(ErrKindNativeUnavailable)
		}
		return d.failedResult(op, started, NewNativeUnavailableError(op.Kind))
	}

	logger := d.logger.With().
		Str("operation_id", op.ID).
		Str("kind", string(op.Kind)).
		Str("executor", executor.Name()).
		Logger()
	logger.Info().Msg("executing operation")
	if d.observer != nil {
		d.observer.OperationStarted(op.Kind)
	}

	// Collect progress alongside delivery so the journal gets the full
	// trail even when the caller supplied no sink.
	collector := &progress.Collector{}
	reporter := progress.NewReporter(progress.Tee(sink, collector))

	outcome, err := executor.Execute(ctx, op, reporter)

	result := &ExecutionResult{
		OperationID: op.ID,
		Kind:        op.Kind,
		Executor:    executor.Name(),
		StartedAt:   started,
		Duration:    time.Since(started),
	}
	if err != nil {
		opErr := Translate(err)
		result.Success = false
		result.Message = opErr.Message
		result.Error = opErr.ToErrorInfo()
		logger.Error().
			Str("error_kind", string(opErr.Kind)).
			Err(err).
			Dur("duration", result.Duration).
			Msg("operation failed")
	} else {
		result.Success = true
		result.Message = outcome.Message
		result.Generations = outcome.Generations
		result.Data = outcome.Data
		logger.Info().
			Dur("duration", result.Duration).
			Msg("operation completed")
	}

	if d.observer != nil {
		d.observer.OperationCompleted(result)
	}
	d.record(ctx, result, collector.Events())
	return result
}

// selectExecutor picks the native path when it supports the kind, the
// fallback otherwise.
func (d *Dispatcher) selectExecutor(kind OperationKind) OperationExecutor {
	if d.native != nil && d.native.Supports(kind) {
		return d.native
	}
	if d.fallback != nil && d.fallback.Supports(kind) {
		return d.fallback
	}
	return nil
}

// record persists the result. Recorder failures are logged, never
// propagated.
func (d *Dispatcher) record(ctx context.Context, result *ExecutionResult, events []progress.Event) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Record(ctx, result, events); err != nil {
		d.logger.Warn().
			Str("operation_id", result.OperationID).
			Err(err).
			Msg("failed to record operation")
	}
}

// failedResult wraps a pre-execution rejection into a result.
func (d *Dispatcher) failedResult(op Operation, started time.Time, err error) *ExecutionResult {
	if op.ID == "" {
		// Rejected intents never got a planned operation.
		op.ID = uuid.New().String()
	}
	opErr := Translate(err)
	result := &ExecutionResult{
		OperationID: op.ID,
		Kind:        op.Kind,
		Executor:    ExecutorEngine,
		Success:     false,
		Message:     opErr.Message,
		Error:       opErr.ToErrorInfo(),
		StartedAt:   started,
		Duration:    time.Since(started),
	}
	d.record(context.Background(), result, nil)
	return result
}

// ListGenerations runs the generation listing read and returns the
// generations directly. Convenience wrapper over Execute for callers
// that only want the list.
func (d *Dispatcher) ListGenerations(ctx context.Context) ([]generations.Generation, error) {
	result := d.Execute(ctx, Intent{Action: ActionListGenerations}, nil)
	if !result.Success {
		return nil, &OpError{
			Kind:        result.Error.Kind,
			Message:     result.Error.Message,
			Detail:      result.Error.Detail,
			Remediation: result.Error.Remediation,
		}
	}
	return result.Generations, nil
}

// Capabilities reports what the dispatcher can execute in this
// environment.
func (d *Dispatcher) Capabilities() Capabilities {
	caps := Capabilities{}
	all := []OperationKind{
		OpUpdate, OpRollback, OpListGenerations,
		OpInstall, OpRemove, OpSwitchGeneration,
	}
	for _, kind := range all {
		if d.native != nil && d.native.Supports(kind) {
			caps.NativeKinds = append(caps.NativeKinds, kind)
		}
		if d.fallback != nil && d.fallback.Supports(kind) {
			caps.FallbackKinds = append(caps.FallbackKinds, kind)
		}
	}
	// Guidance-only kinds run natively everywhere; availability means the
	// rebuild machinery itself is usable.
	caps.NativeAvailable = d.native != nil && d.native.Supports(OpUpdate)
	return caps
}
