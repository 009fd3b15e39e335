// Package progress provides the ordered progress-event stream emitted by
// long-running system operations. Events are push-only: executors report
// checkpoints through a Reporter, which guarantees the delivery invariants
// callers rely on (non-decreasing percent, strictly increasing timestamps,
// emission order preserved).
package progress

import (
	"sync"
	"time"
)

// Event is a single progress update for one operation.
type Event struct {
	// Phase is a short machine-friendly label for the current stage
	// (e.g. "build", "activate").
	Phase string `json:"phase"`

	// Percent is the overall completion estimate, 0..100.
	Percent int `json:"percent"`

	// Message is a human-readable description of the current stage.
	Message string `json:"message"`

	// Timestamp is taken from the monotonic clock at emission time.
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives progress events in emission order.
// Implementations must not block for long; the Reporter calls Emit
// synchronously from the executing operation.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

// Emit implements Sink.
func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard is a Sink that drops all events.
var Discard Sink = SinkFunc(func(Event) {})

// Reporter wraps a Sink and enforces the per-operation ordering invariants:
// percent never decreases, timestamps strictly increase, and events are
// rate-limited to at most one per MinInterval except for terminal (100%)
// events, which are always delivered.
type Reporter struct {
	mu          sync.Mutex
	sink        Sink
	minInterval time.Duration
	lastPercent int
	lastStamp   time.Time
	lastEmit    time.Time
	emitted     int
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithMinInterval sets the minimum time between delivered events.
// Terminal events bypass the limit.
func WithMinInterval(d time.Duration) ReporterOption {
	return func(r *Reporter) { r.minInterval = d }
}

// NewReporter creates a Reporter delivering to sink. A nil sink discards
// all events, so executors never need to nil-check.
func NewReporter(sink Sink, opts ...ReporterOption) *Reporter {
	if sink == nil {
		sink = Discard
	}
	r := &Reporter{
		sink:        sink,
		minInterval: 100 * time.Millisecond,
		lastPercent: -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report emits a progress event. Percent values below the previous event
// are clamped up; values above 100 are clamped down. Returns true if the
// event was delivered, false if the rate limiter dropped it.
func (r *Reporter) Report(phase string, percent int, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if percent < r.lastPercent {
		percent = r.lastPercent
	}
	if percent > 100 {
		percent = 100
	}

	now := time.Now()
	if percent < 100 && r.emitted > 0 && now.Sub(r.lastEmit) < r.minInterval && percent == r.lastPercent {
		return false
	}

	// Monotonic clocks can report equal readings for back-to-back events.
	if !now.After(r.lastStamp) {
		now = r.lastStamp.Add(time.Nanosecond)
	}

	r.lastPercent = percent
	r.lastStamp = now
	r.lastEmit = now
	r.emitted++

	r.sink.Emit(Event{
		Phase:     phase,
		Percent:   percent,
		Message:   message,
		Timestamp: now,
	})
	return true
}

// Count returns the number of events delivered so far.
func (r *Reporter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emitted
}

// ChannelSink buffers events on a channel for consumers that want to
// range over the stream. The channel is never closed by the sink; callers
// close it once the producing operation has returned its result, which is
// guaranteed to happen after the last event.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan Event, buffer)}
}

// Emit implements Sink. If the buffer is full the oldest event is dropped
// rather than blocking the operation.
func (s *ChannelSink) Emit(ev Event) {
	for {
		select {
		case s.C <- ev:
			return
		default:
			select {
			case <-s.C:
			default:
			}
		}
	}
}

// Tee fans each event out to every non-nil sink.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ev Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(ev)
			}
		}
	})
}

// Collector is a Sink that records every event it receives. Intended for
// tests and for the operation journal.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink.
func (c *Collector) Emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a copy of the recorded events in emission order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
