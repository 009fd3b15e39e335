package native

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// bridge serializes calls into the native machinery. The underlying
// implementation holds global state and is not reentrant, so exactly one
// call may be in flight at a time.
//
// Cancellation is honored only while waiting for the slot. Once a call
// has been dispatched it runs to completion: the native machinery has no
// interruption point, and abandoning it mid-activation could leave the
// system half switched. Callers that need a bound on total time must
// apply it before dispatch.
type bridge struct {
	slot *semaphore.Weighted
}

func newBridge() *bridge {
	return &bridge{slot: semaphore.NewWeighted(1)}
}

// call runs fn in the bridge's single slot. The context is consulted
// while acquiring the slot; after dispatch the call is never abandoned,
// and call returns only when fn does.
func (b *bridge) call(ctx context.Context, fn func() error) error {
	if err := b.slot.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.slot.Release(1)

	// Deliberately no select on ctx here: fn must run to completion.
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return <-done
}
