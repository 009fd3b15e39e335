// Package generations provides a typed, ordered view over NixOS system
// generation history. The read path has no side effects; generation state
// is owned by the system profile and is re-queried on every call rather
// than cached, so the view always reflects what the system is running.
package generations

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Generation is one immutable, numbered snapshot of system configuration
// state. Exactly one generation is current at any time.
type Generation struct {
	// ID is the generation number. IDs are assigned by the system
	// profile and increase monotonically.
	ID int `json:"id"`

	// Timestamp is when the generation was created.
	Timestamp time.Time `json:"timestamp"`

	// Current indicates whether the system is presently running this
	// generation.
	Current bool `json:"current"`

	// Description is optional free-form metadata attached to the
	// generation, empty when the system records none.
	Description string `json:"description,omitempty"`
}

// Source lists raw generation records. Implemented by the in-process
// profile scanner (native path) and by the fallback command parser.
type Source interface {
	Generations(ctx context.Context) ([]Generation, error)
}

// Repository is the ordered view over a Source. Every List call hits the
// Source; generation state must never be cached across operations because
// mutations happen outside this process's control.
type Repository struct {
	source Source
}

// NewRepository creates a Repository over the given source.
func NewRepository(source Source) *Repository {
	return &Repository{source: source}
}

// List returns all generations sorted by ID ascending and verifies the
// single-current invariant. A history with zero or multiple current
// entries indicates a corrupted or mid-mutation profile and is rejected.
func (r *Repository) List(ctx context.Context) ([]Generation, error) {
	gens, err := r.source.Generations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	if len(gens) == 0 {
		return nil, fmt.Errorf("no generations found in system profile")
	}

	sort.Slice(gens, func(i, j int) bool { return gens[i].ID < gens[j].ID })

	current := 0
	for _, g := range gens {
		if g.Current {
			current++
		}
	}
	if current != 1 {
		return nil, fmt.Errorf("profile reports %d current generations, expected exactly 1", current)
	}

	return gens, nil
}

// Current returns the generation the system is presently running.
func (r *Repository) Current(ctx context.Context) (Generation, error) {
	gens, err := r.List(ctx)
	if err != nil {
		return Generation{}, err
	}
	for _, g := range gens {
		if g.Current {
			return g, nil
		}
	}
	// Unreachable: List enforces exactly one current entry.
	return Generation{}, fmt.Errorf("no current generation")
}

// Previous returns the generation immediately preceding current, the
// default rollback target. Returns an error when the system is already at
// its oldest generation.
func (r *Repository) Previous(ctx context.Context) (Generation, error) {
	gens, err := r.List(ctx)
	if err != nil {
		return Generation{}, err
	}
	for i, g := range gens {
		if g.Current {
			if i == 0 {
				return Generation{}, fmt.Errorf("already at oldest generation %d, nothing to roll back to", g.ID)
			}
			return gens[i-1], nil
		}
	}
	return Generation{}, fmt.Errorf("no current generation")
}

// Find returns the generation with the given ID, or an error listing the
// available IDs.
func (r *Repository) Find(ctx context.Context, id int) (Generation, error) {
	gens, err := r.List(ctx)
	if err != nil {
		return Generation{}, err
	}
	for _, g := range gens {
		if g.ID == id {
			return g, nil
		}
	}
	return Generation{}, fmt.Errorf("generation %d not found, available: %v", id, IDs(gens))
}

// VerifySwitch re-queries the source after a rollback or generation switch
// and checks that current moved to wantID and that no new generation was
// created. Rollback points current at an existing generation; the
// appearance of a new ID means something else rebuilt the system
// concurrently.
func (r *Repository) VerifySwitch(ctx context.Context, wantID int, before []Generation) error {
	after, err := r.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify switch: %w", err)
	}

	cur, ok := currentOf(after)
	if !ok || cur.ID != wantID {
		return fmt.Errorf("switch verification failed: current is %d, expected %d", cur.ID, wantID)
	}

	known := make(map[int]bool, len(before))
	for _, g := range before {
		known[g.ID] = true
	}
	for _, g := range after {
		if !known[g.ID] {
			return fmt.Errorf("switch verification failed: unexpected new generation %d", g.ID)
		}
	}
	return nil
}

// IDs returns the generation numbers of gens in order.
func IDs(gens []Generation) []int {
	ids := make([]int, len(gens))
	for i, g := range gens {
		ids[i] = g.ID
	}
	return ids
}

func currentOf(gens []Generation) (Generation, bool) {
	for _, g := range gens {
		if g.Current {
			return g, true
		}
	}
	return Generation{}, false
}
