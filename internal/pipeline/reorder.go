package pipeline

import (
	"context"
	"sync"
)

// OrderState is the two-state record behind optimistic reordering: the last
// server-confirmed order, and the optimistic pending order (nil when none).
// Rollback is a full reset to server truth, not a one-step undo.
type OrderState[T comparable] struct {
	confirmed []T
	pending   []T
}

func NewOrderState[T comparable](confirmed []T) *OrderState[T] {
	return &OrderState[T]{confirmed: append([]T(nil), confirmed...)}
}

// Display is the order the user currently sees: pending when an optimistic
// apply is outstanding, confirmed otherwise.
func (s *OrderState[T]) Display() []T {
	if s.pending != nil {
		return append([]T(nil), s.pending...)
	}
	return append([]T(nil), s.confirmed...)
}

func (s *OrderState[T]) Confirmed() []T {
	return append([]T(nil), s.confirmed...)
}

func (s *OrderState[T]) Dirty() bool {
	return s.pending != nil
}

// Apply records an optimistic reorder. A drop onto the current display order
// is a no-op and reports false so no confirmation write is fired.
func (s *OrderState[T]) Apply(next []T) bool {
	if sameOrder(s.Display(), next) {
		return false
	}
	s.pending = append([]T(nil), next...)
	return true
}

// ConfirmSuccess promotes the pending order to confirmed.
func (s *OrderState[T]) ConfirmSuccess() {
	if s.pending != nil {
		s.confirmed = s.pending
		s.pending = nil
	}
}

// Rollback discards the pending order, falling back to the last
// server-confirmed order.
func (s *OrderState[T]) Rollback() {
	s.pending = nil
}

// Invalidate replaces the confirmed order with a fresh server copy and drops
// any in-flight optimistic state, for when the collection changed on the
// server between drag start and drop.
func (s *OrderState[T]) Invalidate(server []T) {
	s.confirmed = append([]T(nil), server...)
	s.pending = nil
}

func sameOrder[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ConfirmFunc persists a full ordered-id sequence on the server.
type ConfirmFunc[T comparable] func(ctx context.Context, order []T) error

// Reorderer runs the optimistic reorder protocol for one collection: apply
// locally first, then fire the confirming write. Confirmation writes are
// serialized per collection, and a response that arrives after a newer apply
// has superseded it is ignored so a stale success cannot revert newer local
// state.
type Reorderer[T comparable] struct {
	mu      sync.Mutex
	state   *OrderState[T]
	confirm ConfirmFunc[T]
	seq     uint64
}

func NewReorderer[T comparable](confirmed []T, confirm ConfirmFunc[T]) *Reorderer[T] {
	return &Reorderer[T]{state: NewOrderState[T](confirmed), confirm: confirm}
}

func (r *Reorderer[T]) Display() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Display()
}

// Sync replaces local state with a fresh server copy.
func (r *Reorderer[T]) Sync(server []T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Invalidate(server)
	r.seq++
}

// Reorder applies the new order optimistically and fires the confirmation
// write. On failure the display order snaps back to the last confirmed order
// and the error is returned for the caller to surface.
func (r *Reorderer[T]) Reorder(ctx context.Context, next []T) ([]T, error) {
	r.mu.Lock()
	if !r.state.Apply(next) {
		display := r.state.Display()
		r.mu.Unlock()
		return display, nil
	}
	r.seq++
	seq := r.seq
	order := r.state.Display()
	r.mu.Unlock()

	err := r.confirm(ctx, order)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq != seq {
		// A newer reorder or server sync superseded this write; its
		// outcome no longer describes current state.
		return r.state.Display(), nil
	}
	if err != nil {
		r.state.Rollback()
		return r.state.Display(), err
	}
	r.state.ConfirmSuccess()
	return r.state.Display(), nil
}
