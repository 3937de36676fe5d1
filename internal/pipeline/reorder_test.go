package pipeline

import (
	"context"
	"errors"
	"testing"
)

func TestReorderRoundTrip(t *testing.T) {
	var confirmed [][]string
	r := NewReorderer([]string{"1", "2", "3", "4", "5"}, func(_ context.Context, order []string) error {
		confirmed = append(confirmed, append([]string(nil), order...))
		return nil
	})

	next := []string{"3", "1", "4", "2", "5"}
	display, err := r.Reorder(context.Background(), next)
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if !sameOrder(display, next) {
		t.Fatalf("display order %v, want %v", display, next)
	}
	if len(confirmed) != 1 || !sameOrder(confirmed[0], next) {
		t.Fatalf("confirmation write order %v", confirmed)
	}
	if !sameOrder(r.Display(), next) {
		t.Fatalf("confirmed order not promoted: %v", r.Display())
	}
}

func TestReorderRollbackOnFailure(t *testing.T) {
	original := []string{"1", "2", "3", "4", "5"}
	r := NewReorderer(original, func(context.Context, []string) error {
		return errors.New("write failed")
	})

	display, err := r.Reorder(context.Background(), []string{"3", "1", "4", "2", "5"})
	if err == nil {
		t.Fatalf("expected confirmation failure")
	}
	if !sameOrder(display, original) {
		t.Fatalf("display did not snap back to server order: %v", display)
	}
	if !sameOrder(r.Display(), original) {
		t.Fatalf("state kept optimistic order after failure: %v", r.Display())
	}
}

func TestReorderSamePositionIsNoOp(t *testing.T) {
	calls := 0
	order := []string{"1", "2", "3"}
	r := NewReorderer(order, func(context.Context, []string) error {
		calls++
		return nil
	})

	display, err := r.Reorder(context.Background(), []string{"1", "2", "3"})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if calls != 0 {
		t.Fatalf("no-op drop fired %d confirmation writes", calls)
	}
	if !sameOrder(display, order) {
		t.Fatalf("display changed on no-op: %v", display)
	}
}

func TestReorderSupersededResponseIgnored(t *testing.T) {
	r := NewReorderer([]string{"1", "2", "3"}, nil)
	first := make(chan error, 1)
	release := make(chan struct{})
	started := make(chan struct{})
	r.confirm = func(_ context.Context, order []string) error {
		if sameOrder(order, []string{"2", "1", "3"}) {
			close(started)
			<-release
			// Stale failure for the first write; a newer reorder has
			// already superseded it.
			return errors.New("timeout")
		}
		return nil
	}

	go func() {
		_, err := r.Reorder(context.Background(), []string{"2", "1", "3"})
		first <- err
	}()
	<-started

	display, err := r.Reorder(context.Background(), []string{"3", "2", "1"})
	if err != nil {
		t.Fatalf("second reorder: %v", err)
	}
	if !sameOrder(display, []string{"3", "2", "1"}) {
		t.Fatalf("second reorder not applied: %v", display)
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("superseded write surfaced an error: %v", err)
	}
	if !sameOrder(r.Display(), []string{"3", "2", "1"}) {
		t.Fatalf("stale response reverted newer state: %v", r.Display())
	}
}

func TestOrderStateInvalidate(t *testing.T) {
	s := NewOrderState([]string{"1", "2", "3"})
	if !s.Apply([]string{"3", "2", "1"}) {
		t.Fatalf("apply reported no-op")
	}
	if !s.Dirty() {
		t.Fatalf("expected pending state")
	}

	// A server-side change arrives mid-drag: optimistic state is dropped.
	s.Invalidate([]string{"1", "2", "3", "4"})
	if s.Dirty() {
		t.Fatalf("pending state survived invalidation")
	}
	if got := s.Display(); !sameOrder(got, []string{"1", "2", "3", "4"}) {
		t.Fatalf("display %v after invalidation", got)
	}
}
