package pipeline

import "reflect"

// Resolution is the result of overlay resolution: the value a reader should
// see, and whether that value differs from the canonical one.
type Resolution[T any] struct {
	Effective T
	Edited    bool
}

// Resolve returns the effective value for a canonical artifact and an
// optional user-edited overlay. The overlay wins whenever it exists; Edited
// is true only when the overlay actually differs from the canonical value
// (compared by value, not by reference). Deterministic and side-effect free.
func Resolve[T any](canonical T, overlay *T) Resolution[T] {
	if overlay == nil {
		return Resolution[T]{Effective: canonical}
	}
	return Resolution[T]{
		Effective: *overlay,
		Edited:    !reflect.DeepEqual(*overlay, canonical),
	}
}
