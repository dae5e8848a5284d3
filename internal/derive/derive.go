// Package derive implements the lazy, memoized, named sequence
// primitive the resolver calls a derivation (see the "Lazy Derivation"
// component in the resolver's design). A [Seq] is defined once by a
// thunk producing an [iter.Seq], and is driven by single-threaded,
// depth-first pulls: the first consumer to range over it materializes
// and caches every element; every later consumer, including the same
// one again, replays the cache.
//
// This is deliberately not safe for concurrent pulls of the same
// [Seq] from multiple goroutines — the resolver's core is
// single-threaded and cooperative by design, so a [Seq] uses plain
// mutation rather than atomics or locks. Components that need
// concurrency (batched descriptor ingestion, diagnostic
// post-processing) do it above this layer, after a derivation has
// already materialized.
package derive

import (
	"fmt"
	"iter"
)

// state tags where a [Seq] is in its lifecycle.
type state int

const (
	stateDormant state = iota
	statePulling
	stateMaterialized
)

// Seq is a named, lazily materialized, replayable sequence of T.
type Seq[T any] struct {
	name   string
	thunk  func() iter.Seq[T]
	state  state
	cached []T
}

// New defines a derivation named name, computed on first use by
// ranging over whatever sequence thunk returns. thunk is not called
// until the first pull.
func New[T any](name string, thunk func() iter.Seq[T]) *Seq[T] {
	return &Seq[T]{name: name, thunk: thunk, state: stateDormant}
}

// Const wraps an already-known slice of values as a trivial
// derivation, useful as a leaf layer (e.g. a descriptor's explicitly
// declared dependencies, which need no further computation).
func Const[T any](name string, values []T) *Seq[T] {
	s := New(name, func() iter.Seq[T] {
		return func(yield func(T) bool) {
			for _, v := range values {
				if !yield(v) {
					return
				}
			}
		}
	})
	return s
}

func (s *Seq[T]) Name() string { return s.name }

// Seq returns an [iter.Seq] over s's elements, materializing them on
// the first call and replaying the cache thereafter.
//
// A reentrant pull — ranging over s again while its first pull is
// still materializing, whether or not elements have been emitted yet,
// which would happen if s's own thunk transitively depends on s — panics with a [CyclicDerivationError]
// rather than deadlocking or recursing forever; per the resolver's
// design this situation is always a bug in how layers were wired, not
// a condition callers should need to recover from dynamically.
func (s *Seq[T]) Seq() iter.Seq[T] {
	return func(yield func(T) bool) {
		switch s.state {
		case stateMaterialized:
			for _, v := range s.cached {
				if !yield(v) {
					return
				}
			}
			return
		case statePulling:
			panic(&CyclicDerivationError{Name: s.name})
		}
		s.state = statePulling
		cached := make([]T, 0)
		stopped := false
		for v := range s.thunk() {
			cached = append(cached, v)
			if !stopped && !yield(v) {
				// Keep materializing even after the consumer stops
				// early: a derivation is shared, and a later full
				// consumer must still see every element.
				stopped = true
			}
		}
		s.cached = cached
		s.state = stateMaterialized
	}
}

// All is a convenience for slices.Collect(s.Seq()).
func (s *Seq[T]) All() []T {
	out := make([]T, 0)
	for v := range s.Seq() {
		out = append(out, v)
	}
	return out
}

// CyclicDerivationError reports a derivation whose thunk transitively
// pulled itself before its materialization had finished.
type CyclicDerivationError struct {
	Name string
}

func (e *CyclicDerivationError) Error() string {
	return fmt.Sprintf("cyclic derivation: %q transitively depends on itself", e.Name)
}
