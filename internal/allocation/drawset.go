// Package allocation implements the prize allocation engine: a
// uniform random draw over finite gift pools and the batch logic that
// turns winning registrations into reward grants.
package allocation

import (
	crand "crypto/rand"
	"errors"
	"math/big"
)

var errInvalidDrawBound = errors.New("invalid draw bound")

// secureRandomInt returns a uniform random int in [0, max) using
// crypto/rand.
func secureRandomInt(max int) (int, error) {
	if max <= 0 {
		return 0, errInvalidDrawBound
	}
	n, err := crand.Int(crand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}

// drawRandomInt is swapped out by tests for deterministic draws.
var drawRandomInt = secureRandomInt

// drawSet is a dynamic set supporting uniform random removal in O(1).
// Every element currently in the set is drawn with equal probability
// regardless of any weight it might carry elsewhere; that equal-odds
// policy is deliberate for gift pools, where remaining inventory does
// not bias the draw.  Removal swaps the drawn element with the last
// one and truncates.
type drawSet[T any] struct {
	items []T
}

func newDrawSet[T any](items []T) *drawSet[T] {
	return &drawSet[T]{items: append([]T(nil), items...)}
}

// Len returns the number of elements still in the set.
func (s *drawSet[T]) Len() int { return len(s.items) }

// Peek returns a pointer to the i-th element for in-place mutation.
func (s *drawSet[T]) Peek(i int) *T { return &s.items[i] }

// DrawIndex picks a uniform random index into the set without
// removing the element.  Callers that exhaust the element afterwards
// use RemoveAt.
func (s *drawSet[T]) DrawIndex() (int, error) {
	return drawRandomInt(len(s.items))
}

// Draw removes and returns a uniformly drawn element.
func (s *drawSet[T]) Draw() (T, error) {
	var zero T
	i, err := s.DrawIndex()
	if err != nil {
		return zero, err
	}
	v := s.items[i]
	s.RemoveAt(i)
	return v, nil
}

// RemoveAt deletes the element at index i by swapping in the last
// element, keeping subsequent draws O(1).
func (s *drawSet[T]) RemoveAt(i int) {
	last := len(s.items) - 1
	s.items[i] = s.items[last]
	s.items = s.items[:last]
}
