package cache

import (
	"sync"
)

// Once is a process-lifetime cache that computes each key at most once.
// Callers racing on the same key wait for the single computation; callers
// on different keys never block each other. A failed computation leaves
// the key empty so that a later Get retries it.
type Once[K comparable, V any] struct {
	cells sync.Map // K -> *cell[V]
}

type cell[V any] struct {
	mu    sync.Mutex
	done  bool
	value V
}

// Get returns the cached value for key, calling compute to produce it if
// no earlier call has succeeded.
func (c *Once[K, V]) Get(key K, compute func() (V, error)) (V, error) {
	actual, _ := c.cells.LoadOrStore(key, &cell[V]{})
	ce := actual.(*cell[V])

	ce.mu.Lock()
	defer ce.mu.Unlock()

	if ce.done {
		return ce.value, nil
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	ce.value = value
	ce.done = true
	return value, nil
}

// Peek returns the value for key if it has already been computed.
func (c *Once[K, V]) Peek(key K) (V, bool) {
	var zero V
	actual, ok := c.cells.Load(key)
	if !ok {
		return zero, false
	}
	ce := actual.(*cell[V])

	ce.mu.Lock()
	defer ce.mu.Unlock()

	if !ce.done {
		return zero, false
	}
	return ce.value, true
}

// Len returns the number of computed entries
func (c *Once[K, V]) Len() int {
	n := 0
	c.cells.Range(func(_, v any) bool {
		ce := v.(*cell[V])
		ce.mu.Lock()
		if ce.done {
			n++
		}
		ce.mu.Unlock()
		return true
	})
	return n
}
