package di

import "sync"

// NewMut returns a new [Mut] cell holding val.
func NewMut[T any](val T) *Mut[T] {
	return &Mut[T]{val: val}
}

// Mut is an exclusive-access cell for a mutable service.
//
// A service that handlers mutate is registered as a *Mut[T] so that the lock
// serializing access belongs to the registration's instance, not to any
// caller. A mutable [Singleton] is therefore safe to mutate from many
// in-flight requests: each exclusive section blocks until the previous one is
// released.
//
// Example:
//
//	p, err := di.NewProvider(
//		di.WithService(func() *di.Mut[Counter] {
//			return di.NewMut(Counter{})
//		}),
//	)
//
//	counter, err := di.Resolve[*di.Mut[Counter]](ctx, scope)
//	counter.Use(func(c *Counter) {
//		c.Hits++
//	})
type Mut[T any] struct {
	mu  sync.Mutex
	val T
}

// Use runs fn with exclusive access to the value, blocking until the cell is
// available. The pointer passed to fn must not be retained after fn returns.
func (m *Mut[T]) Use(fn func(*T)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.val)
}

// View runs fn with a copy-free read of the value. View takes the same lock as
// [Mut.Use]; reads are serialized with writes.
func (m *Mut[T]) View(fn func(T)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.val)
}

// Lock acquires exclusive access and returns a pointer to the value.
// The caller must call [Mut.Unlock] when done, and must not retain the
// pointer afterwards.
//
// When acquiring more than one cell, acquire them in a deterministic order
// ([github.com/jmreid/di-bridge/dihttp] sorts by service key) to avoid
// deadlocks.
func (m *Mut[T]) Lock() *T {
	m.mu.Lock()
	return &m.val
}

// Unlock releases exclusive access acquired with [Mut.Lock].
func (m *Mut[T]) Unlock() {
	m.mu.Unlock()
}
