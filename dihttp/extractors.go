package dihttp

import (
	"context"

	"github.com/jmreid/di-bridge"
)

// extractor is implemented by the dependency wrapper types. Each wrapper maps
// to exactly one resolution call shape against the request scope.
type extractor interface {
	extract(ctx context.Context, sc *di.Scope, opts []di.ResolveOption) error
}

// borrower is implemented by the exclusive-write wrapper types. Borrows are
// acquired after extraction, in sorted service-key order, and held for the
// duration of the handler call.
type borrower interface {
	acquire()
	release()
}

// Opt declares an optional dependency of type T in a [Handle] dependencies
// struct.
//
// If no service is registered for T, Present is false and the request
// proceeds; absence is not an error.
type Opt[T any] struct {
	Value   T
	Present bool
}

func (o *Opt[T]) extract(ctx context.Context, sc *di.Scope, opts []di.ResolveOption) error {
	val, ok, err := di.TryResolve[T](ctx, sc, opts...)
	if err != nil {
		return err
	}

	o.Value = val
	o.Present = ok
	return nil
}

// Mut declares a required exclusive-write dependency in a [Handle]
// dependencies struct. The service must be registered as a [*di.Mut].
//
// The cell is locked before the handler runs and unlocked when it returns;
// within the handler, [Mut.Value] is an exclusive reference.
type Mut[T any] struct {
	cell *di.Mut[T]
	val  *T
}

// Value returns the exclusively borrowed value. The pointer must not be
// retained after the handler returns.
func (m *Mut[T]) Value() *T {
	return m.val
}

func (m *Mut[T]) extract(ctx context.Context, sc *di.Scope, opts []di.ResolveOption) error {
	cell, err := di.Resolve[*di.Mut[T]](ctx, sc, opts...)
	if err != nil {
		return err
	}

	m.cell = cell
	return nil
}

func (m *Mut[T]) acquire() {
	m.val = m.cell.Lock()
}

func (m *Mut[T]) release() {
	m.val = nil
	m.cell.Unlock()
}

// OptMut declares an optional exclusive-write dependency in a [Handle]
// dependencies struct. The service, if registered, must be a [*di.Mut].
//
// If no service is registered, Present is false and [OptMut.Value] returns
// nil.
type OptMut[T any] struct {
	Present bool
	cell    *di.Mut[T]
	val     *T
}

// Value returns the exclusively borrowed value, or nil if the service is not
// registered. The pointer must not be retained after the handler returns.
func (m *OptMut[T]) Value() *T {
	return m.val
}

func (m *OptMut[T]) extract(ctx context.Context, sc *di.Scope, opts []di.ResolveOption) error {
	cell, ok, err := di.TryResolve[*di.Mut[T]](ctx, sc, opts...)
	if err != nil {
		return err
	}

	m.cell = cell
	m.Present = ok
	return nil
}

func (m *OptMut[T]) acquire() {
	if m.cell != nil {
		m.val = m.cell.Lock()
	}
}

func (m *OptMut[T]) release() {
	if m.cell != nil {
		m.val = nil
		m.cell.Unlock()
	}
}

// MutAll declares a collection of exclusive-write dependencies in a [Handle]
// dependencies struct: every service registered as [*di.Mut] of T, in
// registration order. An empty collection is not an error.
type MutAll[T any] struct {
	cells []*di.Mut[T]
	vals  []*T
}

// Values returns the exclusively borrowed values in registration order. The
// pointers must not be retained after the handler returns.
func (m *MutAll[T]) Values() []*T {
	return m.vals
}

func (m *MutAll[T]) extract(ctx context.Context, sc *di.Scope, opts []di.ResolveOption) error {
	cells, err := di.ResolveAll[*di.Mut[T]](ctx, sc, opts...)
	if err != nil {
		return err
	}

	m.cells = cells
	return nil
}

func (m *MutAll[T]) acquire() {
	m.vals = make([]*T, len(m.cells))
	for i, cell := range m.cells {
		m.vals[i] = cell.Lock()
	}
}

func (m *MutAll[T]) release() {
	for i := len(m.cells) - 1; i >= 0; i-- {
		m.cells[i].Unlock()
	}
	m.vals = nil
}

var (
	_ extractor = (*Opt[any])(nil)
	_ extractor = (*Mut[any])(nil)
	_ borrower  = (*Mut[any])(nil)
	_ extractor = (*OptMut[any])(nil)
	_ borrower  = (*OptMut[any])(nil)
	_ extractor = (*MutAll[any])(nil)
	_ borrower  = (*MutAll[any])(nil)
)
