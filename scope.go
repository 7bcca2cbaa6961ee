package di

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/jmreid/di-bridge/internal/errors"
)

// Scope is a child resolution context with a bounded lifetime, typically one
// inbound request.
//
// A Scope owns the [Scoped] instances it materializes: repeated resolution of
// the same service key within the scope returns the same instance, and the
// instances are released when the scope is closed. A Scope must be exclusively
// owned by one request-processing goroutine and never reused across requests.
//
// The zero value is not usable; create scopes with [Provider.NewScope].
type Scope struct {
	registry
	provider   *Provider
	resolved   map[service]resolveResult
	resolvedMu sync.RWMutex
	closers    []Closer
	closersMu  sync.Mutex
	disposed   atomic.Bool
}

var _ Resolver = (*Scope)(nil)

// NewScope creates a new [Scope].
//
// Services registered with the [Provider] are visible to the scope. Additional
// services can be registered with the scope itself; they are isolated from the
// provider and from sibling scopes, and are released when the scope is closed.
//
// Available options:
//   - [WithService] registers a service with a value or constructor function.
//   - [WithModule] applies a named group of options.
func (p *Provider) NewScope(opts ...ProviderOption) (*Scope, error) {
	p.closedMu.RLock()
	defer p.closedMu.RUnlock()

	if p.closed {
		return nil, errors.Wrap(ErrProviderClosed, "di.Provider.NewScope")
	}

	sc := &Scope{
		registry: newRegistry(),
		provider: p,
		resolved: make(map[service]resolveResult),
	}

	if err := sc.registry.applyOptions(opts); err != nil {
		return nil, errors.Wrap(err, "di.Provider.NewScope")
	}

	sc.closers = append(sc.closers, sc.registry.valueClosers...)

	return sc, nil
}

// Provider returns the [Provider] the scope was created from.
func (sc *Scope) Provider() *Provider {
	return sc.provider
}

// Contains returns true if the [Scope] or its [Provider] has a service
// registered for the given [reflect.Type].
//
// Available options:
//   - [WithKey] specifies the key associated with the service.
func (sc *Scope) Contains(t reflect.Type, opts ...ResolveOption) bool {
	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}

	key := serviceKey{Type: t}
	for _, opt := range opts {
		key = opt.applyServiceKey(key)
	}

	if _, found := sc.services[key]; found {
		return true
	}

	return sc.provider.Contains(t, opts...)
}

// Resolve a service of the given [reflect.Type] from the [Scope].
//
// [Scoped] services are memoized by the scope: resolving the same service key
// again returns the same instance. [Singleton] services are routed to the
// [Provider]. [Transient] services are created fresh on every call and owned
// by the caller.
//
// Resolving from a closed scope returns an error wrapping [ErrScopeDisposed]:
// the scope has escaped the request it belongs to.
//
// Available options:
//   - [WithKey] specifies the key associated with the service.
func (sc *Scope) Resolve(ctx context.Context, t reflect.Type, opts ...ResolveOption) (any, error) {
	key := serviceKey{Type: t}
	for _, opt := range opts {
		key = opt.applyServiceKey(key)
	}

	if sc.disposed.Load() {
		return nil, errors.Wrapf(ErrScopeDisposed, "di.Scope.Resolve %s", key)
	}

	val, err := sc.provider.resolveKey(ctx, sc, key, make(resolveVisitor))
	if err != nil {
		return val, errors.Wrapf(err, "di.Scope.Resolve %s", key)
	}

	return val, nil
}

func (sc *Scope) addCloser(c Closer) {
	sc.closersMu.Lock()
	sc.closers = append(sc.closers, c)
	sc.closersMu.Unlock()
}

// Close the [Scope] and release the instances it owns.
//
// Instances are released in the reverse of the order they were created.
// Errors returned from closing services are joined together.
//
// Close is idempotent: closing an already-closed scope is a no-op and
// returns nil.
func (sc *Scope) Close(ctx context.Context) error {
	if !sc.disposed.CompareAndSwap(false, true) {
		// Already disposed
		return nil
	}

	// Release in LIFO order because of dependencies
	var errs errors.MultiError
	for i := len(sc.closers) - 1; i >= 0; i-- {
		err := sc.closers[i].Close(ctx)
		errs = errs.Append(err)
	}
	sc.closers = nil

	return errs.Wrap("di.Scope.Close")
}
