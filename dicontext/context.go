package dicontext

import (
	"context"
	"reflect"

	"github.com/jmreid/di-bridge"
	"github.com/jmreid/di-bridge/internal/errors"
)

type scopeContextKey struct{}

// WithScope returns a new [context.Context] that carries the provided [di.Scope].
//
// The scope must be attached before any resolution against the context and
// stays valid for the life of the request it belongs to. One scope per
// request; scopes are never shared or reused across requests.
func WithScope(ctx context.Context, sc *di.Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, sc)
}

// Scope returns the [di.Scope] stored on the [context.Context], if present.
func Scope(ctx context.Context) *di.Scope {
	if sc, ok := ctx.Value(scopeContextKey{}).(*di.Scope); ok {
		return sc
	}
	return nil
}

// Provider returns the [di.Provider] behind the scope stored on the
// [context.Context], if present.
func Provider(ctx context.Context) *di.Provider {
	if sc := Scope(ctx); sc != nil {
		return sc.Provider()
	}
	return nil
}

// Resolve a service of type Service from the [di.Scope] stored on the
// [context.Context].
func Resolve[Service any](ctx context.Context, opts ...di.ResolveOption) (Service, error) {
	var val Service

	sc := Scope(ctx)
	if sc == nil {
		return val, scopeNotFound[Service]()
	}

	val, err := di.Resolve[Service](ctx, sc, opts...)
	return val, errors.Wrap(err, "resolve from context")
}

// TryResolve resolves an optionally-registered service of type Service from
// the [di.Scope] stored on the [context.Context].
//
// If no service is registered for the type (and key), TryResolve returns the
// zero value and false with no error.
func TryResolve[Service any](ctx context.Context, opts ...di.ResolveOption) (Service, bool, error) {
	var val Service

	sc := Scope(ctx)
	if sc == nil {
		return val, false, scopeNotFound[Service]()
	}

	val, ok, err := di.TryResolve[Service](ctx, sc, opts...)
	return val, ok, errors.Wrap(err, "resolve from context")
}

// ResolveAll resolves every registered service assignable to type Service
// from the [di.Scope] stored on the [context.Context], in registration order.
//
// If no services are registered, ResolveAll returns an empty slice.
func ResolveAll[Service any](ctx context.Context, opts ...di.ResolveOption) ([]Service, error) {
	sc := Scope(ctx)
	if sc == nil {
		return nil, scopeNotFound[Service]()
	}

	vals, err := di.ResolveAll[Service](ctx, sc, opts...)
	return vals, errors.Wrap(err, "resolve from context")
}

// ResolveMut resolves the exclusive-access cell for a mutable service of type
// Service from the [di.Scope] stored on the [context.Context].
//
// The service must be registered as a [*di.Mut].
func ResolveMut[Service any](ctx context.Context, opts ...di.ResolveOption) (*di.Mut[Service], error) {
	return Resolve[*di.Mut[Service]](ctx, opts...)
}

// MustResolve resolves a service of type Service from the [di.Scope] stored
// on the [context.Context].
//
// If the service cannot be resolved, this function panics.
func MustResolve[Service any](ctx context.Context, opts ...di.ResolveOption) Service {
	val, err := Resolve[Service](ctx, opts...)
	if err != nil {
		panic(err)
	}
	return val
}

func scopeNotFound[Service any]() error {
	return errors.Errorf("resolve %s from context: scope not found on context",
		reflect.TypeFor[Service]())
}
