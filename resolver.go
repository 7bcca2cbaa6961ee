package di

import (
	"context"
	"reflect"
)

// Resolver is the resolution boundary implemented by both [*Provider] and
// [*Scope].
//
// Code that only needs to resolve services should accept a Resolver so that
// it works the same against the root provider and against a request scope.
type Resolver interface {
	// Contains returns true if a service is registered for the given type.
	//
	// Available options:
	// 	- [WithKey] specifies the key associated with the service.
	Contains(t reflect.Type, opts ...ResolveOption) bool

	// Resolve returns a service of the given type.
	//
	// Available options:
	// 	- [WithKey] specifies the key associated with the service.
	Resolve(ctx context.Context, t reflect.Type, opts ...ResolveOption) (any, error)
}

// ResolveOption can be used when resolving services or checking for their
// presence.
//
// Available options:
//   - [WithKey]
type ResolveOption interface {
	applyServiceKey(serviceKey) serviceKey
}

// Resolve a service of type T from the [Resolver].
//
// The service must be registered; use [TryResolve] when the registration is
// optional.
func Resolve[T any](ctx context.Context, r Resolver, opts ...ResolveOption) (T, error) {
	var val T
	anyVal, err := r.Resolve(ctx, reflect.TypeFor[T](), opts...)
	if anyVal != nil {
		val = anyVal.(T)
	}

	return val, err
}

// TryResolve resolves an optionally-registered service of type T from the
// [Resolver].
//
// If no service is registered for the type (and key), TryResolve returns the
// zero value and false with no error. Failures while building a registered
// service are still reported as errors.
func TryResolve[T any](ctx context.Context, r Resolver, opts ...ResolveOption) (T, bool, error) {
	var val T

	t := reflect.TypeFor[T]()
	if !r.Contains(t, opts...) {
		return val, false, nil
	}

	anyVal, err := r.Resolve(ctx, t, opts...)
	if err != nil {
		return val, false, err
	}
	if anyVal != nil {
		val = anyVal.(T)
	}

	return val, true, nil
}

// ResolveAll resolves every registered service assignable to type T, in
// registration order.
//
// If no services are registered, ResolveAll returns an empty slice, not an
// error. Results are stable across repeated calls within the same scope.
func ResolveAll[T any](ctx context.Context, r Resolver, opts ...ResolveOption) ([]T, error) {
	anyVal, err := r.Resolve(ctx, reflect.TypeFor[[]T](), opts...)
	if err != nil {
		return nil, err
	}

	return anyVal.([]T), nil
}

// MustResolve resolves a service of type T from the [Resolver].
//
// If the service cannot be resolved, this function panics.
func MustResolve[T any](ctx context.Context, r Resolver, opts ...ResolveOption) T {
	val, err := Resolve[T](ctx, r, opts...)
	if err != nil {
		panic(err)
	}
	return val
}
