package di

import (
	"errors"
)

var (
	// ErrServiceNotRegistered is returned when no service is registered for the
	// requested service key.
	ErrServiceNotRegistered = errors.New("service not registered")

	// ErrDependencyCycle is returned when a dependency cycle is detected.
	ErrDependencyCycle = errors.New("dependency cycle detected")

	// ErrScopeDisposed is returned when a resolution is attempted against a
	// [Scope] that has been closed. This indicates a programming error: the
	// scope escaped the request it belongs to.
	ErrScopeDisposed = errors.New("scope disposed")

	// ErrProviderClosed is returned when a [Provider] is used after it has been closed.
	ErrProviderClosed = errors.New("provider closed")
)
