package di

import "fmt"

// Lifetime specifies how long service instances live once resolved.
//
// Available lifetimes:
//   - [Singleton] instances are created once and owned by the [Provider] for
//     the life of the process.
//   - [Scoped] instances are created once per [Scope] and released when the
//     scope is closed.
//   - [Transient] instances are created for every resolution call and owned by
//     the caller.
type Lifetime uint8

const (
	// Singleton specifies that a service is created once and subsequent requests to resolve return the same instance.
	//
	// This is the default lifetime for services.
	Singleton Lifetime = iota

	// Scoped specifies that a service is created once per scope.
	Scoped Lifetime = iota

	// Transient specifies that a service is created for each resolution call.
	Transient Lifetime = iota
)

// WithLifetime is used to configure the lifetime of a service when calling [WithService].
//
// Example:
//
//	p, err := di.NewProvider(
//		di.WithService(NewService, di.WithLifetime(di.Transient)),
//		// Lifetime can also be used directly as an option
//		di.WithService(NewService, di.Transient),
//	)
func WithLifetime(lifetime Lifetime) ServiceOption {
	return lifetime
}

func (l Lifetime) applyService(s service) error {
	s.setLifetime(l)
	return nil
}

var _ ServiceOption = Singleton

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "Singleton"
	case Scoped:
		return "Scoped"
	case Transient:
		return "Transient"
	default:
		return fmt.Sprintf("Unknown Lifetime %d", l)
	}
}
