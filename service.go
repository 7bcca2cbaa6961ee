package di

import (
	"fmt"
	"reflect"

	"github.com/jmreid/di-bridge/internal/errors"
)

// serviceKey identifies a registration family: a service type plus an
// optional discriminator key.
type serviceKey struct {
	Type reflect.Type
	Key  any
}

func (k serviceKey) String() string {
	if k.Key == nil {
		return k.Type.String()
	}
	return fmt.Sprintf("%s (key=%v)", k.Type, k.Key)
}

// service is a single registration within a Provider or Scope.
type service interface {
	Type() reflect.Type
	Aliases() []reflect.Type
	AddAlias(alias reflect.Type) error
	Lifetime() Lifetime
	setLifetime(Lifetime)
	Key() any
	setKey(any)
	Dependencies() []serviceKey
	New(deps []reflect.Value) (any, error)
	CloserFor(val any) Closer
	setCloserFactory(closerFactory)
}

// WithService registers the provided function or value when calling
// [NewProvider] or [Provider.NewScope].
//
// If a function is provided, it will be called to create the service when resolved.
//
// The function can take any number of arguments which will also be resolved. The
// function may also accept a [context.Context]. A slice argument resolves to all
// registered services of the element type, in registration order. A variadic
// argument is treated as optional.
//
// The function must return a service, or the service and an error.
// The service is registered as the return type of the function (struct, pointer, or interface).
//
// If a resolved function service implements [Closer], or a compatible Close
// method signature, it is closed when the owning [Provider] or [Scope] is closed.
//
// If a value is provided, it is returned as the service when resolved. The value
// is registered as its concrete type and is always a singleton. Value services
// are not closed by default; use [WithCloser] or [WithCloseFunc] to opt in.
//
// Available options:
//   - [Lifetime] specifies how service instances are created and owned.
//   - [As] registers the service under an additional interface type.
//   - [WithKey] specifies a key to differentiate between services of the same type.
//   - [WithKeyed] specifies a key for a service dependency.
//   - [WithCloseFunc] specifies a function to be called when the service is closed.
//   - [IgnoreCloser] specifies that the service should not be closed.
//   - [WithCloser] specifies that the service should be closed if it implements
//     [Closer] or a compatible method signature.
func WithService(funcOrValue any, opts ...ServiceOption) ProviderOption {
	return newProviderOption(orderService, func(r *registry) error {
		if funcOrValue == nil {
			return errors.New("with service: funcOrValue is nil")
		}

		if _, ok := funcOrValue.(ServiceOption); ok {
			return errors.Errorf("with service %T: unexpected ServiceOption as funcOrValue", funcOrValue)
		}

		t := reflect.TypeOf(funcOrValue)

		var svc service
		var err error
		if t.Kind() == reflect.Func {
			svc, err = newFuncService(funcOrValue, opts...)
		} else {
			svc, err = newValueService(funcOrValue, opts...)
		}

		if err != nil {
			return errors.Wrapf(err, "with service %T", funcOrValue)
		}

		r.register(svc)
		return nil
	})
}

func validateServiceType(t reflect.Type) error {
	switch t {
	// These types have special meaning to the resolver.
	case typeContext, typeError:
		return errors.New("invalid service type")
	}

	switch t.Kind() {
	case reflect.Interface,
		reflect.Ptr,
		reflect.Struct:
		return nil
	}

	return errors.New("invalid service type")
}

// ServiceOption is used to configure a service registration when calling [WithService].
type ServiceOption interface {
	applyService(service) error
}

type serviceOption func(service) error

func (o serviceOption) applyService(s service) error {
	return o(s)
}

// As registers the service under the additional type T, which must be an
// interface the service type implements.
//
// Example:
//
//	p, err := di.NewProvider(
//		// Register *MemRepo as both *MemRepo and Repo
//		di.WithService(NewMemRepo, di.As[Repo](), di.Scoped),
//	)
func As[T any]() ServiceOption {
	return serviceOption(func(s service) error {
		alias := reflect.TypeFor[T]()
		if err := s.AddAlias(alias); err != nil {
			return errors.Wrap(err, "as")
		}
		return nil
	})
}
