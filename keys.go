package di

import (
	"reflect"

	"github.com/jmreid/di-bridge/internal/errors"
)

// WithKey is used to specify the key associated with a service.
//
// WithKey can be used with:
//   - [WithService]
//   - [Resolve]
//   - [TryResolve]
//   - [ResolveAll]
//   - [Provider.Resolve]
//   - [Scope.Resolve]
func WithKey(key any) ServiceKeyOption {
	return keyOption{key}
}

// WithKeyed is used to specify a key for a service dependency when calling [WithService].
//
// This option can be used multiple times to specify keys for multiple dependencies.
//
// Example:
//
//	p, err := di.NewProvider(
//		di.WithService(db.NewPrimaryDB, di.WithKey(db.Primary)),
//		di.WithService(db.NewReplicaDB, di.WithKey(db.Replica)),
//		di.WithService(storage.NewReadWriteStore,
//			di.WithKeyed[*db.DB](db.Primary),
//		),
//		di.WithService(storage.NewReadOnlyStore,
//			di.WithKeyed[*db.DB](db.Replica),
//		),
//	)
//
// This option will return an error if the service does not have a dependency of type Dependency.
func WithKeyed[Dependency any](key any) ServiceOption {
	return depKeyOption{
		t:   reflect.TypeFor[Dependency](),
		key: key,
	}
}

// ServiceKeyOption is used to specify the key associated with a service when
// registering or resolving.
type ServiceKeyOption interface {
	ServiceOption
	ResolveOption
}

type keyOption struct {
	key any
}

func (o keyOption) applyService(s service) error {
	s.setKey(o.key)
	return nil
}

func (o keyOption) applyServiceKey(key serviceKey) serviceKey {
	return serviceKey{
		Type: key.Type,
		Key:  o.key,
	}
}

var _ ServiceKeyOption = keyOption{}

type depKeyOption struct {
	t   reflect.Type
	key any
}

// applyDeps assigns the key to the first dependency of the right type that
// does not already have a key. The slice is modified in place.
func (o depKeyOption) applyDeps(deps []serviceKey) error {
	for i := 0; i < len(deps); i++ {
		if deps[i].Type == o.t && deps[i].Key == nil {
			deps[i].Key = o.key
			return nil
		}
	}
	return errors.Errorf("with keyed %s: argument not found", o.t)
}

func (o depKeyOption) applyService(s service) error {
	return o.applyDeps(s.Dependencies())
}

var _ ServiceOption = depKeyOption{}
