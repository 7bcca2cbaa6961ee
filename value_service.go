package di

import (
	"reflect"

	"github.com/jmreid/di-bridge/internal/errors"
)

type valueService struct {
	t             reflect.Type
	aliases       []reflect.Type
	val           any
	key           any
	closerFactory closerFactory
}

func newValueService(val any, opts ...ServiceOption) (*valueService, error) {
	t := reflect.TypeOf(val)

	if err := validateServiceType(t); err != nil {
		return nil, err
	}

	svc := &valueService{
		t:   t,
		val: val,
	}

	var errs errors.MultiError
	for _, opt := range opts {
		err := opt.applyService(svc)
		errs = errs.Append(err)
	}

	return svc, errs.Join()
}

func (s *valueService) Type() reflect.Type {
	return s.t
}

func (s *valueService) Aliases() []reflect.Type {
	return s.aliases
}

func (s *valueService) AddAlias(alias reflect.Type) error {
	if !s.t.AssignableTo(alias) {
		return errors.Errorf("type %s not assignable to %s", s.t, alias)
	}

	s.aliases = append(s.aliases, alias)
	return nil
}

func (s *valueService) Lifetime() Lifetime {
	return Singleton
}

func (s *valueService) setLifetime(Lifetime) {
	// Values are always singletons.
}

func (s *valueService) Key() any {
	return s.key
}

func (s *valueService) setKey(key any) {
	s.key = key
}

func (*valueService) Dependencies() []serviceKey {
	return nil
}

func (s *valueService) New([]reflect.Value) (any, error) {
	return s.val, nil
}

func (s *valueService) CloserFor(val any) Closer {
	// Value services are not closed by default.
	// The value's lifecycle usually belongs to the code that created it.
	if val != nil && s.closerFactory != nil {
		return s.closerFactory(val)
	}

	return nil
}

func (s *valueService) setCloserFactory(cf closerFactory) {
	s.closerFactory = cf
}

var _ service = (*valueService)(nil)
