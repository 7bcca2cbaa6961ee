package di

import (
	"reflect"

	"github.com/jmreid/di-bridge/internal/errors"
)

type funcService struct {
	t             reflect.Type
	aliases       []reflect.Type
	fn            reflect.Value
	lifetime      Lifetime
	key           any
	deps          []serviceKey
	closerFactory closerFactory
}

func newFuncService(fn any, opts ...ServiceOption) (*funcService, error) {
	fnType := reflect.TypeOf(fn)
	fnVal := reflect.ValueOf(fn)

	// Get the return type
	var t reflect.Type
	if fnType.NumOut() == 1 {
		t = fnType.Out(0)
	} else if fnType.NumOut() == 2 && fnType.Out(1) == typeError {
		t = fnType.Out(0)
	} else {
		return nil, errors.New("function must return T or (T, error)")
	}

	if err := validateServiceType(t); err != nil {
		return nil, err
	}

	// Get the dependencies
	var deps []serviceKey
	if fnType.NumIn() > 0 {
		deps = make([]serviceKey, fnType.NumIn())
		for i := 0; i < fnType.NumIn(); i++ {
			deps[i] = serviceKey{
				Type: fnType.In(i),
			}
		}
	}

	svc := &funcService{
		t:             t,
		deps:          deps,
		fn:            fnVal,
		closerFactory: getCloser,
	}

	// Apply options
	var errs errors.MultiError
	for _, opt := range opts {
		err := opt.applyService(svc)
		errs = errs.Append(err)
	}

	return svc, errs.Join()
}

func (s *funcService) Type() reflect.Type {
	return s.t
}

func (s *funcService) Lifetime() Lifetime {
	return s.lifetime
}

func (s *funcService) setLifetime(l Lifetime) {
	s.lifetime = l
}

func (s *funcService) Aliases() []reflect.Type {
	return s.aliases
}

func (s *funcService) AddAlias(alias reflect.Type) error {
	if !s.t.AssignableTo(alias) {
		return errors.Errorf("type %s not assignable to %s", s.t, alias)
	}

	s.aliases = append(s.aliases, alias)
	return nil
}

func (s *funcService) Key() any {
	return s.key
}

func (s *funcService) setKey(key any) {
	s.key = key
}

func (s *funcService) Dependencies() []serviceKey {
	return s.deps
}

// IsVariadic reports whether the constructor function is variadic.
// The variadic argument is treated as an optional dependency.
func (s *funcService) IsVariadic() bool {
	return s.fn.Type().IsVariadic()
}

func (s *funcService) New(deps []reflect.Value) (any, error) {
	var out []reflect.Value

	// Call the function
	if s.fn.Type().IsVariadic() {
		out = s.fn.CallSlice(deps)
	} else {
		out = s.fn.Call(deps)
	}

	// Extract the return value and error, if any
	val := out[0].Interface()

	var err error
	if len(out) == 2 && !out[1].IsNil() {
		err = out[1].Interface().(error)
	}

	return val, err
}

func (s *funcService) CloserFor(val any) Closer {
	if val == nil || s.closerFactory == nil {
		return nil
	}

	return s.closerFactory(val)
}

func (s *funcService) setCloserFactory(cf closerFactory) {
	s.closerFactory = cf
}

var _ service = (*funcService)(nil)
