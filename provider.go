package di

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/jmreid/di-bridge/internal/errors"
)

// Provider is the root of the dependency injection graph.
//
// It is built exactly once from a finalized set of registrations, owns
// singleton instances for the life of the process, and is safe for concurrent
// resolution from many request goroutines. Per-request resolution contexts are
// created with [Provider.NewScope].
type Provider struct {
	registry
	singletons *xsync.MapOf[service, resolveResult]
	closers    []Closer
	closersMu  sync.Mutex
	closedMu   sync.RWMutex
	closed     bool
}

var _ Resolver = (*Provider)(nil)

// NewProvider creates a new [Provider] with the provided options.
//
// The registration set is validated: if a non-scoped service has an
// unregistered dependency, or any dependency cycle exists, NewProvider returns
// an error. Scoped services are exempt from the registration check because
// their dependencies may be registered per scope (see [Provider.NewScope]).
//
// Available options:
//   - [WithService] registers a service with a value or constructor function.
//   - [WithModule] applies a named group of options.
func NewProvider(opts ...ProviderOption) (*Provider, error) {
	p := &Provider{
		registry:   newRegistry(),
		singletons: xsync.NewMapOf[service, resolveResult](),
	}

	if err := p.registry.applyOptions(opts); err != nil {
		return nil, errors.Wrap(err, "di.NewProvider")
	}

	if err := p.validateDependencies(); err != nil {
		return nil, errors.Wrap(err, "di.NewProvider")
	}

	p.closers = append(p.closers, p.registry.valueClosers...)

	return p, nil
}

// ProviderOption is used to configure registrations when calling [NewProvider]
// or [Provider.NewScope].
type ProviderOption interface {
	order() optionOrder
	applyRegistry(*registry) error
}

// registry holds the service registrations for a Provider or a Scope.
// Registration order within a service key is preserved.
type registry struct {
	services map[serviceKey][]service

	// valueClosers holds closers for value services that opted in with
	// [WithCloser] or [WithCloseFunc]. They are recorded at registration so a
	// value is closed with its owner even if it is never resolved.
	valueClosers []Closer
}

func newRegistry() registry {
	return registry{
		services: make(map[serviceKey][]service),
	}
}

func (r *registry) applyOptions(opts []ProviderOption) error {
	// Flatten any modules before sorting and applying options
	opts = flattenModules(opts)

	// Stable sort by precedence: the registration order of services matters
	slices.SortStableFunc(opts, func(a, b ProviderOption) int {
		return cmp.Compare(a.order(), b.order())
	})

	var errs errors.MultiError
	for _, o := range opts {
		err := o.applyRegistry(r)
		errs = errs.Append(err)
	}

	return errs.Join()
}

func (r *registry) register(svc service) {
	if len(svc.Aliases()) == 0 {
		r.registerType(svc.Type(), svc)
	} else {
		for _, alias := range svc.Aliases() {
			r.registerType(alias, svc)
		}
	}

	// Registration only happens while the owner is being built, so no locks
	// are needed here.
	if vs, ok := svc.(*valueService); ok {
		if closer := svc.CloserFor(vs.val); closer != nil {
			r.valueClosers = append(r.valueClosers, closer)
		}
	}
}

func (r *registry) registerType(t reflect.Type, svc service) {
	key := serviceKey{
		Type: t,
		Key:  svc.Key(),
	}
	r.services[key] = append(r.services[key], svc)
}

func (p *Provider) validateDependencies() error {
	var errs errors.MultiError
	problems := make(map[service]string)

	for _, svcs := range p.services {
		for _, svc := range svcs {
			if svc.Lifetime() == Scoped {
				// Scoped services may depend on per-scope registrations
				continue
			}

			prob := p.validateService(svc, problems, make(resolveVisitor))
			if prob != "" {
				errs = errs.Append(errors.Errorf("service %s: %s", svc.Type(), prob))
			}
		}
	}

	return errs.Join()
}

func (p *Provider) validateService(svc service, problems map[service]string, visitor resolveVisitor) string {
	if prob, ok := problems[svc]; ok {
		return prob
	}

	deps := svc.Dependencies()
	if len(deps) == 0 {
		problems[svc] = ""
		return ""
	}

	if !visitor.Enter(svc) {
		return ErrDependencyCycle.Error()
	}
	defer visitor.Leave(svc)

	var probs []string
	for i, depKey := range deps {
		if depKey.Type == typeContext {
			continue
		}

		if depKey.Type.Kind() == reflect.Slice {
			if fs, ok := svc.(*funcService); ok && fs.IsVariadic() && i == len(deps)-1 {
				// Variadic dependencies are optional
				continue
			}

			// Collections resolve empty when nothing is registered
			continue
		}

		depSvc, _ := p.lookup(nil, depKey)
		if depSvc == nil {
			probs = append(probs, fmt.Sprintf("dependency %s: service not registered", depKey))
			continue
		}

		prob := p.validateService(depSvc, problems, visitor)
		if prob != "" {
			probs = append(probs, fmt.Sprintf("dependency %s: %s", depKey, prob))
		}
	}

	if len(probs) > 0 {
		joined := strings.Join(probs, "; ")
		problems[svc] = joined
		return joined
	}

	return ""
}

// lookup returns the last registered service for the key, checking scope-local
// registrations first. The second return value reports whether the
// registration is owned by the scope.
func (p *Provider) lookup(sc *Scope, key serviceKey) (service, bool) {
	if sc != nil {
		if svcs, ok := sc.services[key]; ok {
			return svcs[len(svcs)-1], true
		}
	}

	if svcs, ok := p.services[key]; ok {
		return svcs[len(svcs)-1], false
	}

	return nil, false
}

// Contains returns true if the [Provider] has a service registered for the given [reflect.Type].
//
// Available options:
//   - [WithKey] specifies the key associated with the service.
func (p *Provider) Contains(t reflect.Type, opts ...ResolveOption) bool {
	// For a slice, look for the element type
	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}

	key := serviceKey{Type: t}
	for _, opt := range opts {
		key = opt.applyServiceKey(key)
	}

	_, found := p.services[key]
	return found
}

// Resolve a service of the given [reflect.Type] from the [Provider].
//
// The type must be registered, and must not be registered with the [Scoped]
// lifetime: scoped services can only be resolved through a [Scope].
// This will return an error if the [Provider] has been closed.
//
// Available options:
//   - [WithKey] specifies the key associated with the service.
func (p *Provider) Resolve(ctx context.Context, t reflect.Type, opts ...ResolveOption) (any, error) {
	key := serviceKey{Type: t}
	for _, opt := range opts {
		key = opt.applyServiceKey(key)
	}

	p.closedMu.RLock()
	defer p.closedMu.RUnlock()

	if p.closed {
		return nil, errors.Wrapf(ErrProviderClosed, "di.Provider.Resolve %s", key)
	}

	val, err := p.resolveKey(ctx, nil, key, make(resolveVisitor))
	if err != nil {
		return val, errors.Wrapf(err, "di.Provider.Resolve %s", key)
	}

	return val, nil
}

func (p *Provider) resolveKey(
	ctx context.Context,
	sc *Scope,
	key serviceKey,
	visitor resolveVisitor,
) (any, error) {
	if key.Type.Kind() == reflect.Slice {
		return p.resolveSliceKey(ctx, sc, key, visitor)
	}

	svc, fromScope := p.lookup(sc, key)
	if svc == nil {
		return nil, ErrServiceNotRegistered
	}

	return p.resolveService(ctx, sc, svc, fromScope, visitor)
}

// resolveSliceKey resolves every registration for the element type, in
// registration order: root registrations first, then scope-local ones.
// An empty result is not an error.
func (p *Provider) resolveSliceKey(
	ctx context.Context,
	sc *Scope,
	key serviceKey,
	visitor resolveVisitor,
) (any, error) {
	sliceVal := reflect.MakeSlice(key.Type, 0, 0)
	elementKey := serviceKey{
		Type: key.Type.Elem(),
		Key:  key.Key,
	}

	for _, svc := range p.services[elementKey] {
		val, err := p.resolveService(ctx, sc, svc, false, visitor)
		if err != nil {
			return nil, err
		}
		if val != nil {
			sliceVal = reflect.Append(sliceVal, safeReflectValue(elementKey.Type, val))
		}
	}

	if sc != nil {
		for _, svc := range sc.services[elementKey] {
			val, err := p.resolveService(ctx, sc, svc, true, visitor)
			if err != nil {
				return nil, err
			}
			if val != nil {
				sliceVal = reflect.Append(sliceVal, safeReflectValue(elementKey.Type, val))
			}
		}
	}

	return sliceVal.Interface(), nil
}

func (p *Provider) resolveService(
	ctx context.Context,
	sc *Scope,
	svc service,
	fromScope bool,
	visitor resolveVisitor,
) (any, error) {
	// Check context for errors
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	lifetime := svc.Lifetime()

	// Scope-registered services live and die with their scope, whatever the
	// declared lifetime says.
	memoScope := sc
	if !fromScope {
		switch lifetime {
		case Singleton:
			// Singleton dependencies must not capture scoped services
			memoScope = nil
			sc = nil

		case Scoped:
			if sc == nil {
				return nil, errors.New("scoped service must be resolved from a scope")
			}

		case Transient:
			memoScope = nil
		}
	}

	// See if this service has already been resolved
	if lifetime != Transient {
		if memoScope != nil {
			memoScope.resolvedMu.RLock()
			res, exists := memoScope.resolved[svc]
			memoScope.resolvedMu.RUnlock()

			if exists {
				return res.val, res.err
			}
		} else if lifetime == Singleton {
			if res, exists := p.singletons.Load(svc); exists {
				return res.val, res.err
			}
		}
	}

	// Throw an error if we've already visited this service
	if !visitor.Enter(svc) {
		return nil, ErrDependencyCycle
	}
	defer visitor.Leave(svc)

	// Recursively resolve dependencies
	var depVals []reflect.Value

	deps := svc.Dependencies()
	if len(deps) > 0 {
		depVals = make([]reflect.Value, len(deps))
		for i, depKey := range deps {
			var depVal any
			var depErr error

			if depKey.Type == typeContext {
				// Pass along the context
				depVal = ctx
			} else {
				depVal, depErr = p.resolveKey(ctx, sc, depKey, visitor)
			}

			if depErr != nil {
				// Stop at the first error
				return nil, errors.Wrapf(depErr, "dependency %s", depKey)
			}
			depVals[i] = safeReflectValue(depKey.Type, depVal)
		}
	}

	if lifetime != Transient && memoScope != nil {
		// Lock before creating the service so it isn't created twice
		memoScope.resolvedMu.Lock()
		defer memoScope.resolvedMu.Unlock()

		// Another goroutine may have resolved the service since the last check
		if res, exists := memoScope.resolved[svc]; exists {
			return res.val, res.err
		}

		val, err := p.newService(svc, depVals, memoScope.addCloser)
		memoScope.resolved[svc] = resolveResult{val, err}
		return val, err
	}

	if lifetime == Singleton {
		res, _ := p.singletons.LoadOrCompute(svc, func() resolveResult {
			val, err := p.newService(svc, depVals, p.addCloser)
			return resolveResult{val, err}
		})
		return res.val, res.err
	}

	// Transient
	addCloser := p.addCloser
	if sc != nil {
		addCloser = sc.addCloser
	}

	return p.newService(svc, depVals, addCloser)
}

// newService creates the service instance and records its closer with the
// owner of the instance.
func (p *Provider) newService(svc service, depVals []reflect.Value, addCloser func(Closer)) (any, error) {
	val, err := svc.New(depVals)
	if err != nil {
		return val, err
	}

	// Value-service closers were already recorded at registration.
	if _, ok := svc.(*valueService); !ok {
		if closer := svc.CloserFor(val); closer != nil {
			addCloser(closer)
		}
	}

	return val, nil
}

func (p *Provider) addCloser(c Closer) {
	p.closersMu.Lock()
	p.closers = append(p.closers, c)
	p.closersMu.Unlock()
}

// Close the [Provider] and any resolved singleton services.
//
// Services are closed in the reverse of the order they were created.
// Errors returned from closing services are joined together.
//
// Close will return an error if called more than once.
func (p *Provider) Close(ctx context.Context) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed {
		return errors.Wrap(ErrProviderClosed, "di.Provider.Close: closed already")
	}
	p.closed = true

	// Close services in LIFO order because of dependencies
	var errs errors.MultiError
	for i := len(p.closers) - 1; i >= 0; i-- {
		err := p.closers[i].Close(ctx)
		errs = errs.Append(err)
	}

	return errs.Wrap("di.Provider.Close")
}

type optionOrder int8

const (
	orderService optionOrder = iota
	orderModule  optionOrder = iota
)

func newProviderOption(order optionOrder, fn func(*registry) error) ProviderOption {
	return providerOption{fn: fn, ord: order}
}

type providerOption struct {
	fn  func(*registry) error
	ord optionOrder
}

func (o providerOption) order() optionOrder {
	return o.ord
}

func (o providerOption) applyRegistry(r *registry) error {
	return o.fn(r)
}

type resolveResult struct {
	val any
	err error
}

type resolveVisitor map[service]struct{}

func (v resolveVisitor) Enter(s service) bool {
	if _, exists := v[s]; exists {
		return false
	}

	v[s] = struct{}{}
	return true
}

func (v resolveVisitor) Leave(s service) {
	delete(v, s)
}
