package dihttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/jmreid/di-bridge"
	"github.com/jmreid/di-bridge/dicontext"
)

// Handle adapts a function with injected dependencies into an [http.Handler].
//
// The handler function takes a dependencies struct as its third argument. Each
// field of the struct declares one resolution against the request's
// [di.Scope] (the request must have passed through [RequestScopeMiddleware]):
//
//	type deps struct {
//		Repo    Repo                    // required
//		Primary *db.DB `di:"key=primary"` // required, keyed
//		Logger  dihttp.Opt[*slog.Logger]  // optional
//		Sorters []Sorter                  // collection, registration order
//		Counter dihttp.Mut[Counter]       // required, exclusive-write
//		Audit   dihttp.OptMut[AuditLog]   // optional, exclusive-write
//		Stats   dihttp.MutAll[StatSink]   // collection, exclusive-write
//	}
//
//	mux.Handle("GET /things", dihttp.Handle(func(w http.ResponseWriter, r *http.Request, d deps) {
//		...
//	}))
//
// Struct tags: `di:"key=NAME"` resolves the field with [di.WithKey],
// `di:"-"` skips the field. Unexported fields are ignored.
//
// A failed required resolution (or any container error) ends the request with
// a fixed 500 response and a generic body; the underlying error is logged
// with the service key and request ID, and is never echoed to the client.
// Optional and collection fields treat absence as an empty result, not an
// error.
//
// Exclusive-write fields keep their cell locked for the duration of the
// handler call. When a handler declares more than one, the locks are acquired
// in a deterministic order (sorted by service key) so two handlers touching
// the same services in different field orders cannot deadlock each other.
//
// Handle panics if the dependencies struct is malformed: that is a wiring
// mistake, caught when routes are built rather than per request.
func Handle[D any](fn func(http.ResponseWriter, *http.Request, D), opts ...HandlerOption) http.Handler {
	depsType := reflect.TypeFor[D]()
	if depsType.Kind() != reflect.Struct {
		panic(fmt.Sprintf("dihttp.Handle: dependencies type %s is not a struct", depsType))
	}

	h := &handler[D]{
		handlerConfig: handlerConfig{
			logger: slog.Default(),
		},
		fn:   fn,
		plan: compilePlan(depsType),
	}
	for _, opt := range opts {
		opt.applyHandler(&h.handlerConfig)
	}

	return h
}

// HandlerOption is an option used to configure [Handle].
type HandlerOption interface {
	applyHandler(*handlerConfig)
}

type handlerOption func(*handlerConfig)

func (o handlerOption) applyHandler(c *handlerConfig) {
	o(c)
}

// WithHandlerLogger sets the [*slog.Logger] used to log resolution failures.
// The default is [slog.Default].
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return handlerOption(func(c *handlerConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}

type handlerConfig struct {
	logger *slog.Logger
}

type handler[D any] struct {
	handlerConfig
	fn   func(http.ResponseWriter, *http.Request, D)
	plan plan
}

func (h *handler[D]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sc := dicontext.Scope(ctx)
	if sc == nil {
		h.fail(ctx, w, "", fmt.Errorf("scope not found on request context (missing RequestScopeMiddleware)"))
		return
	}

	var deps D
	dv := reflect.ValueOf(&deps).Elem()

	borrows := make([]borrower, len(h.plan.fields))
	for pi, f := range h.plan.fields {
		fv := dv.Field(f.index)

		if f.wrapper {
			ex := fv.Addr().Interface().(extractor)
			if err := ex.extract(ctx, sc, f.opts); err != nil {
				h.fail(ctx, w, f.service, err)
				return
			}
			if f.mut {
				borrows[pi] = ex.(borrower)
			}
			continue
		}

		val, err := sc.Resolve(ctx, f.typ, f.opts...)
		if err != nil {
			h.fail(ctx, w, f.service, err)
			return
		}
		if val != nil {
			fv.Set(reflect.ValueOf(val))
		}
	}

	// Acquire exclusive borrows in sorted service-key order, release in
	// reverse when the handler returns.
	for _, pi := range h.plan.borrowOrder {
		if b := borrows[pi]; b != nil {
			b.acquire()
			defer b.release()
		}
	}

	h.fn(w, r, deps)
}

func (h *handler[D]) fail(ctx context.Context, w http.ResponseWriter, service string, err error) {
	h.logger.ErrorContext(ctx, "error resolving handler dependency",
		"service", service,
		"request_id", RequestID(ctx),
		"error", err,
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

type plan struct {
	fields []fieldPlan

	// borrowOrder holds the positions in fields of exclusive-write entries,
	// sorted by service key so every handler acquires the same cells in the
	// same order. Positions in fields, not struct field indexes: skipped and
	// unexported struct fields have no plan entry.
	borrowOrder []int
}

type fieldPlan struct {
	index   int
	typ     reflect.Type
	opts    []di.ResolveOption
	service string
	wrapper bool
	mut     bool
}

var (
	typeExtractor = reflect.TypeFor[extractor]()
	typeBorrower  = reflect.TypeFor[borrower]()
)

func compilePlan(depsType reflect.Type) plan {
	var p plan

	type borrowKey struct {
		pos int
		key string
	}
	var borrowKeys []borrowKey

	for i := 0; i < depsType.NumField(); i++ {
		field := depsType.Field(i)
		if !field.IsExported() {
			continue
		}

		key, skip := parseTag(depsType, field)
		if skip {
			continue
		}

		f := fieldPlan{
			index:   i,
			typ:     field.Type,
			service: field.Type.String(),
		}
		if key != "" {
			f.opts = []di.ResolveOption{di.WithKey(key)}
			f.service = fmt.Sprintf("%s (key=%s)", field.Type, key)
		}

		ptr := reflect.PointerTo(field.Type)
		switch {
		case ptr.Implements(typeExtractor):
			f.wrapper = true
			f.mut = ptr.Implements(typeBorrower)

		case field.Type.Kind() == reflect.Slice:
			// Collection field; empty when nothing is registered

		case field.Type.Kind() == reflect.Interface,
			field.Type.Kind() == reflect.Ptr,
			field.Type.Kind() == reflect.Struct:
			// Required field

		default:
			panic(fmt.Sprintf("dihttp.Handle: field %s.%s: type %s is not resolvable",
				depsType, field.Name, field.Type))
		}

		p.fields = append(p.fields, f)

		if f.mut {
			borrowKeys = append(borrowKeys, borrowKey{pos: len(p.fields) - 1, key: f.service})
		}
	}

	sort.Slice(borrowKeys, func(a, b int) bool {
		return borrowKeys[a].key < borrowKeys[b].key
	})
	for _, bk := range borrowKeys {
		p.borrowOrder = append(p.borrowOrder, bk.pos)
	}

	return p
}

func parseTag(depsType reflect.Type, field reflect.StructField) (key string, skip bool) {
	tag, ok := field.Tag.Lookup("di")
	if !ok || tag == "" {
		return "", false
	}
	if tag == "-" {
		return "", true
	}

	for _, part := range strings.Split(tag, ",") {
		switch {
		case strings.HasPrefix(part, "key="):
			key = strings.TrimPrefix(part, "key=")

		default:
			panic(fmt.Sprintf("dihttp.Handle: field %s.%s: unknown di tag %q",
				depsType, field.Name, part))
		}
	}

	return key, false
}
