package dihttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jmreid/di-bridge"
	"github.com/jmreid/di-bridge/dicontext"
)

// RequestScopeMiddleware creates a new child [di.Scope] for each request.
// The scope is closed after the request has been processed.
//
// The current [*http.Request] is automatically registered with the scope. It
// can be used as a dependency for scoped services.
//
// The scope is stored on the request context and can be accessed using
// [dicontext.Scope], [dicontext.Resolve], or [dicontext.MustResolve], and is
// what [Handle] resolves handler dependencies from.
//
// The scope is closed on every exit path: normal response, handler panic, and
// client cancellation. Disposal is detached from the request's cancellation so
// scoped instances are always released, and it runs exactly once.
//
// Available options:
//   - WithScopeOptions: set [di.ProviderOption] options to use when creating each request scope.
//   - WithNewScopeErrorHandler: set the error handler for when there is an error creating a new scope.
//   - WithScopeCloseErrorHandler: set the error handler for when there is an error closing the scope.
//   - WithLogger: set the [*slog.Logger] used by the default error handlers.
func RequestScopeMiddleware(p *di.Provider, opts ...ScopeMiddlewareOption) func(http.Handler) http.Handler {
	mw := &scopeMiddleware{
		provider: p,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt.applyScopeMiddleware(mw)
	}

	return func(next http.Handler) http.Handler {
		mw.next = next
		return mw
	}
}

// NewScopeErrorHandler is a function that writes an error response to the client.
// This is called by the scope middleware when there is an error creating the request's [di.Scope].
//
// The default handler logs the error and writes a 500 Internal Server Error response
// with a generic body.
type NewScopeErrorHandler = func(w http.ResponseWriter, r *http.Request, err error)

func (m *scopeMiddleware) defaultNewScopeError(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.ErrorContext(r.Context(), "error creating HTTP request scope",
		"error", err,
		"request_id", RequestID(r.Context()),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// ScopeCloseErrorHandler is a function that handles errors when closing the
// request's [di.Scope] after the request has completed.
//
// The default handler logs the error.
type ScopeCloseErrorHandler = func(r *http.Request, err error)

func (m *scopeMiddleware) defaultScopeCloseError(r *http.Request, err error) {
	m.logger.ErrorContext(r.Context(), "error closing HTTP request scope",
		"error", err,
		"request_id", RequestID(r.Context()),
	)
}

type scopeMiddleware struct {
	provider        *di.Provider
	opts            []di.ProviderOption
	logger          *slog.Logger
	newScopeHandler NewScopeErrorHandler
	closeHandler    ScopeCloseErrorHandler
	next            http.Handler
}

func (m *scopeMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := withRequestID(r.Context(), uuid.NewString())
	r = r.WithContext(ctx)

	// Copy the configured options: the slice is shared by concurrent requests.
	opts := make([]di.ProviderOption, 0, len(m.opts)+1)
	opts = append(opts, m.opts...)
	// Register the *http.Request with the new scope
	opts = append(opts, di.WithService(r))

	scope, err := m.provider.NewScope(opts...)
	if err != nil {
		if m.newScopeHandler != nil {
			m.newScopeHandler(w, r, err)
		} else {
			m.defaultNewScopeError(w, r, err)
		}
		return
	}

	// Dispose on every exit path, including a handler panic, and keep
	// disposal alive past the request's own cancellation.
	defer func() {
		closeErr := scope.Close(context.WithoutCancel(ctx))
		if closeErr != nil {
			if m.closeHandler != nil {
				m.closeHandler(r, closeErr)
			} else {
				m.defaultScopeCloseError(r, closeErr)
			}
		}
	}()

	ctx = dicontext.WithScope(ctx, scope)
	m.next.ServeHTTP(w, r.WithContext(ctx))
}

type requestIDContextKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestID returns the identifier assigned to the request by
// [RequestScopeMiddleware], or "" if the middleware has not run.
//
// The identifier appears in the middleware's internal error logs so
// resolution failures can be correlated with requests.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey{}).(string); ok {
		return id
	}
	return ""
}
