package dihttp_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmreid/di-bridge"
	"github.com/jmreid/di-bridge/dicontext"
	"github.com/jmreid/di-bridge/dihttp"
	"github.com/jmreid/di-bridge/internal/testtypes"
	"github.com/jmreid/di-bridge/internal/testutils"
)

func newProvider(t *testing.T, opts ...di.ProviderOption) *di.Provider {
	t.Helper()

	p, err := di.NewProvider(opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		testutils.LogError(t, p.Close(context.Background()))
	})

	return p
}

func runRequest(h http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	h.ServeHTTP(rec, req)
	return rec
}

func Test_RequestScopeMiddleware(t *testing.T) {
	t.Run("scoped service", func(t *testing.T) {
		p := newProvider(t,
			di.WithService(testtypes.NewMemRepo, di.As[testtypes.Repo](), di.Scoped),
		)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			repo, err := dicontext.Resolve[testtypes.Repo](r.Context())
			assert.NoError(t, err)
			assert.NotNil(t, repo)
		})

		res := runRequest(dihttp.RequestScopeMiddleware(p)(handler))
		assert.Equal(t, http.StatusOK, res.Code)
	})

	t.Run("request registered with scope", func(t *testing.T) {
		p := newProvider(t,
			di.WithService(func(r *http.Request) *testtypes.MemRepo {
				repo := testtypes.NewMemRepo()
				repo.Data["path"] = r.URL.Path
				return repo
			}, di.Scoped),
		)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			repo, err := dicontext.Resolve[*testtypes.MemRepo](r.Context())
			require.NoError(t, err)

			path, ok := repo.Get("path")
			assert.True(t, ok)
			assert.Equal(t, "/test", path)
		})

		res := runRequest(dihttp.RequestScopeMiddleware(p)(handler))
		assert.Equal(t, http.StatusOK, res.Code)
	})

	t.Run("scope options", func(t *testing.T) {
		p := newProvider(t)
		stub := testtypes.NewStubRepo()

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			repo, err := dicontext.Resolve[*testtypes.StubRepo](r.Context())
			assert.NoError(t, err)
			assert.Same(t, stub, repo)
		})

		mw := dihttp.RequestScopeMiddleware(p,
			dihttp.WithScopeOptions(di.WithService(stub)),
		)
		res := runRequest(mw(handler))
		assert.Equal(t, http.StatusOK, res.Code)
	})

	t.Run("new scope per request", func(t *testing.T) {
		p := newProvider(t,
			di.WithService(testtypes.NewMemRepo, di.Scoped),
		)

		var mu sync.Mutex
		seen := map[*testtypes.MemRepo]struct{}{}

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			repo := dicontext.MustResolve[*testtypes.MemRepo](r.Context())
			again := dicontext.MustResolve[*testtypes.MemRepo](r.Context())
			assert.Same(t, repo, again)

			mu.Lock()
			seen[repo] = struct{}{}
			mu.Unlock()
		})

		wrapped := dihttp.RequestScopeMiddleware(p)(handler)

		const concurrency = 10
		testutils.RunParallel(concurrency, func(int) {
			res := runRequest(wrapped)
			assert.Equal(t, http.StatusOK, res.Code)
		})

		assert.Len(t, seen, concurrency)
	})

	t.Run("scope closed after request", func(t *testing.T) {
		log := testtypes.NewCloseLog()
		p := newProvider(t,
			di.WithService(log),
			di.WithService(func(l *testtypes.CloseLog) *testtypes.ClosingService {
				return testtypes.NewClosingService("svc", l)
			}, di.Scoped),
		)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = dicontext.MustResolve[*testtypes.ClosingService](r.Context())
			assert.Equal(t, 0, log.Count())
		})

		res := runRequest(dihttp.RequestScopeMiddleware(p)(handler))
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, []string{"svc"}, log.Names())
	})

	t.Run("scope closed on handler panic", func(t *testing.T) {
		log := testtypes.NewCloseLog()
		p := newProvider(t,
			di.WithService(log),
			di.WithService(func(l *testtypes.CloseLog) *testtypes.ClosingService {
				return testtypes.NewClosingService("svc", l)
			}, di.Scoped),
		)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = dicontext.MustResolve[*testtypes.ClosingService](r.Context())
			panic("handler failure")
		})

		wrapped := dihttp.RequestScopeMiddleware(p)(handler)
		assert.PanicsWithValue(t, "handler failure", func() {
			runRequest(wrapped)
		})
		assert.Equal(t, 1, log.Count())
	})

	t.Run("scope closed on canceled request", func(t *testing.T) {
		var closeCtxErr error
		p := newProvider(t,
			di.WithService(testtypes.NewMemRepo,
				di.Scoped,
				di.WithCloseFunc(func(ctx context.Context, _ *testtypes.MemRepo) error {
					closeCtxErr = ctx.Err()
					return nil
				}),
			),
		)

		ctx, cancel := context.WithCancel(context.Background())

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = dicontext.MustResolve[*testtypes.MemRepo](r.Context())
			cancel()
		})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx)
		dihttp.RequestScopeMiddleware(p)(handler).ServeHTTP(rec, req)

		// Disposal runs detached from the request's cancellation
		assert.NoError(t, closeCtxErr)
	})

	t.Run("request id", func(t *testing.T) {
		p := newProvider(t)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, dihttp.RequestID(r.Context()))
		})

		res := runRequest(dihttp.RequestScopeMiddleware(p)(handler))
		assert.Equal(t, http.StatusOK, res.Code)
	})

	t.Run("new scope error", func(t *testing.T) {
		p := newProvider(t)

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})

		mw := dihttp.RequestScopeMiddleware(p,
			dihttp.WithScopeOptions(di.WithService(nil)),
			dihttp.WithLogger(logger),
		)
		res := runRequest(mw(handler))

		assert.Equal(t, http.StatusInternalServerError, res.Code)
		assert.Equal(t, "Internal Server Error\n", res.Body.String())
		assert.Contains(t, buf.String(), "error creating HTTP request scope")
		assert.Contains(t, buf.String(), "funcOrValue is nil")
	})

	t.Run("new scope error handler", func(t *testing.T) {
		p := newProvider(t)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})

		mw := dihttp.RequestScopeMiddleware(p,
			dihttp.WithScopeOptions(di.WithService(nil)),
			dihttp.WithNewScopeErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
				assert.Error(t, err)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
			}),
		)
		res := runRequest(mw(handler))

		assert.Equal(t, http.StatusServiceUnavailable, res.Code)
		assert.Equal(t, "unavailable\n", res.Body.String())
	})

	t.Run("scope close error handler", func(t *testing.T) {
		p := newProvider(t,
			di.WithService(testtypes.NewMemRepo,
				di.Scoped,
				di.WithCloseFunc(func(context.Context, *testtypes.MemRepo) error {
					return assert.AnError
				}),
			),
		)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = dicontext.MustResolve[*testtypes.MemRepo](r.Context())
		})

		var handled error
		mw := dihttp.RequestScopeMiddleware(p,
			dihttp.WithScopeCloseErrorHandler(func(r *http.Request, err error) {
				handled = err
			}),
		)
		res := runRequest(mw(handler))

		assert.Equal(t, http.StatusOK, res.Code)
		assert.ErrorIs(t, handled, assert.AnError)
	})
}
