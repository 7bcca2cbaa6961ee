package dicontext_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmreid/di-bridge"
	"github.com/jmreid/di-bridge/dicontext"
	"github.com/jmreid/di-bridge/internal/testtypes"
)

func newScope(t *testing.T, opts ...di.ProviderOption) *di.Scope {
	t.Helper()

	p, err := di.NewProvider(opts...)
	require.NoError(t, err)

	sc, err := p.NewScope()
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = sc.Close(context.Background())
		_ = p.Close(context.Background())
	})

	return sc
}

func Test_Scope(t *testing.T) {
	t.Run("with scope", func(t *testing.T) {
		sc := newScope(t)

		ctx := dicontext.WithScope(context.Background(), sc)
		assert.Same(t, sc, dicontext.Scope(ctx))
	})

	t.Run("no scope", func(t *testing.T) {
		ctx := context.Background()
		assert.Nil(t, dicontext.Scope(ctx))
	})

	t.Run("provider", func(t *testing.T) {
		sc := newScope(t)

		ctx := dicontext.WithScope(context.Background(), sc)
		assert.Same(t, sc.Provider(), dicontext.Provider(ctx))
	})

	t.Run("no provider", func(t *testing.T) {
		ctx := context.Background()
		assert.Nil(t, dicontext.Provider(ctx))
	})
}

func Test_Resolve(t *testing.T) {
	t.Run("resolve", func(t *testing.T) {
		sc := newScope(t,
			di.WithService(testtypes.NewMemRepo, di.As[testtypes.Repo](), di.Scoped),
		)
		ctx := dicontext.WithScope(context.Background(), sc)

		got, err := dicontext.Resolve[testtypes.Repo](ctx)
		assert.NoError(t, err)
		assert.IsType(t, &testtypes.MemRepo{}, got)
	})

	t.Run("resolve with key", func(t *testing.T) {
		sc := newScope(t,
			di.WithService(testtypes.NewStubRepo, di.As[testtypes.Repo](), di.WithKey("stub")),
			di.WithService(func() testtypes.Repo {
				panic("should not be called")
			}),
		)
		ctx := dicontext.WithScope(context.Background(), sc)

		got, err := dicontext.Resolve[testtypes.Repo](ctx, di.WithKey("stub"))
		assert.NoError(t, err)
		assert.IsType(t, &testtypes.StubRepo{}, got)
	})

	t.Run("no scope", func(t *testing.T) {
		ctx := context.Background()

		got, err := dicontext.Resolve[testtypes.Repo](ctx)
		assert.Nil(t, got)
		assert.EqualError(t, err,
			"resolve testtypes.Repo from context: scope not found on context")
	})

	t.Run("not registered", func(t *testing.T) {
		sc := newScope(t)
		ctx := dicontext.WithScope(context.Background(), sc)

		got, err := dicontext.Resolve[testtypes.Repo](ctx)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, di.ErrServiceNotRegistered)
	})
}

func Test_TryResolve(t *testing.T) {
	t.Run("registered", func(t *testing.T) {
		sc := newScope(t,
			di.WithService(testtypes.NewListLogger, di.As[testtypes.Logger]()),
		)
		ctx := dicontext.WithScope(context.Background(), sc)

		got, ok, err := dicontext.TryResolve[testtypes.Logger](ctx)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.NotNil(t, got)
	})

	t.Run("not registered", func(t *testing.T) {
		sc := newScope(t)
		ctx := dicontext.WithScope(context.Background(), sc)

		got, ok, err := dicontext.TryResolve[testtypes.Logger](ctx)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("no scope", func(t *testing.T) {
		ctx := context.Background()

		_, ok, err := dicontext.TryResolve[testtypes.Logger](ctx)
		assert.False(t, ok)
		assert.EqualError(t, err,
			"resolve testtypes.Logger from context: scope not found on context")
	})
}

func Test_ResolveAll(t *testing.T) {
	t.Run("registration order", func(t *testing.T) {
		sc := newScope(t,
			di.WithService(testtypes.NewAscSorter, di.As[testtypes.Sorter]()),
			di.WithService(testtypes.NewDescSorter, di.As[testtypes.Sorter]()),
		)
		ctx := dicontext.WithScope(context.Background(), sc)

		got, err := dicontext.ResolveAll[testtypes.Sorter](ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "asc", got[0].Name())
		assert.Equal(t, "desc", got[1].Name())
	})

	t.Run("empty", func(t *testing.T) {
		sc := newScope(t)
		ctx := dicontext.WithScope(context.Background(), sc)

		got, err := dicontext.ResolveAll[testtypes.Sorter](ctx)
		assert.NoError(t, err)
		assert.Empty(t, got)
	})
}

func Test_ResolveMut(t *testing.T) {
	sc := newScope(t,
		di.WithService(func() *di.Mut[testtypes.Counter] {
			return di.NewMut(testtypes.Counter{})
		}),
	)
	ctx := dicontext.WithScope(context.Background(), sc)

	cell, err := dicontext.ResolveMut[testtypes.Counter](ctx)
	require.NoError(t, err)

	cell.Use(func(c *testtypes.Counter) {
		c.Hits++
	})
	cell.View(func(c testtypes.Counter) {
		assert.Equal(t, 1, c.Hits)
	})
}

func Test_MustResolve(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		sc := newScope(t,
			di.WithService(testtypes.NewMemRepo, di.As[testtypes.Repo](), di.Scoped),
		)
		ctx := dicontext.WithScope(context.Background(), sc)

		got := dicontext.MustResolve[testtypes.Repo](ctx)
		assert.NotNil(t, got)
	})

	t.Run("panics without scope", func(t *testing.T) {
		ctx := context.Background()

		assert.PanicsWithError(t,
			"resolve testtypes.Repo from context: scope not found on context",
			func() {
				dicontext.MustResolve[testtypes.Repo](ctx)
			},
		)
	})
}
