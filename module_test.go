package di_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmreid/di-bridge"
	"github.com/jmreid/di-bridge/internal/testtypes"
)

func Test_Module(t *testing.T) {
	ctx := context.Background()

	defaults := di.Module{
		di.WithService(testtypes.NewMemRepo, di.As[testtypes.Repo]()),
		di.WithService(testtypes.NewAscSorter, di.As[testtypes.Sorter]()),
	}

	t.Run("registers services", func(t *testing.T) {
		p, err := di.NewProvider(
			di.WithModule(defaults),
		)
		require.NoError(t, err)

		got := di.MustResolve[testtypes.Repo](ctx, p)
		assert.IsType(t, &testtypes.MemRepo{}, got)
	})

	t.Run("nested modules", func(t *testing.T) {
		outer := di.Module{
			di.WithModule(defaults),
			di.WithService(testtypes.NewDescSorter, di.As[testtypes.Sorter]()),
		}

		p, err := di.NewProvider(
			di.WithModule(outer),
		)
		require.NoError(t, err)

		sorters, err := di.ResolveAll[testtypes.Sorter](ctx, p)
		require.NoError(t, err)
		require.Len(t, sorters, 2)
		assert.Equal(t, "asc", sorters[0].Name())
		assert.Equal(t, "desc", sorters[1].Name())
	})

	t.Run("deeply nested modules", func(t *testing.T) {
		inner := di.Module{
			di.WithService(testtypes.NewAscSorter, di.As[testtypes.Sorter]()),
		}
		middle := di.Module{
			di.WithModule(inner),
			di.WithService(testtypes.NewDescSorter, di.As[testtypes.Sorter]()),
		}
		outer := di.Module{
			di.WithModule(middle),
			di.WithService(testtypes.NewMemRepo, di.As[testtypes.Repo]()),
		}

		p, err := di.NewProvider(
			di.WithModule(outer),
		)
		require.NoError(t, err)

		sorters, err := di.ResolveAll[testtypes.Sorter](ctx, p)
		require.NoError(t, err)
		require.Len(t, sorters, 2)
		assert.Equal(t, "asc", sorters[0].Name())
		assert.Equal(t, "desc", sorters[1].Name())

		_, err = di.Resolve[testtypes.Repo](ctx, p)
		assert.NoError(t, err)
	})

	t.Run("later registration substitutes a module service", func(t *testing.T) {
		// The test wiring swaps in a stub without touching the module
		p, err := di.NewProvider(
			di.WithModule(defaults),
			di.WithService(testtypes.NewStubRepo, di.As[testtypes.Repo]()),
		)
		require.NoError(t, err)

		got := di.MustResolve[testtypes.Repo](ctx, p)
		assert.IsType(t, &testtypes.StubRepo{}, got)
	})
}
