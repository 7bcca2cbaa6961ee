package di

import "slices"

// A Module is a named collection of provider options.
// It can be used to export a re-usable group of related services, and to swap
// whole registration sets in tests without touching handler code.
//
// Example:
//
//	var StorageModule = di.Module{
//		di.WithService(NewDB),
//		di.WithService(NewStore),
//	}
type Module []ProviderOption

func (Module) applyRegistry(*registry) error { return nil }
func (Module) order() optionOrder            { return orderModule }

// WithModule applies the options in a [Module] when calling [NewProvider] or
// [Provider.NewScope].
//
// Example:
//
//	p, err := di.NewProvider(
//		di.WithModule(StorageModule),
//		di.WithService(NewHandler),
//	)
func WithModule(m Module) ProviderOption {
	return m
}

func flattenModules(opts []ProviderOption) []ProviderOption {
	// Index over the growing slice so modules inserted by an outer module
	// are flattened as well.
	for i := 0; i < len(opts); i++ {
		if mod, ok := opts[i].(Module); ok {
			opts = slices.Insert(opts, i+1, []ProviderOption(mod)...)
		}
	}

	return opts
}
