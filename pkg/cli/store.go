package cli

import (
	"context"

	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/storage/backend"
)

// storageConfig maps the store flags onto a storage.Config. The CLI runs one
// query per process, so the record cache stays off.
func (o *RootOptions) storageConfig() storage.Config {
	cfg := storage.DefaultConfig()
	cfg.Type = o.Store
	cfg.CacheEnabled = false
	cfg.FixturePath = o.Fixture

	switch o.Store {
	case "filesystem":
		cfg.FilesystemRoot = o.DSN
	case "sqlite":
		cfg.SQLitePath = o.DSN
	case "postgres":
		cfg.PostgresURL = o.DSN
	}
	return cfg
}

func (o *RootOptions) openStore(ctx context.Context) (*backend.Backend, error) {
	if o.Store != "memory" && o.DSN == "" {
		return nil, NewExitError(ExitCommandError, "--dsn is required for the "+o.Store+" store")
	}

	return openBackend(ctx, o, o.storageConfig())
}

func openBackend(ctx context.Context, o *RootOptions, cfg storage.Config) (*backend.Backend, error) {
	o.Logger().WithField("store", cfg.Type).Debug("opening store")
	b, err := backend.Open(ctx, cfg, o.traversalLogger(), nil)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return b, nil
}

// queryContext applies --timeout
func (o *RootOptions) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout > 0 {
		return context.WithTimeout(ctx, o.Timeout)
	}
	return context.WithCancel(ctx)
}
