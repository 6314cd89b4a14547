package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/peachstate/votergeo/internal/addrstore"
	"github.com/peachstate/votergeo/internal/cachestore"
	"github.com/peachstate/votergeo/internal/service"
	"github.com/peachstate/votergeo/pkg/geocode"
)

// env holds the wired engine components shared by the commands.
type env struct {
	store     cachestore.Store
	addresses *addrstore.PostgresStore // nil on the sqlite driver
	cascade   *geocode.Cascade
	invoker   *geocode.Invoker
	resolver  *service.Resolver
}

// initEnv opens the cache store and builds the provider cascade and
// resolver from configuration.
func initEnv(ctx context.Context) (*env, error) {
	store, addresses, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	providers, err := geocode.BuildProviders(cfg.Providers)
	if err != nil {
		store.Close()
		return nil, err
	}

	invoker := geocode.NewInvoker(cfg.Retry, cfg.Resolver.MaxConcurrentPerProvider)
	cascade := geocode.NewCascade(providers, store, invoker)

	opts := []service.ResolverOption{service.WithFallback(cfg.Resolver.Fallback)}
	if addresses != nil {
		opts = append(opts, service.WithAddressUpserter(addresses))
	}
	resolver := service.NewResolver(cascade, invoker, store, opts...)

	return &env{
		store:     store,
		addresses: addresses,
		cascade:   cascade,
		invoker:   invoker,
		resolver:  resolver,
	}, nil
}

func (e *env) Close() {
	_ = e.store.Close()
}

// openStore opens the configured cache backend. The canonical address store
// is only available on Postgres.
func openStore(ctx context.Context) (cachestore.Store, *addrstore.PostgresStore, error) {
	maxAge := time.Duration(cfg.Cache.MaxAgeDays) * 24 * time.Hour

	switch cfg.Cache.Driver {
	case "postgres":
		if cfg.Cache.DatabaseURL == "" {
			return nil, nil, eris.New("cache.database_url is required for the postgres driver")
		}
		pool, err := pgxpool.New(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "open postgres pool")
		}
		store := cachestore.NewPostgres(pool,
			cachestore.WithMaxAge(maxAge),
			cachestore.WithCloser(pool.Close),
		)
		return store, addrstore.NewPostgres(pool), nil

	case "sqlite":
		if cfg.Cache.Path == "" {
			return nil, nil, eris.New("cache.path is required for the sqlite driver")
		}
		store, err := cachestore.NewSQLite(cfg.Cache.Path, cachestore.WithSQLiteMaxAge(maxAge))
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	default:
		return nil, nil, eris.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}
