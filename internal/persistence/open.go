// Package persistence selects a domain.SnapshotStore driver from
// configuration. Callers depend on the domain interface; only this package
// imports the infra drivers.
package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"deckcore/internal/config"
	"deckcore/internal/infra/persistence/badger"
	"deckcore/internal/infra/persistence/memory"
	"deckcore/internal/infra/persistence/postgres"
	"deckcore/internal/infra/persistence/redis"
	"deckcore/internal/infra/persistence/sqlite"
	"deckcore/pkg/domain"
)

// Open constructs the store named by cfg.Driver. An empty driver selects the
// in-memory store.
func Open(ctx context.Context, cfg config.Persistence, logger *slog.Logger) (domain.SnapshotStore, error) {
	var (
		store domain.SnapshotStore
		err   error
	)
	switch cfg.Driver {
	case "", config.DriverMemory:
		store = memory.NewStore()
	case config.DriverSQLite:
		store, err = sqlite.NewStore(ctx, cfg.Path)
	case config.DriverPostgres:
		store, err = postgres.NewStore(ctx, cfg.DSN)
	case config.DriverBadger:
		store, err = badger.NewStore(badger.Config{
			Path:       cfg.Badger.Path,
			InMemory:   cfg.Badger.InMemory,
			SyncWrites: true,
			Logger:     logger,
		})
	case config.DriverRedis:
		store, err = redis.NewStore(ctx, cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("unknown persistence driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	if logger != nil {
		logger.Debug("snapshot store opened", "driver", store.Driver())
	}
	return store, nil
}
