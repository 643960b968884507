// Package mirror opens the snapshot store selected by MIRROR_DRIVER
package mirror

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/config"
	"github.com/pestofarm/storefront/internal/repository"
	"github.com/pestofarm/storefront/internal/repository/memory"
	"github.com/pestofarm/storefront/internal/repository/postgres"
	redisstore "github.com/pestofarm/storefront/internal/repository/redis"
)

// Store is a snapshot store that can also list its keys
type Store interface {
	repository.SnapshotStore
	repository.KeyLister
}

// Open connects the configured store. The returned func releases its connection.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }

	switch cfg.Mirror.Driver {
	case "", "memory":
		logger.Info("Using in-memory mirror", zap.Int("max_value_bytes", cfg.Mirror.MaxValueBytes))
		return memory.NewStore(cfg.Mirror.MaxValueBytes), noop, nil

	case "redis":
		client, err := redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Using redis mirror", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Mirror.TTL))
		return redisstore.NewStore(client, cfg.Redis.Prefix, cfg.Mirror.TTL, logger), client.Close, nil

	case "postgres":
		db, err := postgres.NewConnection(cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, noop, err
		}
		logger.Info("Using postgres mirror", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))
		return postgres.NewSnapshotRepository(db, logger), db.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown mirror driver %q", cfg.Mirror.Driver)
}
