package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/story-runtime/internal/config"
	"github.com/jwebster45206/story-runtime/pkg/storage"
)

// Open returns the backend named by cfg.StorageBackend. Redis is given a few
// seconds to come up.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory, "":
		return storage.NewMockStorage(), nil
	case config.BackendSQLite:
		return NewSQLiteStorage(cfg.SQLitePath, logger)
	case config.BackendRedis:
		r, err := NewRedisStorage(cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		if err := r.WaitForConnection(ctx, 5, time.Second); err != nil {
			_ = r.Close()
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}
