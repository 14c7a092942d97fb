package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexichat/config"
	"lexichat/internal/storage"
)

// Result holds the initialized history store and its dependencies.
// The caller is responsible for calling Close() to release resources.
type Result struct {
	Store   Store
	Storage storage.Storage
}

// Close releases all resources held by the history store.
// Safe to call multiple times.
func (r *Result) Close() error {
	var errs []error
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
		r.Storage = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// New creates a history store from configuration.
// The memory backend needs no storage; the others open a connection that
// Result.Close releases.
func New(ctx context.Context, cfg config.HistoryConfig) (*Result, error) {
	if cfg.Backend == "" || cfg.Backend == config.HistoryMemory {
		return &Result{Store: NewMemoryStore()}, nil
	}

	store, err := storage.New(ctx, buildStorageConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	historyStore, err := createHistoryStore(ctx, store, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Result{
		Store:   historyStore,
		Storage: store,
	}, nil
}

// buildStorageConfig creates a storage.Config from the history config.
func buildStorageConfig(cfg config.HistoryConfig) storage.Config {
	defaults := storage.DefaultConfig()
	storageCfg := storage.Config{
		Type:   cfg.Backend,
		SQLite: storage.SQLiteConfig{Path: cfg.SQLitePath},
		Redis:  storage.RedisConfig{URL: cfg.RedisURL},
	}
	if storageCfg.SQLite.Path == "" {
		storageCfg.SQLite.Path = defaults.SQLite.Path
	}
	if storageCfg.Redis.URL == "" {
		storageCfg.Redis.URL = defaults.Redis.URL
	}
	return storageCfg
}

// createHistoryStore creates the appropriate Store for the given storage backend.
func createHistoryStore(ctx context.Context, store storage.Storage, cfg config.HistoryConfig) (Store, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(ctx, store.SQLiteDB())
	case storage.TypeRedis:
		return NewRedisStore(store.RedisClient(), cfg.RedisKeyPrefix, time.Duration(cfg.RedisTTL)*time.Second)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}
