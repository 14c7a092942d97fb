// Package storage provides the database connections behind the history
// stores. A Storage owns one connection and is closed once at shutdown.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Type constants for storage backends
const (
	TypeSQLite = "sqlite"
	TypeRedis  = "redis"
)

// Config holds storage configuration
type Config struct {
	// Type specifies the storage backend: "sqlite" or "redis"
	Type string

	// SQLite configuration
	SQLite SQLiteConfig

	// Redis configuration
	Redis RedisConfig
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	// Path is the database file path (default: data/lexichat.db)
	Path string
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// URL is the connection URL (e.g., "redis://localhost:6379" or "redis://:password@host:6379/0")
	URL string
}

// Storage provides a unified interface for database connections.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Type returns the storage type ("sqlite" or "redis")
	Type() string

	// SQLiteDB returns the *sql.DB connection for SQLite.
	// Returns nil if not using SQLite.
	SQLiteDB() *sql.DB

	// RedisClient returns the Redis client.
	// Returns nil if not using Redis.
	RedisClient() *redis.Client

	// Close releases all resources held by the storage.
	Close() error
}

// New creates a new Storage based on the configuration.
// It validates the configuration and establishes the connection.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeSQLite:
		return NewSQLite(ctx, cfg.SQLite)
	case TypeRedis:
		return NewRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage type: %s (valid: sqlite, redis)", cfg.Type)
	}
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Type: TypeSQLite,
		SQLite: SQLiteConfig{
			Path: "data/lexichat.db",
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379",
		},
	}
}
