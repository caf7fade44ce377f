// Package store provides the persistent key-value collaborator used by the
// settings store and the prayer times cache. Values are opaque bytes.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// KV is a byte-oriented key-value store that survives restarts (except Memory).
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Backend string `mapstructure:"backend" validate:"required|in:file,memory,redis,postgres"`

	// file
	Dir      string `mapstructure:"dir"`
	Compress bool   `mapstructure:"compress"`

	// memory
	MemoryMB int `mapstructure:"memory_mb"`

	// redis
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisUsername string `mapstructure:"redis_username"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix"`

	// postgres
	PostgresURL string `mapstructure:"postgres_url"`
}

// Open returns the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (KV, error) {
	switch cfg.Backend {
	case BackendFile, "":
		return NewFile(cfg.Dir, cfg.Compress)
	case BackendMemory:
		return NewMemory(cfg.MemoryMB), nil
	case BackendRedis:
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB, cfg.KeyPrefix)
	case BackendPostgres:
		return NewPostgres(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
