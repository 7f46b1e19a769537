package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound marks a key with no saved timings.
var ErrNotFound = errors.New("timings not found")

// Store persists exported verse timing blobs across sessions.
type Store interface {
	Save(ctx context.Context, key string, blob []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
	Close(ctx context.Context) error
}

// Driver names.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config describes the store selection parameters.
type Config struct {
	Driver string
	Redis  *RedisConfig
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// Dependencies carries externally-owned handles.
type Dependencies struct {
	SQLiteDB *gorm.DB
}

// New builds the store selected by cfg.Driver.
func New(cfg Config, deps Dependencies) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverSQLite:
		if deps.SQLiteDB == nil {
			return nil, fmt.Errorf("sqlite timing store requires a database handle")
		}
		return NewSQLite(deps.SQLiteDB), nil
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported timing store driver %q", cfg.Driver)
	}
}
