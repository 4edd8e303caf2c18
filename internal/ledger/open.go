package ledger

import (
	"context"
	"fmt"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend    string
	SQLitePath string
	Redis      RedisOptions
}

// Open builds the configured store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		return OpenSQLite(opts.SQLitePath)
	case BackendRedis:
		return OpenRedis(ctx, opts.Redis)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("ledger: unknown backend %q", opts.Backend)
	}
}
