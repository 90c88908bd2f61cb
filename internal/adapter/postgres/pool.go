package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/eventsync/internal/config"
)

// NewPool creates a PostgreSQL connection pool for dsn with the pool settings
// from cfg, and pings the database for fail-fast validation.
func NewPool(ctx context.Context, dsn string, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Store is a connected pool together with the privilege it was opened with.
type Store struct {
	Pool     *pgxpool.Pool
	elevated bool
}

// Connect opens the pool. When a service DSN is configured it is used and the
// store reports elevated access, which is what allows writes to the primary
// tables.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	dsn, elevated := cfg.DSN, false
	if cfg.ServiceDSN != "" {
		dsn, elevated = cfg.ServiceDSN, true
	}

	pool, err := NewPool(ctx, dsn, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool, elevated: elevated}, nil
}

// HasElevatedAccess reports whether the store was opened with the service DSN.
func (s *Store) HasElevatedAccess() bool { return s.elevated }

func (s *Store) Close() { s.Pool.Close() }
