package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"healthlink/internal/platform/config"
)

const pingTimeout = 2 * time.Second

var newPoolWithConfig = pgxpool.NewWithConfig

// PoolConfig translates database settings into a pgxpool configuration.
// PoolTimeout bounds how long a new connection may take to establish.
func PoolConfig(cfg config.Database) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pc.MaxConns = int32(max(cfg.MaxConns(), 1))
	pc.MinConns = 0
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.HealthCheckPeriod = time.Minute
	if cfg.PoolTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.PoolTimeout
	}
	if pc.ConnConfig.RuntimeParams == nil {
		pc.ConnConfig.RuntimeParams = map[string]string{}
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "healthlink"
	return pc, nil
}

// NewPool builds a lazily-connecting pool. No connection is opened until the
// first query, so the process starts even when the database is down.
func NewPool(ctx context.Context, cfg config.Database) (*pgxpool.Pool, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := newPoolWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return pool, nil
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping runs a bounded connectivity check.
func Ping(ctx context.Context, p Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.Ping(ctx)
}
