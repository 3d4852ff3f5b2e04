package pgxdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors for pgxdb package operations
var (
	// Connection errors
	ErrInvalidConnectionString = errors.New("invalid database connection string")
	ErrConnectionPoolCreation  = errors.New("failed to create database connection pool")
	ErrDatabaseConnection      = errors.New("failed to connect to database")
)

// PoolOptions tunes the pool created by NewConnection
type PoolOptions struct {
	MinConns int32
	MaxConns int32
}

// DefaultPoolOptions fits a single web worker or the monitor process
var DefaultPoolOptions = PoolOptions{MinConns: 2, MaxConns: 10}

// NewConnection creates a new pgx database connection pool with production-optimized settings
func NewConnection(ctx context.Context, connectionString string) (*pgxpool.Pool, error) {
	return NewConnectionWithOptions(ctx, connectionString, DefaultPoolOptions)
}

// NewConnectionWithOptions creates a pool with explicit sizing.
// The monitor reserves one connection for the leader lock for its whole lifetime,
// so it needs MaxConns >= 2.
func NewConnectionWithOptions(ctx context.Context, connectionString string, opts PoolOptions) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}

	// See: https://blog.cloudflare.com/how-hyperdrive-speeds-up-database-access/

	// Pool size comes from the caller; web and monitor differ
	config.MinConns = opts.MinConns // kept warm
	config.MaxConns = opts.MaxConns // includes the leader lock connection in the monitor

	// Connection lifecycle
	config.MaxConnLifetime = 30 * time.Minute  // recycle long-lived connections
	config.MaxConnIdleTime = 5 * time.Minute   // close idle connections quickly
	config.HealthCheckPeriod = 1 * time.Minute // background health checks

	// Acquisition
	config.ConnConfig.ConnectTimeout = 10 * time.Second // bound each dial

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionPoolCreation, err)
	}

	// Fail fast when the database is unreachable
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrDatabaseConnection, err)
	}

	return pool, nil
}
