// Package database is the portal's SQL handle extension: a pgx pool created
// on Init, transaction helpers and idempotent schema creation.
//
// An empty URL binds the handle in disabled mode; callers then fall back to
// in-memory stores.
package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"portal/cmd/internal/envx"
)

var (
	ErrNotInitialized     = errors.New("database: not initialized")
	ErrAlreadyInitialized = errors.New("database: already initialized")
	ErrDisabled           = errors.New("database: no database configured")
)

//go:embed schema.sql
var schemaSQL string

// Config describes the pool.
type Config struct {
	URL         string
	MaxConns    int32
	MinConns    int32
	PingTimeout time.Duration
	AutoMigrate bool
}

// LoadConfigFromEnv reads PORTAL_DATABASE_URL, PORTAL_DB_MAX_CONNS,
// PORTAL_DB_MIN_CONNS and PORTAL_DB_AUTO_MIGRATE.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		URL:         envx.String("PORTAL_DATABASE_URL", ""),
		PingTimeout: 3 * time.Second,
	}
	maxConns, err := envx.ParseInt("PORTAL_DB_MAX_CONNS", 10, 1)
	if err != nil {
		return Config{}, fmt.Errorf("database: %w", err)
	}
	minConns, err := envx.ParseInt("PORTAL_DB_MIN_CONNS", 0, 0)
	if err != nil {
		return Config{}, fmt.Errorf("database: %w", err)
	}
	if maxConns > math.MaxInt32 || minConns > math.MaxInt32 {
		return Config{}, fmt.Errorf("database: connection count out of range")
	}
	cfg.MaxConns, cfg.MinConns = int32(maxConns), int32(minConns)
	if cfg.AutoMigrate, err = envx.ParseBool("PORTAL_DB_AUTO_MIGRATE", true); err != nil {
		return Config{}, fmt.Errorf("database: %w", err)
	}
	return cfg, nil
}

// DB is the database extension.
type DB struct {
	mu    sync.RWMutex
	cfg   Config
	pool  *pgxpool.Pool
	ready bool
}

// New returns an unbound handle.
func New() *DB { return &DB{} }

// Init opens the pool and validates connectivity.
func (d *DB) Init(ctx context.Context, cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return ErrAlreadyInitialized
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 3 * time.Second
	}
	d.cfg = cfg

	if strings.TrimSpace(cfg.URL) == "" {
		d.ready = true
		return nil
	}

	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 {
		pcfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return err
	}
	if err := ping(ctx, pool, cfg.PingTimeout); err != nil {
		pool.Close()
		return err
	}

	d.pool = pool
	d.ready = true
	return nil
}

// Enabled reports whether a pool is bound.
func (d *DB) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ready && d.pool != nil
}

// Pool returns the bound pool, or nil when unbound or disabled.
func (d *DB) Pool() *pgxpool.Pool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pool
}

func (d *DB) bound() (*pgxpool.Pool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.ready {
		return nil, ErrNotInitialized
	}
	if d.pool == nil {
		return nil, ErrDisabled
	}
	return d.pool, nil
}

// Ping checks that a connection can be acquired within timeout.
func (d *DB) Ping(ctx context.Context, timeout time.Duration) error {
	pool, err := d.bound()
	if err != nil {
		return err
	}
	return ping(ctx, pool, timeout)
}

func ping(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// WithTx runs fn in a transaction. fn's error (or panic) rolls back.
func (d *DB) WithTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	pool, err := d.bound()
	if err != nil {
		return err
	}
	return WithTx(ctx, pool, fn)
}

// WithTx is the pool-level form used by stores that hold a pool directly.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) (err error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateAll applies the embedded schema.
func (d *DB) CreateAll(ctx context.Context) error {
	pool, err := d.bound()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, schemaSQL)
	return err
}

// AutoMigrate reports whether CreateAll should run on boot.
func (d *DB) AutoMigrate() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg.AutoMigrate
}

// Close releases the pool. It is safe to call more than once.
func (d *DB) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
}
