// Package ext holds the portal's shared extensions. They are constructed
// unbound by New so that any package can reference them, and bound to the
// application configuration later by InitApp.
//
// The extension packages never import ext; only the app does.
package ext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"portal/cmd/internal/auth/jwtauth"
	"portal/cmd/internal/csrf"
	"portal/cmd/internal/database"
	"portal/cmd/internal/envx"
	"portal/cmd/internal/ratelimit"
	"portal/cmd/security/password"
)

// Extensions holds exactly one instance of each extension.
type Extensions struct {
	Limiter *ratelimit.Limiter
	CSRF    *csrf.Protect
	DB      *database.DB
	Bcrypt  *password.Bcrypt
	JWT     *jwtauth.Manager

	redis *redis.Client
}

// Config gathers the per-extension configuration.
type Config struct {
	Database  database.Config
	Bcrypt    password.Config
	JWT       jwtauth.Config
	CSRF      csrf.Config
	RateLimit ratelimit.Config

	// BlocklistURL selects a Redis JWT blocklist. Empty keeps it in memory.
	BlocklistURL string
}

// New instantiates every extension unbound. It performs no I/O.
func New() *Extensions {
	return &Extensions{
		Limiter: ratelimit.New(ratelimit.RemoteAddr),
		CSRF:    csrf.New(),
		DB:      database.New(),
		Bcrypt:  password.New(),
		JWT:     jwtauth.New(),
	}
}

// LoadConfigFromEnv reads every extension's environment surface.
func LoadConfigFromEnv() (Config, error) {
	var (
		cfg Config
		err error
	)
	if cfg.Database, err = database.LoadConfigFromEnv(); err != nil {
		return Config{}, fmt.Errorf("database: %w", err)
	}
	if cfg.Bcrypt, err = password.FromEnv(); err != nil {
		return Config{}, fmt.Errorf("bcrypt: %w", err)
	}
	if cfg.JWT, err = jwtauth.LoadConfigFromEnv(); err != nil {
		return Config{}, fmt.Errorf("jwt: %w", err)
	}
	if cfg.CSRF, err = csrf.LoadConfigFromEnv(); err != nil {
		return Config{}, fmt.Errorf("csrf: %w", err)
	}
	if cfg.RateLimit, err = ratelimit.LoadConfigFromEnv(); err != nil {
		return Config{}, fmt.Errorf("ratelimit: %w", err)
	}
	cfg.BlocklistURL = envx.String("PORTAL_JWT_BLOCKLIST_URL", "")
	return cfg, nil
}

// InitApp binds every extension, in dependency order. On failure the pooled
// resources opened by this call are released; a previous binding is untouched.
func (e *Extensions) InitApp(ctx context.Context, cfg Config, log *slog.Logger) (err error) {
	if log == nil {
		log = slog.Default()
	}
	var undo []func()
	defer func() {
		if err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				undo[i]()
			}
		}
	}()

	if err := e.DB.Init(ctx, cfg.Database); err != nil {
		return fmt.Errorf("ext: db: %w", err)
	}
	undo = append(undo, e.DB.Close)

	if err := e.Bcrypt.Init(cfg.Bcrypt); err != nil {
		return fmt.Errorf("ext: bcrypt: %w", err)
	}

	client, err := openRedis(ctx, cfg.BlocklistURL)
	if err != nil {
		return fmt.Errorf("ext: jwt blocklist: %w", err)
	}
	var bl jwtauth.Blocklist
	if client != nil {
		undo = append(undo, func() { _ = client.Close() })
		bl = jwtauth.NewRedisBlocklist(client, "")
	}
	if err := e.JWT.Init(cfg.JWT, bl); err != nil {
		return fmt.Errorf("ext: jwt: %w", err)
	}

	if err := e.CSRF.Init(cfg.CSRF); err != nil {
		return fmt.Errorf("ext: csrf: %w", err)
	}

	storage, err := ratelimit.OpenStorage(ctx, cfg.RateLimit.StorageURI, cfg.RateLimit.MemoryKeys)
	if err != nil {
		return fmt.Errorf("ext: ratelimit storage: %w", err)
	}
	if err := e.Limiter.Init(cfg.RateLimit, storage, log); err != nil {
		_ = storage.Close()
		return fmt.Errorf("ext: ratelimit: %w", err)
	}

	e.redis = client
	log.Info("ext.init.ok",
		"db", e.DB.Enabled(),
		"blocklist", blocklistKind(cfg.BlocklistURL),
		"ratelimit_storage", storageKind(cfg.RateLimit.StorageURI),
		"ratelimit_strategy", string(cfg.RateLimit.Strategy),
	)
	return nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Close releases pooled resources: the DB pool, the blocklist Redis client
// and the limiter storage.
func (e *Extensions) Close(_ context.Context) error {
	var errs []error
	if err := e.Limiter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("ratelimit: %w", err))
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
		e.redis = nil
	}
	e.DB.Close()
	return errors.Join(errs...)
}

func blocklistKind(url string) string {
	if url == "" {
		return "memory"
	}
	return "redis"
}

func storageKind(uri string) string {
	if strings.HasPrefix(strings.TrimSpace(uri), "redis") {
		return "redis"
	}
	return "memory"
}
