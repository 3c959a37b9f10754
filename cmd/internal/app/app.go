// Package app wires the portal server runtime: config, logging, extensions,
// persistence and HTTP routes.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"portal/cmd/identity"
	authapi "portal/cmd/internal/auth/api"
	"portal/cmd/internal/auth/session"
	"portal/cmd/internal/catalog"
	"portal/cmd/internal/ext"
	"portal/cmd/security/token"
)

// App is the portal server runtime: it owns the extensions and the HTTP handler.
type App struct {
	cfg Config
	log Logger

	ext     *ext.Extensions
	handler http.Handler
}

// stores groups the persistence chosen at boot.
type stores struct {
	users    identity.Store
	sessions session.Store
	catalog  catalog.Store
	auditor  authapi.Auditor
}

// New binds the extensions and wires every route.
func New(ctx context.Context, cfg Config, ec ext.Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := ValidateSecurityConfig(cfg, ec); err != nil {
		return nil, err
	}

	ex := ext.New()
	if err := ex.InitApp(ctx, ec, log); err != nil {
		return nil, err
	}

	a, err := wire(ctx, cfg, ex, log)
	if err != nil {
		_ = ex.Close(ctx)
		return nil, err
	}
	return a, nil
}

func wire(ctx context.Context, cfg Config, ex *ext.Extensions, log Logger) (*App, error) {
	if ex.DB.Enabled() && ex.DB.AutoMigrate() {
		if err := ex.DB.CreateAll(ctx); err != nil {
			return nil, err
		}
		log.Info("db.schema.applied")
	}

	st, err := newStores(ex, log)
	if err != nil {
		return nil, err
	}

	hasher, err := token.HasherFromEnv(cfg.RequireTokenHMAC)
	if err != nil {
		return nil, err
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	sessions := session.NewService(sessCfg, st.sessions, ex.JWT, hasher, ex.CSRF)
	ex.JWT.SetBlocklistLoader(sessions.TokenRevoked)

	auth, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), authapi.Deps{
		Users:    st.users,
		Sessions: sessions,
		JWT:      ex.JWT,
		CSRF:     ex.CSRF,
		Bcrypt:   ex.Bcrypt,
		Limiter:  ex.Limiter,
		Auditor:  st.auditor,
	})
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, log, cfg, ex, auth, catalog.NewHandler(st.catalog, log))

	return &App{
		cfg:     cfg,
		log:     log,
		ext:     ex,
		handler: buildHandler(mux, log, cfg, ex),
	}, nil
}

// newStores decides between Postgres-backed persistence and the in-memory dev stores.
func newStores(ex *ext.Extensions, log Logger) (stores, error) {
	if !ex.DB.Enabled() {
		log.Info("db.disabled.inmemory_store")
		return stores{
			users:    identity.NewMemoryStore(),
			sessions: session.NewMemoryStore(),
			catalog:  catalog.NewMemoryStore(),
			auditor:  authapi.LogAuditor{Log: log},
		}, nil
	}

	pool := ex.DB.Pool()
	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		return stores{}, err
	}
	log.Info("db.enabled.postgres_store")
	return stores{
		users:    users,
		sessions: session.NewPostgresStore(pool),
		catalog:  catalog.NewPostgresStore(pool),
		auditor:  authapi.NewPostgresAuditor(pool, log),
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "url", runtimeBaseURL(a.cfg.HTTPAddr), "db_enabled", a.ext.DB.Enabled(), "env", a.cfg.Env)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.ext.Close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	// Close extension resources (pool, redis).
	if err := a.ext.Close(shutdownCtx); err != nil {
		a.log.Error("ext.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

// runtimeBaseURL turns a listen address into a URL a local client can open.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
