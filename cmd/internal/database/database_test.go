package database

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestDisabledMode(t *testing.T) {
	d := New()
	if d.Enabled() {
		t.Fatalf("unbound handle reports enabled")
	}
	if err := d.Ping(context.Background(), time.Second); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Ping before Init err=%v want ErrNotInitialized", err)
	}

	if err := d.Init(context.Background(), Config{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if d.Enabled() || d.Pool() != nil {
		t.Fatalf("empty URL must bind in disabled mode")
	}
	if err := d.CreateAll(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("CreateAll err=%v want ErrDisabled", err)
	}
	if err := d.Init(context.Background(), Config{}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second Init err=%v want ErrAlreadyInitialized", err)
	}
	d.Close()
	d.Close()
}

func TestInit_BadURL(t *testing.T) {
	d := New()
	if err := d.Init(context.Background(), Config{URL: "::not a url::"}); err == nil {
		t.Fatalf("expected parse error")
	}
	if d.Enabled() {
		t.Fatalf("failed Init must leave the handle unbound")
	}
}

func TestSchemaIsIdempotent(t *testing.T) {
	var body []string
	for _, line := range strings.Split(schemaSQL, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			body = append(body, line)
		}
	}
	for _, stmt := range strings.Split(strings.Join(body, "\n"), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if !strings.Contains(stmt, "IF NOT EXISTS") {
			t.Fatalf("statement is not idempotent: %q", stmt)
		}
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORTAL_DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("PORTAL_DB_MAX_CONNS", "4")
	t.Setenv("PORTAL_DB_AUTO_MIGRATE", "false")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.MaxConns != 4 || cfg.AutoMigrate {
		t.Fatalf("cfg=%+v", cfg)
	}

	t.Setenv("PORTAL_DB_MAX_CONNS", "-1")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatalf("expected error for negative max conns")
	}
}

func TestPostgres_CreateAllAndTx(t *testing.T) {
	url := os.Getenv("PORTAL_DATABASE_URL")
	if url == "" {
		t.Skip("PORTAL_DATABASE_URL not set")
	}
	ctx := context.Background()

	d := New()
	if err := d.Init(ctx, Config{URL: url, MaxConns: 2}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(d.Close)

	if err := d.CreateAll(ctx); err != nil {
		t.Fatalf("CreateAll: %v", err)
	}
	if err := d.CreateAll(ctx); err != nil {
		t.Fatalf("CreateAll (second run): %v", err)
	}

	sentinel := errors.New("boom")
	err := d.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `CREATE TEMP TABLE tx_probe (n int) ON COMMIT DROP`); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithTx err=%v want sentinel", err)
	}
}
