package authapi

import (
	"fmt"

	"portal/cmd/internal/envx"
	"portal/cmd/internal/ratelimit"
)

// Config controls auth API behavior.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// Per-route limits in ratelimit notation.
	LoginLimit    string
	RegisterLimit string
	RefreshLimit  string
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:    envx.Bool("PORTAL_TRUST_PROXY", false),
		MaxBodyBytes:  envx.Int64("PORTAL_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		LoginLimit:    envx.String("PORTAL_AUTH_LOGIN_LIMIT", "5 per minute"),
		RegisterLimit: envx.String("PORTAL_AUTH_REGISTER_LIMIT", "10 per hour"),
		RefreshLimit:  envx.String("PORTAL_AUTH_REFRESH_LIMIT", "30 per minute"),
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return cfg
}

// Validate rejects route limits the limiter could not parse or that name no limit.
func (c Config) Validate() error {
	for name, spec := range map[string]string{
		"login":    c.LoginLimit,
		"register": c.RegisterLimit,
		"refresh":  c.RefreshLimit,
	} {
		limits, err := ratelimit.ParseLimits(spec)
		if err != nil {
			return fmt.Errorf("authapi: %s limit: %w", name, err)
		}
		if len(limits) == 0 {
			return fmt.Errorf("authapi: %s limit: %w: %q names no limit", name, ratelimit.ErrInvalidLimit, spec)
		}
	}
	return nil
}
