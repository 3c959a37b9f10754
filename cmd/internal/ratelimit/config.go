package ratelimit

import (
	"fmt"
	"strings"

	"portal/cmd/internal/envx"
)

// Strategy selects the counting algorithm.
type Strategy string

const (
	FixedWindow Strategy = "fixed-window"
	TokenBucket Strategy = "token-bucket"
)

// Config binds a Limiter.
type Config struct {
	Enabled        bool
	Strategy       Strategy
	DefaultLimits  []Limit
	HeadersEnabled bool
	KeyPrefix      string

	StorageURI string
	MemoryKeys int
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Strategy:       FixedWindow,
		HeadersEnabled: true,
		KeyPrefix:      "LIMITER",
		StorageURI:     "memory://",
		MemoryKeys:     DefaultMemoryKeys,
	}
}

// LoadConfigFromEnv reads PORTAL_RATELIMIT_* variables:
// ENABLED, STRATEGY, DEFAULT, HEADERS_ENABLED, KEY_PREFIX, STORAGE_URI, MEMORY_KEYS.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	var err error
	if cfg.Enabled, err = envx.ParseBool("PORTAL_RATELIMIT_ENABLED", cfg.Enabled); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if cfg.HeadersEnabled, err = envx.ParseBool("PORTAL_RATELIMIT_HEADERS_ENABLED", cfg.HeadersEnabled); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	cfg.Strategy = Strategy(strings.ToLower(envx.String("PORTAL_RATELIMIT_STRATEGY", string(cfg.Strategy))))
	if v := envx.String("PORTAL_RATELIMIT_DEFAULT", ""); v != "" {
		if cfg.DefaultLimits, err = ParseLimits(v); err != nil {
			return Config{}, err
		}
	}
	cfg.KeyPrefix = envx.String("PORTAL_RATELIMIT_KEY_PREFIX", cfg.KeyPrefix)
	cfg.StorageURI = envx.String("PORTAL_RATELIMIT_STORAGE_URI", cfg.StorageURI)
	if cfg.MemoryKeys, err = envx.ParseInt("PORTAL_RATELIMIT_MEMORY_KEYS", cfg.MemoryKeys, 1); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Strategy {
	case FixedWindow, TokenBucket:
	default:
		return ErrConfig
	}
	for _, l := range c.DefaultLimits {
		if l.Amount <= 0 || l.Per <= 0 {
			return ErrInvalidLimit
		}
	}
	return nil
}
