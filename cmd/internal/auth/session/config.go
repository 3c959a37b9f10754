package session

import (
	"fmt"
	"time"

	"portal/cmd/internal/envx"
)

// Config tunes session behavior beyond token lifetimes, which belong to the
// JWT manager.
type Config struct {
	// RefreshMinInterval rejects a refresh that follows the previous use of
	// the same session too closely. Zero disables the check.
	RefreshMinInterval time.Duration
}

func DefaultConfig() Config {
	return Config{}
}

// LoadConfigFromEnv reads PORTAL_REFRESH_MIN_INTERVAL.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	d, err := envx.ParseDuration("PORTAL_REFRESH_MIN_INTERVAL", cfg.RefreshMinInterval)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	cfg.RefreshMinInterval = d
	return cfg, nil
}
