package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"portal/cmd/internal/envx"
)

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int
	MaxLength int
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	// Cost is the bcrypt log2 work factor.
	Cost int
	// HandleLongPasswords pre-hashes inputs longer than 72 bytes with SHA-256.
	HandleLongPasswords bool
	Policy              Policy
}

// DefaultConfig returns the baseline used when no env overrides are present.
func DefaultConfig() Config {
	return Config{
		Cost:                12,
		HandleLongPasswords: false,
		Policy: Policy{
			MinLength:      8,
			MaxLength:      128,
			RejectVeryWeak: true,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - PORTAL_BCRYPT_LOG_ROUNDS
// - PORTAL_BCRYPT_HANDLE_LONG_PASSWORDS (true/false)
// - PORTAL_PASSWORD_MIN_LEN
// - PORTAL_PASSWORD_MAX_LEN
// - PORTAL_PASSWORD_REJECT_VERY_WEAK (true/false)
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	ints := []struct {
		key      string
		min, max int
		dst      *int
	}{
		{"PORTAL_BCRYPT_LOG_ROUNDS", bcrypt.MinCost, bcrypt.MaxCost, &cfg.Cost},
		{"PORTAL_PASSWORD_MIN_LEN", 1, 1024, &cfg.Policy.MinLength},
		{"PORTAL_PASSWORD_MAX_LEN", 1, 4096, &cfg.Policy.MaxLength},
	}
	for _, it := range ints {
		n, err := envx.ParseIntRange(it.key, *it.dst, it.min, it.max)
		if err != nil {
			return Config{}, err
		}
		*it.dst = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"PORTAL_BCRYPT_HANDLE_LONG_PASSWORDS", &cfg.HandleLongPasswords},
		{"PORTAL_PASSWORD_REJECT_VERY_WEAK", &cfg.Policy.RejectVeryWeak},
	}
	for _, b := range bools {
		v, err := envx.ParseBool(b.key, *b.dst)
		if err != nil {
			return Config{}, err
		}
		*b.dst = v
	}

	if err := cfg.check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) check() error {
	if c.Cost < bcrypt.MinCost || c.Cost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost %d out of range [%d..%d]", c.Cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			c.Policy.MinLength,
			c.Policy.MaxLength,
		)
	}
	return nil
}
