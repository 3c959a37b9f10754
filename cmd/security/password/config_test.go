package password

import (
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv := []string{
		"PORTAL_BCRYPT_LOG_ROUNDS",
		"PORTAL_BCRYPT_HANDLE_LONG_PASSWORDS",
		"PORTAL_PASSWORD_MIN_LEN",
		"PORTAL_PASSWORD_MAX_LEN",
		"PORTAL_PASSWORD_REJECT_VERY_WEAK",
	}
	for _, k := range clearEnv {
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy.MinLength != def.Policy.MinLength {
		t.Fatalf("min length mismatch")
	}
	if cfg.Cost != def.Cost {
		t.Fatalf("cost mismatch: %d", cfg.Cost)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("PORTAL_BCRYPT_LOG_ROUNDS", "10")
	t.Setenv("PORTAL_BCRYPT_HANDLE_LONG_PASSWORDS", "yes")
	t.Setenv("PORTAL_PASSWORD_MIN_LEN", "10")
	t.Setenv("PORTAL_PASSWORD_MAX_LEN", "200")
	t.Setenv("PORTAL_PASSWORD_REJECT_VERY_WEAK", "false")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Cost != 10 || !cfg.HandleLongPasswords {
		t.Fatalf("bcrypt override failed: %+v", cfg)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"min>max":    {"PORTAL_PASSWORD_MIN_LEN", "500"},
		"cost range": {"PORTAL_BCRYPT_LOG_ROUNDS", "40"},
		"bool":       {"PORTAL_BCRYPT_HANDLE_LONG_PASSWORDS", "maybe"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("PORTAL_PASSWORD_MAX_LEN", "128")
			t.Setenv(kv[0], kv[1])
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
