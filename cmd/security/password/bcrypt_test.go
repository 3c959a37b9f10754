package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_UnboundReturnsNotInitialized(t *testing.T) {
	b := New()

	if _, err := b.GeneratePasswordHash("whatever-password"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := b.CheckPasswordHash("$2a$04$x", "whatever"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	// Must not panic while unbound.
	b.DummyVerify("whatever")
}

func TestBcrypt_InitAndUse(t *testing.T) {
	b := New()
	if err := b.Init(testConfig()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := b.Init(testConfig()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if err := b.Init(Config{Cost: bcrypt.MaxCost + 1}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("invalid config on a bound instance: expected ErrAlreadyInitialized, got %v", err)
	}

	h, err := b.GeneratePasswordHash("a perfectly fine pass")
	if err != nil {
		t.Fatalf("GeneratePasswordHash: %v", err)
	}
	ok, err := b.CheckPasswordHash(h, "a perfectly fine pass")
	if err != nil || !ok {
		t.Fatalf("CheckPasswordHash ok=%v err=%v", ok, err)
	}
	if b.NeedsRehash(h) {
		t.Fatalf("fresh hash must not need rehash")
	}
	b.DummyVerify("anything")
}

func TestBcrypt_InitRejectsBadCost(t *testing.T) {
	cfg := testConfig()
	cfg.Cost = 99
	if err := New().Init(cfg); err == nil {
		t.Fatalf("expected error for out-of-range cost")
	}
}
