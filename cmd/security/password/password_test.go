package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Cost = bcrypt.MinCost
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "this is a strong password 123!")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "wrong password")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestValidate_MinMax(t *testing.T) {
	cfg := testConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	if err := cfg.Validate("this password is definitely too long"); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := testConfig()

	ok, err := cfg.Verify("not-a-hash", "whatever")
	if err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
	if ok {
		t.Fatalf("expected false")
	}
}

func TestVerify_RejectsExcessiveCost(t *testing.T) {
	cfg := testConfig()
	h, err := bcrypt.GenerateFromPassword([]byte("whatever-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}
	// Same hash, cost field rewritten past the ceiling.
	forged := strings.Replace(string(h), "$04$", "$17$", 1)
	if _, err := bcrypt.Cost([]byte(forged)); err != nil {
		t.Fatalf("bcrypt.Cost(forged): %v", err)
	}
	if _, err := cfg.Verify(forged, "whatever-password"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash for cost above ceiling, got %v", err)
	}
}

func TestVerify_AcceptsHashFromHigherPastCost(t *testing.T) {
	old := testConfig()
	old.Cost = 10
	h, err := old.Hash("whatever-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	cfg := testConfig()
	cfg.Cost = 5
	ok, err := cfg.Verify(h, "whatever-password")
	if err != nil || !ok {
		t.Fatalf("expected match after cost decrease, got ok=%v err=%v", ok, err)
	}
	if !cfg.NeedsRehash(h) {
		t.Fatalf("expected NeedsRehash after cost decrease")
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := testConfig()
	cfg.Policy.RejectVeryWeak = true
	cfg.Policy.MinLength = 8

	for _, pw := range []string{"password", "11111111", "12345678", "aaaaaaaaaa"} {
		if err := cfg.Validate(pw); err != ErrWeakPassword {
			t.Fatalf("Validate(%q): expected ErrWeakPassword, got %v", pw, err)
		}
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestLongPasswords(t *testing.T) {
	long := strings.Repeat("Ab3$", 25) // 100 bytes

	cfg := testConfig()
	if _, err := cfg.Hash(long); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong without prehash, got %v", err)
	}

	cfg.HandleLongPasswords = true
	h, err := cfg.Hash(long)
	if err != nil {
		t.Fatalf("Hash with prehash: %v", err)
	}
	ok, err := cfg.Verify(h, long)
	if err != nil || !ok {
		t.Fatalf("expected prehashed match, ok=%v err=%v", ok, err)
	}
	// Passwords sharing the first 72 bytes must not collide.
	ok, _ = cfg.Verify(h, long[:80]+"different-suffix-here")
	if ok {
		t.Fatalf("expected mismatch for different long password")
	}
}

func TestNeedsRehash(t *testing.T) {
	cfg := testConfig()
	h, err := cfg.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if cfg.NeedsRehash(h) {
		t.Fatalf("same cost must not need rehash")
	}
	cfg.Cost++
	if !cfg.NeedsRehash(h) {
		t.Fatalf("changed cost must need rehash")
	}
	if !cfg.NeedsRehash("garbage") {
		t.Fatalf("garbage hash must need rehash")
	}
}
