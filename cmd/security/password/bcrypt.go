package password

import (
	"sync"
)

// Bcrypt is the shared hashing extension. It is constructed unbound by New and
// becomes usable once Init has been called with the application config.
type Bcrypt struct {
	mu    sync.RWMutex
	cfg   Config
	ready bool

	dummy string
}

// New returns an unbound Bcrypt extension.
func New() *Bcrypt {
	return &Bcrypt{}
}

// Init binds the extension to cfg. It also precomputes a dummy hash used to
// equalize timing when a login names an unknown account.
func (b *Bcrypt) Init(cfg Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		return ErrAlreadyInitialized
	}
	if err := cfg.check(); err != nil {
		return err
	}

	timing := cfg
	timing.Policy = Policy{MinLength: 0, MaxLength: 1 << 10}
	dummy, err := timing.Hash("portal-dummy-password-for-timing-only")
	if err != nil {
		return err
	}

	b.cfg = cfg
	b.dummy = dummy
	b.ready = true
	return nil
}

func (b *Bcrypt) config() (Config, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.ready {
		return Config{}, ErrNotInitialized
	}
	return b.cfg, nil
}

// Config returns the bound configuration.
func (b *Bcrypt) Config() (Config, error) { return b.config() }

// GeneratePasswordHash hashes password with the bound cost after policy checks.
func (b *Bcrypt) GeneratePasswordHash(password string) (string, error) {
	cfg, err := b.config()
	if err != nil {
		return "", err
	}
	return cfg.Hash(password)
}

// CheckPasswordHash reports whether password matches hash.
func (b *Bcrypt) CheckPasswordHash(hash, password string) (bool, error) {
	cfg, err := b.config()
	if err != nil {
		return false, err
	}
	return cfg.Verify(hash, password)
}

// NeedsRehash reports whether hash should be regenerated at the bound cost.
func (b *Bcrypt) NeedsRehash(hash string) bool {
	cfg, err := b.config()
	if err != nil {
		return false
	}
	return cfg.NeedsRehash(hash)
}

// DummyVerify burns one verification against a fixed hash.
func (b *Bcrypt) DummyVerify(password string) {
	b.mu.RLock()
	dummy, cfg, ready := b.dummy, b.cfg, b.ready
	b.mu.RUnlock()
	if !ready {
		return
	}
	_, _ = cfg.Verify(dummy, password)
}
