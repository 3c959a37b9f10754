package ext

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"portal/cmd/internal/auth/jwtauth"
	"portal/cmd/internal/csrf"
	"portal/cmd/internal/database"
	"portal/cmd/internal/ratelimit"
	"portal/cmd/security/password"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig() Config {
	pw := password.DefaultConfig()
	pw.Cost = bcrypt.MinCost

	jwt := jwtauth.DefaultConfig()
	jwt.Secret = []byte(strings.Repeat("j", 32))

	cs := csrf.DefaultConfig()
	cs.Secret = []byte(strings.Repeat("c", 32))

	return Config{
		Bcrypt:    pw,
		JWT:       jwt,
		CSRF:      cs,
		RateLimit: ratelimit.DefaultConfig(),
	}
}

func TestNew_Unbound(t *testing.T) {
	e := New()
	ctx := context.Background()

	_, err := e.CSRF.GenerateToken(time.Now())
	assert.ErrorIs(t, err, csrf.ErrNotInitialized)

	_, _, err = e.JWT.CreateAccessToken("u1", jwtauth.TokenOptions{})
	assert.ErrorIs(t, err, jwtauth.ErrNotInitialized)

	_, err = e.Bcrypt.GeneratePasswordHash("correct horse battery")
	assert.ErrorIs(t, err, password.ErrNotInitialized)

	assert.ErrorIs(t, e.DB.Ping(ctx, time.Second), database.ErrNotInitialized)

	_, err = e.Limiter.Check(ctx, "scope", "key", ratelimit.MustParseLimits("1/second"))
	assert.ErrorIs(t, err, ratelimit.ErrNotInitialized)
}

func TestInitApp_Memory(t *testing.T) {
	e := New()
	ctx := context.Background()
	require.NoError(t, e.InitApp(ctx, testConfig(), discard()))
	t.Cleanup(func() { _ = e.Close(ctx) })

	assert.False(t, e.DB.Enabled())
	assert.ErrorIs(t, e.DB.Ping(ctx, time.Second), database.ErrDisabled)

	tok, err := e.CSRF.GenerateToken(time.Now())
	require.NoError(t, err)
	require.NoError(t, e.CSRF.ValidateToken(tok, time.Now()))

	hash, err := e.Bcrypt.GeneratePasswordHash("correct horse battery")
	require.NoError(t, err)
	ok, err := e.Bcrypt.CheckPasswordHash(hash, "correct horse battery")
	require.NoError(t, err)
	assert.True(t, ok)

	_, claims, err := e.JWT.CreateAccessToken("u1", jwtauth.TokenOptions{})
	require.NoError(t, err)
	require.NoError(t, e.JWT.Revoke(ctx, claims))
	revoked, err := e.JWT.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	d, err := e.Limiter.Check(ctx, "scope", "1.2.3.4", ratelimit.MustParseLimits("1/minute"))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	d, err = e.Limiter.Check(ctx, "scope", "1.2.3.4", ratelimit.MustParseLimits("1/minute"))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestInitApp_SecondCallKeepsFirstBinding(t *testing.T) {
	e := New()
	ctx := context.Background()
	require.NoError(t, e.InitApp(ctx, testConfig(), discard()))
	t.Cleanup(func() { _ = e.Close(ctx) })

	other := testConfig()
	other.JWT.Issuer = "someone-else"
	err := e.InitApp(ctx, other, discard())
	require.ErrorIs(t, err, database.ErrAlreadyInitialized)

	cfg, err := e.JWT.Config()
	require.NoError(t, err)
	assert.Equal(t, "portal", cfg.Issuer)
}

func TestInitApp_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := testConfig()
	cfg.BlocklistURL = "redis://" + mr.Addr()
	cfg.RateLimit.StorageURI = "redis://" + mr.Addr()

	e := New()
	require.NoError(t, e.InitApp(ctx, cfg, discard()))
	t.Cleanup(func() { _ = e.Close(ctx) })

	_, claims, err := e.JWT.CreateAccessToken("u1", jwtauth.TokenOptions{})
	require.NoError(t, err)
	require.NoError(t, e.JWT.Revoke(ctx, claims))
	assert.True(t, mr.Exists("portal:jwt:blocklist:"+claims.ID))

	_, err = e.Limiter.Check(ctx, "scope", "1.2.3.4", ratelimit.MustParseLimits("5/minute"))
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 2)
}

func TestInitApp_FailureReportsStage(t *testing.T) {
	cfg := testConfig()
	cfg.CSRF.Secret = []byte("short")

	err := New().InitApp(context.Background(), cfg, discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ext: csrf")
	assert.ErrorIs(t, err, csrf.ErrConfig)

	cfg = testConfig()
	cfg.BlocklistURL = "redis://127.0.0.1:1"
	err = New().InitApp(context.Background(), cfg, discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt blocklist")
}
