package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"portal/cmd/identity"
	"portal/cmd/internal/auth/jwtauth"
	"portal/cmd/internal/auth/session"
	"portal/cmd/internal/csrf"
	"portal/cmd/internal/ratelimit"
	"portal/cmd/security/password"
	"portal/cmd/security/token"
)

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	users  *identity.MemoryStore
	hasher *password.Bcrypt
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	return newTestEnvWith(t, cfg, nil)
}

// newTestEnvWith lets a test adjust the JWT and CSRF configs before binding.
func newTestEnvWith(t *testing.T, cfg Config, tune func(*jwtauth.Config, *csrf.Config)) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	jcfg := jwtauth.DefaultConfig()
	jcfg.Secret = []byte(strings.Repeat("j", 32))
	ccfg := csrf.DefaultConfig()
	ccfg.Secret = []byte(strings.Repeat("c", 32))
	if tune != nil {
		tune(&jcfg, &ccfg)
	}

	jwt := jwtauth.New()
	require.NoError(t, jwt.Init(jcfg, nil))

	protect := csrf.New()
	require.NoError(t, protect.Init(ccfg))

	pcfg := password.DefaultConfig()
	pcfg.Cost = bcrypt.MinCost + 1
	bc := password.New()
	require.NoError(t, bc.Init(pcfg))

	storage, err := ratelimit.NewMemoryStorage(128)
	require.NoError(t, err)
	limiter := ratelimit.New(ratelimit.RemoteAddr)
	require.NoError(t, limiter.Init(ratelimit.DefaultConfig(), storage, log))

	users := identity.NewMemoryStore()
	svc := session.NewService(session.DefaultConfig(), session.NewMemoryStore(), jwt,
		token.NewHasher([]byte(strings.Repeat("h", 32))), protect)
	jwt.SetBlocklistLoader(svc.TokenRevoked)

	h, err := NewHandler(log, cfg, Deps{
		Users:    users,
		Sessions: svc,
		JWT:      jwt,
		CSRF:     protect,
		Bcrypt:   bc,
		Limiter:  limiter,
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewTLSServer(protect.Middleware(mux))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := srv.Client()
	client.Jar = jar

	return &testEnv{srv: srv, client: client, users: users, hasher: bc}
}

func testConfig() Config {
	return Config{
		MaxBodyBytes:  1 << 16,
		LoginLimit:    "5 per minute",
		RegisterLimit: "10 per minute",
		RefreshLimit:  "10 per minute",
	}
}

func (e *testEnv) do(t *testing.T, method, path, csrfTok string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if csrfTok != "" {
		req.Header.Set("X-CSRF-TOKEN", csrfTok)
	}
	res, err := e.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

func (e *testEnv) csrfToken(t *testing.T) string {
	t.Helper()
	status, body := e.do(t, http.MethodGet, "/api/csrf-token", "", nil)
	require.Equal(t, http.StatusOK, status)
	tok, _ := body["csrf_token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t, testConfig())

	t0 := e.csrfToken(t)
	assert.Equal(t, t0, e.csrfToken(t), "a valid cookie token is reused")

	status, body := e.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "correct horse battery",
	})
	require.Equal(t, http.StatusForbidden, status, "register without CSRF header")

	status, body = e.do(t, http.MethodPost, "/api/register", t0, map[string]string{
		"name": "Ada", "email": "Ada@Example.com", "password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, status, body)
	t1, _ := body["csrf_token"].(string)
	require.NotEmpty(t, t1)
	assert.NotEqual(t, t0, t1)

	status, body = e.do(t, http.MethodGet, "/api/me", "", nil)
	require.Equal(t, http.StatusOK, status, body)
	user, _ := body["user"].(map[string]any)
	assert.Equal(t, "ada@example.com", user["email"])

	assert.Equal(t, t1, e.csrfToken(t), "session CSRF value is served while logged in")

	status, body = e.do(t, http.MethodPost, "/api/refresh", "wrong", nil)
	require.Equal(t, http.StatusForbidden, status, body)

	status, body = e.do(t, http.MethodPost, "/api/refresh", t1, nil)
	require.Equal(t, http.StatusOK, status, body)
	t2, _ := body["csrf_token"].(string)
	require.NotEmpty(t, t2)

	status, _ = e.do(t, http.MethodGet, "/api/me", "", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = e.do(t, http.MethodPost, "/api/logout", t2, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "logout successful", body["msg"])

	status, _ = e.do(t, http.MethodGet, "/api/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestRegister_Validation(t *testing.T) {
	e := newTestEnv(t, testConfig())
	tok := e.csrfToken(t)

	status, body := e.do(t, http.MethodPost, "/api/register", tok, map[string]string{
		"name": "Ada", "email": "not-an-email", "password": "correct horse battery",
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "email")

	status, body = e.do(t, http.MethodPost, "/api/register", tok, map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "password",
	})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "weak_password", body["code"])

	status, _ = e.do(t, http.MethodPost, "/api/register", tok, map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, status)

	tok = e.csrfToken(t)
	status, body = e.do(t, http.MethodPost, "/api/register", tok, map[string]string{
		"name": "Other", "email": "ada@example.com", "password": "correct horse battery",
	})
	require.Equal(t, http.StatusConflict, status, body)
}

func TestLogin_InvalidCredentialsLookAlike(t *testing.T) {
	e := newTestEnv(t, testConfig())
	seedUser(t, e, "grace@example.com", "navy compiler 1952", bcrypt.MinCost+1)
	tok := e.csrfToken(t)

	status, unknown := e.do(t, http.MethodPost, "/api/login", tok, map[string]string{
		"email": "nobody@example.com", "password": "navy compiler 1952",
	})
	require.Equal(t, http.StatusUnauthorized, status)

	status, bad := e.do(t, http.MethodPost, "/api/login", tok, map[string]string{
		"email": "grace@example.com", "password": "wrong password here",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, unknown, bad)
	assert.Equal(t, "invalid credentials", bad["error"])

	status, body := e.do(t, http.MethodPost, "/api/login", tok, map[string]string{
		"email": "GRACE@example.com", "password": "navy compiler 1952",
	})
	require.Equal(t, http.StatusOK, status, body)
	user, _ := body["user"].(map[string]any)
	assert.Equal(t, "grace@example.com", user["email"])
}

func TestLogin_RehashesOnCostChange(t *testing.T) {
	e := newTestEnv(t, testConfig())
	seedUser(t, e, "grace@example.com", "navy compiler 1952", bcrypt.MinCost)
	tok := e.csrfToken(t)

	status, body := e.do(t, http.MethodPost, "/api/login", tok, map[string]string{
		"email": "grace@example.com", "password": "navy compiler 1952",
	})
	require.Equal(t, http.StatusOK, status, body)

	acct, err := e.users.GetUserAuthByEmail(context.Background(), "grace@example.com")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(acct.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

func TestLogin_RehashesAfterCostDecrease(t *testing.T) {
	e := newTestEnv(t, testConfig())
	seedUser(t, e, "hopper@example.com", "navy compiler 1952", 10)
	tok := e.csrfToken(t)

	status, body := e.do(t, http.MethodPost, "/api/login", tok, map[string]string{
		"email": "hopper@example.com", "password": "navy compiler 1952",
	})
	require.Equal(t, http.StatusOK, status, body)

	acct, err := e.users.GetUserAuthByEmail(context.Background(), "hopper@example.com")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(acct.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

func TestLogin_RouteLimit(t *testing.T) {
	cfg := testConfig()
	cfg.LoginLimit = "2 per minute"
	e := newTestEnv(t, cfg)
	tok := e.csrfToken(t)

	creds := map[string]string{"email": "nobody@example.com", "password": "whatever it is"}
	for i := 0; i < 2; i++ {
		status, _ := e.do(t, http.MethodPost, "/api/login", tok, creds)
		require.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := e.do(t, http.MethodPost, "/api/login", tok, creds)
	require.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body["msg"], "2 per 1 minute")
}

func TestRefresh_ReuseRevokesEverything(t *testing.T) {
	e := newTestEnv(t, testConfig())
	tok := e.csrfToken(t)

	status, body := e.do(t, http.MethodPost, "/api/register", tok, map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, status, body)
	t1 := body["csrf_token"].(string)

	u, err := url.Parse(e.srv.URL)
	require.NoError(t, err)
	stale := e.client.Jar.Cookies(u)

	status, _ = e.do(t, http.MethodPost, "/api/refresh", t1, nil)
	require.Equal(t, http.StatusOK, status)

	// Replay the rotated refresh cookie.
	e.client.Jar.SetCookies(u, stale)
	status, body = e.do(t, http.MethodPost, "/api/refresh", t1, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "refresh_reuse_detected", body["code"])

	status, _ = e.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRefresh_AfterIdleLongerThanCSRFTimeLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps past token lifetimes")
	}
	e := newTestEnvWith(t, testConfig(), func(j *jwtauth.Config, c *csrf.Config) {
		j.AccessTTL = time.Second
		c.TimeLimit = 2 * time.Second
	})
	tok := e.csrfToken(t)

	status, body := e.do(t, http.MethodPost, "/api/register", tok, map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, status, body)
	pair := body["csrf_token"].(string)

	// Access cookies and the CSRF cookie are gone; only the refresh cookies remain.
	time.Sleep(3100 * time.Millisecond)

	status, _ = e.do(t, http.MethodPost, "/api/refresh", "", nil)
	require.Equal(t, http.StatusForbidden, status, "refresh without the double-submit header")

	again := e.csrfToken(t)
	assert.Equal(t, pair, again, "csrf-token hands back the refresh token's claim")

	status, body = e.do(t, http.MethodPost, "/api/refresh", again, nil)
	require.Equal(t, http.StatusOK, status, body)
	fresh := body["csrf_token"].(string)
	assert.NotEqual(t, pair, fresh)

	status, _ = e.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestNewHandler_RequiresDeps(t *testing.T) {
	_, err := NewHandler(nil, testConfig(), Deps{})
	require.Error(t, err)
}

func seedUser(t *testing.T, e *testEnv, email, pw string, cost int) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	require.NoError(t, err)
	_, err = e.users.CreateUser(context.Background(), identity.CreateUserInput{
		Email: email, Name: "Grace", PasswordHash: string(hash),
	})
	require.NoError(t, err)
}
