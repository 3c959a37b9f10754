package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"portal/cmd/internal/auth/jwtauth"
	"portal/cmd/internal/csrf"
	"portal/cmd/internal/ext"
	"portal/cmd/internal/ratelimit"
	"portal/cmd/security/password"
)

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v4", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
		{name: "port only", in: ":5000", want: "http://127.0.0.1:5000"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func testExtConfig() ext.Config {
	pw := password.DefaultConfig()
	pw.Cost = bcrypt.MinCost

	jwt := jwtauth.DefaultConfig()
	jwt.Secret = []byte(strings.Repeat("j", 32))

	cs := csrf.DefaultConfig()
	cs.Secret = []byte(strings.Repeat("c", 32))

	return ext.Config{Bcrypt: pw, JWT: jwt, CSRF: cs, RateLimit: ratelimit.DefaultConfig()}
}

func testAppConfig() Config {
	return Config{
		HTTPAddr:             "127.0.0.1:0",
		CORSAllowedOrigins:   []string{"https://app.example.com"},
		CORSAllowCredentials: true,
		MetricsEnabled:       true,
	}
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func (c client) do(method, path, csrfTok string, body any) (*http.Response, map[string]any) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	if csrfTok != "" {
		req.Header.Set("X-CSRF-TOKEN", csrfTok)
	}
	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return res, out
}

func TestApp_EndToEnd(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(ctx, testAppConfig(), testExtConfig(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.ext.Close(ctx) })

	srv := httptest.NewTLSServer(a.Handler())
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	hc := srv.Client()
	hc.Jar = jar
	c := client{t: t, base: srv.URL, http: hc}

	res, _ := c.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))

	res, _ = c.do(http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body := c.do(http.MethodGet, "/api/ncaaa", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["success"])

	res, body = c.do(http.MethodGet, "/api/csrf-token", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	tok := body["csrf_token"].(string)

	res, body = c.do(http.MethodPost, "/api/register", tok, map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)
	tok = body["csrf_token"].(string)

	res, body = c.do(http.MethodPost, "/api/ncaaa", "", map[string]string{"code": "CS101", "title": "Intro"})
	require.Equal(t, http.StatusForbidden, res.StatusCode, "course creation is CSRF protected")

	res, body = c.do(http.MethodPost, "/api/ncaaa", tok, map[string]string{"code": "CS101", "title": "Intro"})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)

	res, body = c.do(http.MethodPost, "/api/orcid/researches", tok, map[string]any{"title": "Notes", "year": 2020})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)

	res, body = c.do(http.MethodGet, "/api/orcid/researches", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, body["researches"], 1)

	res, body = c.do(http.MethodPost, "/api/logout", tok, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, body)

	res, _ = c.do(http.MethodGet, "/api/orcid/researches", "", nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = c.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestNew_RejectsInsecureProduction(t *testing.T) {
	cfg := testAppConfig()
	cfg.Env = "production"
	ec := testExtConfig()
	ec.JWT.CookieSecure = false

	_, err := New(context.Background(), cfg, ec, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestValidateSecurityConfig(t *testing.T) {
	ec := testExtConfig()

	cfg := testAppConfig()
	require.NoError(t, ValidateSecurityConfig(cfg, ec))

	cfg.CORSAllowedOrigins = []string{"*"}
	require.Error(t, ValidateSecurityConfig(cfg, ec))

	cfg = testAppConfig()
	cfg.RequireTokenHMAC = true
	t.Setenv("PORTAL_TOKEN_HMAC_KEY", "")
	require.Error(t, ValidateSecurityConfig(cfg, ec))

	t.Setenv("PORTAL_TOKEN_HMAC_KEY", "short")
	require.Error(t, ValidateSecurityConfig(cfg, ec))

	t.Setenv("PORTAL_TOKEN_HMAC_KEY", strings.Repeat("k", 32))
	require.NoError(t, ValidateSecurityConfig(cfg, ec))

	cfg.Env = "production"
	require.NoError(t, ValidateSecurityConfig(cfg, ec))

	same := ec
	same.CSRF.Secret = ec.JWT.Secret
	require.Error(t, ValidateSecurityConfig(cfg, same))
}
