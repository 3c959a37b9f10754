package authapi

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"portal/cmd/identity"
	"portal/cmd/internal/auth/jwtauth"
	"portal/cmd/internal/auth/session"
	"portal/cmd/internal/csrf"
	"portal/cmd/internal/ratelimit"
	"portal/cmd/internal/web"
	"portal/cmd/security/password"
)

// Deps are the services the auth endpoints run on. Limiter and Auditor are optional.
type Deps struct {
	Users    identity.Store
	Sessions *session.Service
	JWT      *jwtauth.Manager
	CSRF     *csrf.Protect
	Bcrypt   *password.Bcrypt
	Limiter  *ratelimit.Limiter
	Auditor  Auditor
}

// Handler wires HTTP auth endpoints to identity/session services.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.Store
	sessions *session.Service
	jwt      *jwtauth.Manager
	csrf     *csrf.Protect
	bcrypt   *password.Bcrypt
	limiter  *ratelimit.Limiter
	auditor  Auditor
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, deps Deps) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	switch {
	case deps.Users == nil:
		return nil, errors.New("authapi: nil user store")
	case deps.Sessions == nil:
		return nil, errors.New("authapi: nil session service")
	case deps.JWT == nil, deps.CSRF == nil, deps.Bcrypt == nil:
		return nil, errors.New("authapi: extensions not provided")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	auditor := deps.Auditor
	if auditor == nil {
		auditor = LogAuditor{Log: log}
	}

	return &Handler{
		log:      log,
		cfg:      cfg,
		users:    deps.Users,
		sessions: deps.Sessions,
		jwt:      deps.JWT,
		csrf:     deps.CSRF,
		bcrypt:   deps.Bcrypt,
		limiter:  deps.Limiter,
		auditor:  auditor,
	}, nil
}

// Register wires auth routes onto mux. Refresh and logout are checked against
// the JWT's own CSRF claim, so they are exempted from the CSRF extension.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	h.csrf.Exempt("/api/refresh")
	h.csrf.Exempt("/api/logout")
	h.csrf.Exempt("/api/logout_all")

	access := jwtauth.VerifyOptions{}
	mux.HandleFunc("GET /api/csrf-token", h.handleCSRFToken)
	mux.Handle("POST /api/register", h.limit(h.cfg.RegisterLimit, h.handleRegister))
	mux.Handle("POST /api/login", h.limit(h.cfg.LoginLimit, h.handleLogin))
	mux.Handle("POST /api/refresh", h.limit(h.cfg.RefreshLimit, h.handleRefresh))
	mux.Handle("POST /api/logout", h.jwt.Required(access, http.HandlerFunc(h.handleLogout)))
	mux.Handle("POST /api/logout_all", h.jwt.Required(access, http.HandlerFunc(h.handleLogoutAll)))
	mux.Handle("GET /api/me", h.jwt.Required(access, http.HandlerFunc(h.handleMe)))
}

func (h *Handler) limit(spec string, fn http.HandlerFunc) http.Handler {
	if h.limiter == nil {
		return fn
	}
	return h.limiter.Limit(spec, fn)
}

// ---- handlers ----

// handleCSRFToken hands out the token the client must echo in X-CSRF-TOKEN.
// A live access token's claim is preferred while it passes the CSRF age
// check. A refresh token's claim is returned regardless of age: /api/refresh
// is exempt from the CSRF extension and only needs the double-submit match.
// Otherwise a still valid cookie is reused before minting a new one.
func (h *Handler) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	tok, ok := h.jwt.CSRFFromCookie(r, false)
	if ok && h.csrf.ValidateToken(tok, now) != nil {
		ok = false
	}
	if !ok {
		tok, ok = h.jwt.CSRFFromCookie(r, true)
	}
	if !ok {
		tok, ok = h.csrf.TokenFromCookie(r, now)
	}
	if !ok {
		var err error
		if tok, err = h.csrf.GenerateToken(now); err != nil {
			h.log.Error("auth.csrf.generate.fail", "err", err)
			web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}

	h.csrf.SetCookie(w, tok)
	web.WriteJSON(w, http.StatusOK, csrfResponse{CSRFToken: tok})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	hash, err := h.bcrypt.GeneratePasswordHash(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrPasswordTooShort),
			errors.Is(err, password.ErrPasswordTooLong),
			errors.Is(err, password.ErrWeakPassword):
			web.WriteError(w, http.StatusBadRequest, "weak_password", err.Error())
		default:
			h.log.Error("auth.register.hash.fail", "err", err)
			web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Now:          now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			web.WriteError(w, http.StatusConflict, "email_taken", "email already registered")
		case identity.IsInvalidInput(err):
			web.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			h.log.Error("auth.register.create.fail", "err", err)
			web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	dev := h.device(r)
	issued, ok := h.issue(w, r, u.ID, dev, "auth.register")
	if !ok {
		return
	}
	h.audit(ctx, "auth.register", u.ID, issued.SessionID, dev.IP, dev.UserAgent, nil)
	web.WriteJSON(w, http.StatusCreated, userResponse{User: u, CSRFToken: issued.CSRF})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	dev := h.device(r)
	email := identity.NormalizeEmail(req.Email)

	acct, err := h.users.GetUserAuthByEmail(ctx, email)
	if err != nil {
		if !identity.IsNotFound(err) {
			h.log.Error("auth.login.lookup.fail", "err", err)
			web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		h.bcrypt.DummyVerify(req.Password)
		h.audit(ctx, "auth.login.failed", "", "", dev.IP, dev.UserAgent, map[string]any{"email": email, "reason": "not_found"})
		writeInvalidCredentials(w)
		return
	}

	ok, err := h.bcrypt.CheckPasswordHash(acct.PasswordHash, req.Password)
	if err != nil || !ok {
		if err != nil {
			h.log.Warn("auth.login.verify.fail", "user_id", acct.ID, "err", err)
		}
		h.audit(ctx, "auth.login.failed", acct.ID, "", dev.IP, dev.UserAgent, map[string]any{"email": email, "reason": "bad_password"})
		writeInvalidCredentials(w)
		return
	}

	if h.bcrypt.NeedsRehash(acct.PasswordHash) {
		h.rehash(r, acct.ID, req.Password)
	}

	issued, ok := h.issue(w, r, acct.ID, dev, "auth.login")
	if !ok {
		return
	}
	h.audit(ctx, "auth.login.success", acct.ID, issued.SessionID, dev.IP, dev.UserAgent, nil)
	web.WriteJSON(w, http.StatusOK, userResponse{User: acct.User, CSRFToken: issued.CSRF})
}

// rehash upgrades a stored hash to the bound cost. Failures only cost the upgrade.
func (h *Handler) rehash(r *http.Request, userID, pw string) {
	hash, err := h.bcrypt.GeneratePasswordHash(pw)
	if err != nil {
		h.log.Warn("auth.login.rehash.skip", "user_id", userID, "err", err)
		return
	}
	if err := h.users.UpdatePasswordHash(r.Context(), userID, hash, time.Now().UTC()); err != nil {
		h.log.Error("auth.login.rehash.fail", "user_id", userID, "err", err)
		return
	}
	h.log.Info("auth.login.rehash", "user_id", userID)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.jwt.Verify(r, jwtauth.VerifyOptions{Refresh: true}); err != nil {
		h.writeTokenError(w, err, "auth.refresh.verify.fail")
		return
	}
	raw, err := h.jwt.Token(r, true)
	if err != nil {
		h.writeTokenError(w, err, "auth.refresh.token.fail")
		return
	}

	ctx := r.Context()
	dev := h.device(r)
	issued, err := h.sessions.RotateRefresh(ctx, time.Now().UTC(), raw, dev)
	if err != nil {
		var rlErr session.RefreshRateLimitError
		switch {
		case errors.As(err, &rlErr):
			h.audit(ctx, "auth.refresh.rate_limited", "", rlErr.SessionID, dev.IP, dev.UserAgent, map[string]any{
				"retry_after_s": int64(rlErr.RetryAfter.Seconds()),
			})
			writeRateLimited(w, rlErr.RetryAfter)
		case errors.Is(err, session.ErrRefreshReuseDetected):
			h.audit(ctx, "auth.refresh.reuse_detected", "", "", dev.IP, dev.UserAgent, nil)
			h.jwt.UnsetJWTCookies(w)
			web.WriteError(w, http.StatusUnauthorized, "refresh_reuse_detected", "refresh token reuse detected")
		case errors.Is(err, session.ErrSessionExpired),
			errors.Is(err, session.ErrSessionRevoked),
			errors.Is(err, session.ErrSessionNotFound),
			errors.Is(err, session.ErrInvalidToken):
			h.jwt.UnsetJWTCookies(w)
			web.WriteError(w, http.StatusUnauthorized, "session_not_active", "session not active")
		default:
			h.writeTokenError(w, err, "auth.refresh.fail")
		}
		return
	}

	if err := h.setSessionCookies(w, issued); err != nil {
		h.log.Error("auth.refresh.cookies.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	h.audit(ctx, "auth.refresh.success", issued.UserID, issued.SessionID, dev.IP, dev.UserAgent, nil)
	web.WriteJSON(w, http.StatusOK, refreshResponse{Msg: "token refreshed", CSRFToken: issued.CSRF})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwtauth.ClaimsFromContext(r.Context())
	if !ok {
		jwtauth.WriteError(w, jwtauth.ErrNoToken)
		return
	}

	ctx := r.Context()
	if claims.SessionID != "" {
		if err := h.sessions.RevokeSession(ctx, time.Now().UTC(), claims.SessionID); err != nil {
			h.log.Error("auth.logout.fail", "err", err)
			web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}
	if err := h.jwt.Revoke(ctx, claims); err != nil {
		h.log.Warn("auth.logout.blocklist.fail", "jti", claims.ID, "err", err)
	}

	dev := h.device(r)
	h.audit(ctx, "auth.logout", claims.Identity(), claims.SessionID, dev.IP, dev.UserAgent, nil)
	h.jwt.UnsetJWTCookies(w)
	web.WriteMsg(w, http.StatusOK, "logout successful")
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwtauth.ClaimsFromContext(r.Context())
	if !ok {
		jwtauth.WriteError(w, jwtauth.ErrNoToken)
		return
	}

	ctx := r.Context()
	if err := h.sessions.RevokeAll(ctx, time.Now().UTC(), claims.Identity()); err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if err := h.jwt.Revoke(ctx, claims); err != nil {
		h.log.Warn("auth.logout_all.blocklist.fail", "jti", claims.ID, "err", err)
	}

	dev := h.device(r)
	h.audit(ctx, "auth.logout_all", claims.Identity(), "", dev.IP, dev.UserAgent, nil)
	h.jwt.UnsetJWTCookies(w)
	web.WriteMsg(w, http.StatusOK, "logged out everywhere")
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwtauth.ClaimsFromContext(r.Context())
	if !ok {
		jwtauth.WriteError(w, jwtauth.ErrNoToken)
		return
	}

	u, err := h.users.GetUserByID(r.Context(), claims.Identity())
	if err != nil {
		if identity.IsNotFound(err) {
			web.WriteError(w, http.StatusUnauthorized, "not_found", "user not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	if claims.SessionID != "" {
		if err := h.sessions.TouchSession(r.Context(), time.Now().UTC(), claims.SessionID); err != nil {
			h.log.Debug("auth.me.touch.fail", "err", err)
		}
	}
	web.WriteJSON(w, http.StatusOK, userResponse{User: u})
}

// ---- helpers ----

func (h *Handler) issue(w http.ResponseWriter, r *http.Request, userID string, dev session.DeviceContext, event string) (session.Issued, bool) {
	issued, err := h.sessions.IssueSession(r.Context(), time.Now().UTC(), userID, dev)
	if err != nil {
		h.log.Error(event+".issue_session.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return session.Issued{}, false
	}
	if err := h.setSessionCookies(w, issued); err != nil {
		h.log.Error(event+".cookies.fail", "err", err)
		web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return session.Issued{}, false
	}
	return issued, true
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, issued session.Issued) error {
	if err := h.jwt.SetAccessCookies(w, issued.AccessToken); err != nil {
		return err
	}
	return h.jwt.SetRefreshCookies(w, issued.RefreshToken)
}

func (h *Handler) device(r *http.Request) session.DeviceContext {
	return session.DeviceContext{
		UserAgent: strings.TrimSpace(r.UserAgent()),
		IP:        web.ClientIP(r, h.cfg.TrustProxy),
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := web.DecodeJSON(w, r, h.cfg.MaxBodyBytes, dst); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return false
	}
	if err := web.Validate(dst); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid_request", web.ValidationMessage(err))
		return false
	}
	return true
}

func (h *Handler) writeTokenError(w http.ResponseWriter, err error, event string) {
	var te *jwtauth.Error
	if errors.As(err, &te) {
		jwtauth.WriteError(w, te)
		return
	}
	h.log.Error(event, "err", err)
	web.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
}

func writeInvalidCredentials(w http.ResponseWriter) {
	web.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int64(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	web.WriteError(w, http.StatusTooManyRequests, "refresh_rate_limited", "refresh attempted too frequently")
}
