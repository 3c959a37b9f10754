package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	authapi "portal/cmd/internal/auth/api"
	"portal/cmd/internal/catalog"
	"portal/cmd/internal/ext"
	"portal/cmd/internal/web"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	ex *ext.Extensions,
	auth *authapi.Handler,
	cat *catalog.Handler,
) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		dbEnabled := ex.DB.Enabled()
		if cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbEnabled {
			if err := ex.DB.Ping(r.Context(), 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})
	ex.Limiter.Exempt("/healthz")
	ex.Limiter.Exempt("/readyz")

	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
		ex.Limiter.Exempt("/metrics")
	}

	mux.HandleFunc("GET /api", func(w http.ResponseWriter, _ *http.Request) {
		web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "service": "portal"})
	})

	if auth != nil {
		auth.Register(mux)
	}
	if cat != nil {
		cat.Register(mux, ex.JWT)
	}
}

// buildHandler stacks the middleware around mux, outermost first: request
// logging, security headers, CORS, proxy fix, CSRF, default rate limits.
func buildHandler(mux *http.ServeMux, log Logger, cfg Config, ex *ext.Extensions) http.Handler {
	var h http.Handler = mux
	h = ex.Limiter.Middleware(h)
	h = ex.CSRF.Middleware(h)
	h = WithProxyHeaders(h, cfg.TrustProxy)
	h = WithCORS(h, cfg, log)
	h = WithSecurityHeaders(h)
	return WithRequestLogging(h, log)
}
