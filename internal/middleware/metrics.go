package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// MetricsAuthMiddleware provides basic authentication for the metrics endpoint.
type MetricsAuthMiddleware struct {
	username string
	password string
	enabled  bool
	logger   *slog.Logger
}

// NewMetricsAuthMiddleware creates a new metrics auth middleware.
// If both username and password are empty, authentication is disabled and a
// warning is logged once.
func NewMetricsAuthMiddleware(username, password string, logger *slog.Logger) *MetricsAuthMiddleware {
	m := &MetricsAuthMiddleware{
		username: username,
		password: password,
		enabled:  username != "" || password != "",
		logger:   logger,
	}
	if !m.enabled {
		logger.Warn("METRICS_USERNAME and METRICS_PASSWORD not set, /metrics is unprotected")
	}
	return m
}

// Handler returns middleware that requires basic authentication.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		// Constant-time comparison
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(m.username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(m.password)) != 1 {
			m.logger.Warn("metrics auth failed", "ip", getClientIP(r))
			w.Header().Set("WWW-Authenticate", `Basic realm="tsfwatch metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
