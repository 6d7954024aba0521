package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/tsfwatch/internal/auth"
)

// RequestIDHeader carries the per-request ID on responses.
const RequestIDHeader = "X-Request-ID"

// RequestLoggingMiddleware logs HTTP requests with timing and status information.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

// NewRequestLoggingMiddleware creates a new request logging middleware.
func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{
		logger: logger,
	}
}

// Handler returns middleware that logs every request except health checks,
// metrics scrapes and the WebSocket stream.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipLogging(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", sanitizePath(r.URL.Path, r.URL.RawQuery),
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", getClientIP(r),
			"user_agent", r.UserAgent(),
		}
		if user := auth.GetUserFromRequest(r); user != nil {
			attrs = append(attrs, "username", user.Username)
		}

		switch {
		case wrapped.statusCode >= 500:
			m.logger.Error("request", attrs...)
		case wrapped.statusCode >= 400:
			m.logger.Warn("request", attrs...)
		default:
			m.logger.Info("request", attrs...)
		}
	})
}

func shouldSkipLogging(path string) bool {
	for _, skip := range []string{"/health", "/metrics", "/ws"} {
		if strings.HasPrefix(path, skip) {
			return true
		}
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// sensitiveParams are redacted from logged query strings. appid is the
// OpenWeather key name.
var sensitiveParams = map[string]bool{
	"token":        true,
	"key":          true,
	"secret":       true,
	"password":     true,
	"api_key":      true,
	"apikey":       true,
	"appid":        true,
	"access_token": true,
}

// sanitizePath removes sensitive query parameters from the path for logging.
func sanitizePath(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	var safeParts []string
	for _, part := range strings.Split(rawQuery, "&") {
		key, _, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		if sensitiveParams[strings.ToLower(key)] {
			safeParts = append(safeParts, key+"=[REDACTED]")
		} else {
			safeParts = append(safeParts, part)
		}
	}

	if len(safeParts) == 0 {
		return path
	}
	return path + "?" + strings.Join(safeParts, "&")
}
