package middleware

import (
	"net/http"
)

// SecurityHeadersMiddleware adds HTTP security headers and, when an origin
// is configured, CORS headers for the dashboard front end.
type SecurityHeadersMiddleware struct {
	isSecure      bool   // Enable HSTS (true in production)
	allowedOrigin string // Cross-origin front end allowed to call the API
}

// NewSecurityHeadersMiddleware creates a new security headers middleware.
func NewSecurityHeadersMiddleware(isSecure bool, allowedOrigin string) *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{
		isSecure:      isSecure,
		allowedOrigin: allowedOrigin,
	}
}

// apiCSP locks down everything; the API serves only JSON and file
// downloads.
const apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"

// Handler returns middleware that sets security headers on all responses.
// CORS preflight requests from the allowed origin are answered here.
func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", apiCSP)
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		if m.isSecure {
			// max-age=31536000 = 1 year
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		origin := r.Header.Get("Origin")
		if m.allowedOrigin != "" && origin == m.allowedOrigin {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
