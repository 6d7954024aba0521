// Package middleware contains HTTP middleware for the TSF dashboard API.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed with Stack.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tsfwatch/internal/auth"
	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/handler"
)

// SessionAuthenticator resolves a session token to its account.
// service.SessionManager implements it.
type SessionAuthenticator interface {
	Authenticate(token string) *domain.UserAccount
}

// AuthMiddleware attaches the caller's account to requests and gates routes
// on it.
type AuthMiddleware struct {
	sessions SessionAuthenticator
	logger   *slog.Logger
	isSecure bool
}

// NewAuthMiddleware creates a new auth middleware. isSecure sets the Secure
// flag on the cookie it clears.
func NewAuthMiddleware(sessions SessionAuthenticator, logger *slog.Logger, isSecure bool) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		logger:   logger,
		isSecure: isSecure,
	}
}

// WithUser stores the account bound to the request's session token, if any,
// in the request context. It never rejects a request. A stale session
// cookie is cleared.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user := m.sessions.Authenticate(token)
		if user == nil {
			if _, err := r.Cookie(auth.SessionCookieName); err == nil {
				auth.ClearSessionCookie(w, m.isSecure)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

// RequireUser answers 401 unless WithUser found an account.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUserFromRequest(r) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole answers 403 unless the account holds one of roles. It must run
// after RequireUser.
func (m *AuthMiddleware) RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.HasRole(r.Context(), roles...) {
				handler.ForbiddenResponse(w, r, m.logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Stack composes middleware so the first argument is the outermost.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
