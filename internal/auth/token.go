package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	// SessionCookieName is the cookie that carries the session token for
	// browser clients.
	SessionCookieName = "tsfwatch_session"

	// SessionCookiePath ensures the cookie is sent with all requests,
	// including the /ws upgrade.
	SessionCookiePath = "/"

	bearerPrefix = "Bearer "
)

// TokenFromRequest returns the session token from the session cookie or,
// failing that, an "Authorization: Bearer" header. Empty when neither is
// present.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(h[len(bearerPrefix):])
	}
	return ""
}

// SetSessionCookie writes the session cookie. secure sets the Secure flag
// and should be true outside development.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     SessionCookiePath,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     SessionCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
