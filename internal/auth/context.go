// Package auth carries the signed-in account through request contexts.
//
// It is imported by both middleware and handler packages without causing
// import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const userContextKey contextKey = "account"

// GetUser retrieves the signed-in account from the context.
//
// Returns nil if the request is anonymous.
func GetUser(ctx context.Context) *domain.UserAccount {
	user, ok := ctx.Value(userContextKey).(*domain.UserAccount)
	if !ok {
		return nil
	}
	return user
}

// GetUserFromRequest is GetUser for r.Context().
func GetUserFromRequest(r *http.Request) *domain.UserAccount {
	return GetUser(r.Context())
}

// SetUser stores an account in the context.
func SetUser(ctx context.Context, user *domain.UserAccount) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// HasRole reports whether the context's account holds one of roles.
func HasRole(ctx context.Context, roles ...domain.Role) bool {
	user := GetUser(ctx)
	if user == nil {
		return false
	}
	for _, role := range roles {
		if user.Role == role {
			return true
		}
	}
	return false
}
