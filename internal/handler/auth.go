package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tsfwatch/internal/auth"
	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/service"
)

// SessionService is the subset of service.SessionManager the auth routes use.
type SessionService interface {
	SignIn(ctx context.Context, username, password string, expectedType *domain.UserType) (*domain.UserAccount, string, error)
	Register(ctx context.Context, params domain.RegisterParams) (*domain.UserAccount, error)
	Logout(ctx context.Context)
	UsersByType(ctx context.Context, userType domain.UserType) ([]domain.UserAccount, error)
}

// AuthHandler serves login, logout, registration and session state.
//
// Routes handled:
// - POST /api/auth/login    -> Login
// - POST /api/auth/logout   -> Logout
// - POST /api/auth/register -> Register
// - GET  /api/auth/session  -> Session
type AuthHandler struct {
	sessions      SessionService
	logger        *slog.Logger
	secureCookies bool
}

// NewAuthHandler creates an AuthHandler. secureCookies sets the Secure flag
// on the session cookie and should be true outside development.
func NewAuthHandler(sessions SessionService, logger *slog.Logger, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		sessions:      sessions,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

// =============================================================================
// Request/Response Types
// =============================================================================

type loginRequest struct {
	Username string           `json:"username"`
	Password string           `json:"password"`
	UserType *domain.UserType `json:"userType,omitempty"`
}

type registerRequest struct {
	Username        string          `json:"username"`
	Password        string          `json:"password"`
	ConfirmPassword string          `json:"confirmPassword"`
	FullName        string          `json:"fullName"`
	UserType        domain.UserType `json:"userType"`
}

type sessionResponse struct {
	State domain.SessionState `json:"state"`
	User  *domain.UserAccount `json:"user,omitempty"`
	// Token is only returned by login, for clients that send it as a
	// bearer token instead of the cookie.
	Token string `json:"token,omitempty"`
}

// =============================================================================
// Handlers
// =============================================================================

// Login handles POST /api/auth/login. userType is optional; when present the
// account must belong to that login flow.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.Login"

	var req loginRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Please enter both username and password"))
		return
	}
	if req.UserType != nil && !req.UserType.IsValid() {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Unknown account type"))
		return
	}

	user, token, err := h.sessions.SignIn(r.Context(), req.Username, req.Password, req.UserType)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, token, service.SessionDuration, h.secureCookies)
	writeJSON(w, http.StatusOK, sessionResponse{State: domain.SessionAuthenticated, User: user, Token: token})
}

// Logout handles POST /api/auth/logout. Mounted behind RequireUser, so only
// the holder of the session token can end it.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	auth.ClearSessionCookie(w, h.secureCookies)
	w.WriteHeader(http.StatusNoContent)
}

// Register handles POST /api/auth/register. The new account is not signed
// in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.Register"

	var req registerRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.sessions.Register(r.Context(), domain.RegisterParams{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FullName:        req.FullName,
		UserType:        req.UserType,
	})
	if err != nil {
		ValidationErrorResponse(w, r, h.logger, registrationFieldError(op, err))
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// registrationFieldError attaches the offending form field to the
// single-field registration failures. Other errors pass through unchanged.
func registrationFieldError(op string, err error) error {
	var field string
	switch {
	case errors.Is(err, domain.ErrUsernameTooShort):
		field = "username"
	case errors.Is(err, domain.ErrPasswordTooShort):
		field = "password"
	case errors.Is(err, domain.ErrPasswordMismatch):
		field = "confirmPassword"
	default:
		return err
	}
	return domain.NewValidationError(op, field, domain.ErrorMessage(err))
}

// Session handles GET /api/auth/session. It reports the caller's own
// session: anonymous unless the request carries the live session token.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		writeJSON(w, http.StatusOK, sessionResponse{State: domain.SessionAnonymous})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{State: domain.SessionAuthenticated, User: user})
}

// Users handles GET /api/users?type=Operator|Resident. Mounted behind the
// admin role check.
func (h *AuthHandler) Users(w http.ResponseWriter, r *http.Request) {
	const op = "AuthHandler.Users"

	userType := domain.UserType(r.URL.Query().Get("type"))
	if !userType.IsValid() {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "type must be Operator or Resident"))
		return
	}

	users, err := h.sessions.UsersByType(r.Context(), userType)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// RegisterRoutes registers the public auth routes. Login, Logout and Users
// are mounted by the caller behind the login rate limiter, RequireUser and
// the admin role check.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("GET /api/auth/session", h.Session)
}
