// Package service contains the business logic layer.
//
// The SessionManager owns the dashboard's single login session and the
// account registry behind it. It is responsible for:
// - Credential checks against bcrypt hashes
// - Binding the session to a random bearer token
// - Registration validation
// - Translating store errors into domain errors
// - Announcing session changes on the event bus
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/events"
	"github.com/DukeRupert/tsfwatch/internal/metrics"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	BcryptCost = 12

	// MinUsernameLength is the minimum username length.
	MinUsernameLength = 3

	// MinPasswordLength is the minimum password length.
	MinPasswordLength = 6

	// MaxPasswordLength caps input at bcrypt's 72-byte limit.
	MaxPasswordLength = 72

	// SessionTokenBytes is the number of random bytes in a session token,
	// hex-encoded to 64 characters on the wire.
	SessionTokenBytes = 32

	// SessionDuration is how long a session token stays valid.
	SessionDuration = 12 * time.Hour
)

// bcrypt hash of "dummy", compared when a username is unknown.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// =============================================================================
// Implementation
// =============================================================================

// SessionManager tracks which account, if any, is signed in to the dashboard.
// The zero state is anonymous. There is one session at a time; it is bound
// to the token issued by SignIn, and only holders of that token are treated
// as the signed-in account. All methods are safe for concurrent use.
type SessionManager struct {
	store     AccountStore
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
	hashCost  int

	mu        sync.RWMutex
	current   *domain.UserAccount
	tokenHash string
	expiresAt time.Time
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithPublisher sets where session.changed events go. Defaults to events.Nop.
func WithPublisher(p events.Publisher) SessionOption {
	return func(m *SessionManager) { m.publisher = p }
}

// WithHashCost overrides the bcrypt cost for new accounts.
func WithHashCost(cost int) SessionOption {
	return func(m *SessionManager) { m.hashCost = cost }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

// NewSessionManager creates an anonymous session manager over store.
func NewSessionManager(store AccountStore, logger *slog.Logger, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		store:     store,
		publisher: events.Nop{},
		logger:    logger.With("component", "session"),
		now:       time.Now,
		hashCost:  BcryptCost,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// =============================================================================
// Login
// =============================================================================

// Login authenticates username/password and makes the account the current
// session. Usernames match case-insensitively.
//
// If expectedType is non-nil, an account whose UserType differs is rejected
// with ErrUserTypeMismatch even when the password is correct.
//
// Login is for in-process callers; HTTP clients use SignIn to receive the
// session token.
func (m *SessionManager) Login(ctx context.Context, username, password string, expectedType *domain.UserType) (*domain.UserAccount, error) {
	user, _, err := m.SignIn(ctx, username, password, expectedType)
	return user, err
}

// SignIn is Login that also returns the raw session token. The previous
// session's token stops working.
func (m *SessionManager) SignIn(ctx context.Context, username, password string, expectedType *domain.UserType) (*domain.UserAccount, string, error) {
	const op = "SessionManager.Login"

	username = normalizeUsername(username)

	acct, err := m.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			metrics.LoginAttempt("invalid")
			return nil, "", invalidCredentials(op)
		}
		return nil, "", domain.Internal(err, op, "Failed to retrieve account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		metrics.LoginAttempt("invalid")
		return nil, "", invalidCredentials(op)
	}

	if expectedType != nil && acct.UserType != *expectedType {
		metrics.LoginAttempt("type_mismatch")
		return nil, "", domain.Wrap(domain.ErrUserTypeMismatch, domain.EFORBIDDEN, op,
			fmt.Sprintf("This account is not registered as a %s", *expectedType))
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, "", domain.Internal(err, op, "Failed to create session")
	}

	at := m.now().UTC()
	if err := m.store.UpdateLastLogin(ctx, acct.ID, at); err != nil {
		return nil, "", domain.Internal(err, op, "Failed to record login")
	}
	acct.LastLogin = &at

	user := acct.Sanitized()

	current := *user
	m.mu.Lock()
	m.current = &current
	m.tokenHash = hashToken(token)
	m.expiresAt = at.Add(SessionDuration)
	m.mu.Unlock()

	metrics.LoginAttempt("success")
	m.logger.Info("user logged in", "username", user.Username, "user_type", user.UserType)
	m.publishChange(ctx, user)

	return user, token, nil
}

func invalidCredentials(op string) *domain.Error {
	return domain.Wrap(domain.ErrInvalidCredentials, domain.EUNAUTHORIZED, op, "Invalid username or password")
}

// =============================================================================
// Register
// =============================================================================

// Register creates a new account. It does not sign the account in.
//
// Checks run in order: required fields, duplicate username, username length,
// password length, password confirmation.
func (m *SessionManager) Register(ctx context.Context, params domain.RegisterParams) (*domain.UserAccount, error) {
	const op = "SessionManager.Register"

	params.Username = normalizeUsername(params.Username)
	params.FullName = strings.TrimSpace(params.FullName)

	if params.Username == "" || params.Password == "" || params.ConfirmPassword == "" || params.FullName == "" {
		return nil, domain.Invalid(op, "Please fill in all fields")
	}
	if !params.UserType.IsValid() {
		return nil, domain.Invalid(op, "Please select an account type")
	}

	_, err := m.store.GetByUsername(ctx, params.Username)
	if err == nil {
		return nil, duplicateUsername(op)
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, domain.Internal(err, op, "Failed to check username availability")
	}

	if len(params.Username) < MinUsernameLength {
		return nil, domain.Wrap(domain.ErrUsernameTooShort, domain.EINVALID, op,
			fmt.Sprintf("Username must be at least %d characters", MinUsernameLength))
	}
	if err := validatePassword(op, params.Password); err != nil {
		return nil, err
	}
	if params.Password != params.ConfirmPassword {
		return nil, domain.Wrap(domain.ErrPasswordMismatch, domain.EINVALID, op, "Passwords do not match")
	}

	acct, err := m.newAccount(params.Username, params.Password, params.FullName,
		domain.RoleForUserType(params.UserType), params.UserType)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	if err := m.store.Create(ctx, acct); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, domain.ErrDuplicateUsername) {
			return nil, duplicateUsername(op)
		}
		return nil, domain.Internal(err, op, "Failed to create account")
	}

	m.logger.Info("account registered", "username", acct.Username, "user_type", acct.UserType)

	return acct.Sanitized(), nil
}

func duplicateUsername(op string) *domain.Error {
	return domain.Wrap(domain.ErrDuplicateUsername, domain.ECONFLICT, op, "Username already exists")
}

func validatePassword(op, password string) error {
	if len(password) < MinPasswordLength {
		return domain.Wrap(domain.ErrPasswordTooShort, domain.EINVALID, op,
			fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid(op, fmt.Sprintf("Password must be %d characters or less", MaxPasswordLength))
	}
	return nil
}

func (m *SessionManager) newAccount(username, password, fullName string, role domain.Role, userType domain.UserType) (*domain.UserAccount, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.hashCost)
	if err != nil {
		return nil, err
	}
	return &domain.UserAccount{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
		UserType:     userType,
		CreatedAt:    m.now().UTC(),
	}, nil
}

// =============================================================================
// Session State
// =============================================================================

// Logout returns the session to anonymous. Calling it while anonymous is
// a no-op.
func (m *SessionManager) Logout(ctx context.Context) {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.tokenHash = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()

	if prev == nil {
		return
	}
	m.logger.Info("user logged out", "username", prev.Username)
	m.publishChange(ctx, nil)
}

// Current returns the signed-in account, or nil when anonymous.
func (m *SessionManager) Current() *domain.UserAccount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	u := *m.current
	return &u
}

// Authenticate returns the signed-in account if token is the current
// session's token and the session has not expired. Otherwise it returns nil.
func (m *SessionManager) Authenticate(token string) *domain.UserAccount {
	if token == "" {
		return nil
	}
	presented := hashToken(token)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil || m.tokenHash == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(m.tokenHash)) != 1 {
		return nil
	}
	if !m.now().Before(m.expiresAt) {
		return nil
	}
	u := *m.current
	return &u
}

// State reports whether anyone is signed in.
func (m *SessionManager) State() domain.SessionState {
	if m.IsAuthenticated() {
		return domain.SessionAuthenticated
	}
	return domain.SessionAnonymous
}

// IsAuthenticated returns true if an account is signed in.
func (m *SessionManager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// UsersByType lists accounts registered under userType, without hashes.
func (m *SessionManager) UsersByType(ctx context.Context, userType domain.UserType) ([]domain.UserAccount, error) {
	const op = "SessionManager.UsersByType"

	all, err := m.store.List(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list accounts")
	}

	out := make([]domain.UserAccount, 0, len(all))
	for _, acct := range all {
		if acct.UserType == userType {
			out = append(out, *acct.Sanitized())
		}
	}
	return out, nil
}

// UserCount returns the number of registered accounts.
func (m *SessionManager) UserCount(ctx context.Context) (int, error) {
	const op = "SessionManager.UserCount"

	all, err := m.store.List(ctx)
	if err != nil {
		return 0, domain.Internal(err, op, "Failed to list accounts")
	}
	return len(all), nil
}

func generateSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashToken returns the hex SHA-256 of token; only the hash is kept.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type sessionChange struct {
	State    domain.SessionState `json:"state"`
	Username string              `json:"username,omitempty"`
	Role     domain.Role         `json:"role,omitempty"`
}

func (m *SessionManager) publishChange(ctx context.Context, user *domain.UserAccount) {
	change := sessionChange{State: domain.SessionAnonymous}
	if user != nil {
		change = sessionChange{
			State:    domain.SessionAuthenticated,
			Username: user.Username,
			Role:     user.Role,
		}
	}
	events.PublishJSON(ctx, m.publisher, m.logger, events.TypeSessionChanged, change)
}
