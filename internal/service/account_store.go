package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// ErrAccountNotFound is returned by an AccountStore when no account matches.
var ErrAccountNotFound = errors.New("account not found")

// AccountStore persists user accounts. Usernames are stored normalized
// (trimmed, lowercase); implementations compare them exactly.
//
// Implementations:
// - MemoryAccountStore: process-local, used when no database is configured
// - PostgresAccountStore: accounts table managed by goose migrations
type AccountStore interface {
	// GetByUsername returns ErrAccountNotFound if no account matches.
	GetByUsername(ctx context.Context, username string) (*domain.UserAccount, error)

	// Create inserts a new account. Returns domain.ErrDuplicateUsername if the
	// username is taken.
	Create(ctx context.Context, account *domain.UserAccount) error

	// UpdateLastLogin stamps the account's last login time.
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	// List returns every account ordered by creation time.
	List(ctx context.Context) ([]domain.UserAccount, error)
}

// normalizeUsername lowercases and trims a username for lookup and storage.
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// =============================================================================
// MemoryAccountStore
// =============================================================================

// MemoryAccountStore keeps accounts in a map guarded by a mutex.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.UserAccount
}

// NewMemoryAccountStore creates an empty store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]domain.UserAccount)}
}

func (s *MemoryAccountStore) GetByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &acct, nil
}

func (s *MemoryAccountStore) Create(ctx context.Context, account *domain.UserAccount) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.Username]; exists {
		return domain.ErrDuplicateUsername
	}
	s.accounts[account.Username] = *account
	return nil
}

func (s *MemoryAccountStore) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, acct := range s.accounts {
		if acct.ID == id {
			acct.LastLogin = &at
			s.accounts[key] = acct
			return nil
		}
	}
	return ErrAccountNotFound
}

func (s *MemoryAccountStore) List(ctx context.Context) ([]domain.UserAccount, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Username < out[j].Username
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
