package service

import (
	"context"
	"errors"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

type seedAccount struct {
	username string
	password string
	fullName string
	role     domain.Role
	userType domain.UserType
}

var defaultAccounts = []seedAccount{
	{"username", "test1234", "System Administrator", domain.RoleAdmin, domain.UserTypeOperator},
	{"admin", "admin123", "Administrator", domain.RoleAdmin, domain.UserTypeOperator},
	{"operator", "operator123", "System Operator", domain.RoleOperator, domain.UserTypeOperator},
	{"username1", "test123", "Community Resident", domain.RoleResident, domain.UserTypeResident},
	{"resident", "resident123", "Local Resident", domain.RoleResident, domain.UserTypeResident},
	{"viewer", "viewer123", "Viewer", domain.RoleViewer, domain.UserTypeOperator},
}

// SeedDefaultAccounts inserts the built-in demo accounts. Accounts that
// already exist are left untouched, so it is safe to call on every start.
// It returns the number of accounts created.
func (m *SessionManager) SeedDefaultAccounts(ctx context.Context) (int, error) {
	const op = "SessionManager.SeedDefaultAccounts"

	created := 0
	for _, s := range defaultAccounts {
		acct, err := m.newAccount(s.username, s.password, s.fullName, s.role, s.userType)
		if err != nil {
			return created, domain.Internal(err, op, "Failed to hash password")
		}

		err = m.store.Create(ctx, acct)
		if errors.Is(err, domain.ErrDuplicateUsername) {
			continue
		}
		if err != nil {
			return created, domain.Internal(err, op, "Failed to create account")
		}
		created++
	}

	if created > 0 {
		m.logger.Info("seeded default accounts", "count", created)
	}
	return created, nil
}
