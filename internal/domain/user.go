// Package domain contains core business types and interfaces.
//
// This file defines the UserAccount domain type and related types for
// authentication. Operators and residents sign in through separate flows;
// UserType is the partition those flows check.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the permission role granted to an account.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleOperator Role = "Operator"
	RoleResident Role = "Resident"
	RoleViewer   Role = "Viewer"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is a recognized value.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleResident, RoleViewer:
		return true
	}
	return false
}

// UserType partitions accounts by the login flow they may use.
type UserType string

const (
	UserTypeOperator UserType = "Operator"
	UserTypeResident UserType = "Resident"
)

// String returns the string representation of the user type.
func (t UserType) String() string {
	return string(t)
}

// IsValid returns true if the user type is a recognized value.
func (t UserType) IsValid() bool {
	return t == UserTypeOperator || t == UserTypeResident
}

// RoleForUserType returns the role assigned to self-registered accounts.
// Only the Operator type maps to the Operator role; everything else is a
// Resident.
func RoleForUserType(t UserType) Role {
	if t == UserTypeOperator {
		return RoleOperator
	}
	return RoleResident
}

// UserAccount is a registered dashboard user.
type UserAccount struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"fullName"`
	Role         Role       `json:"role"`
	UserType     UserType   `json:"userType"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// DisplayName returns the full name or the username if it is empty.
func (u *UserAccount) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// IsOperator returns true if the account signs in through the operator flow.
func (u *UserAccount) IsOperator() bool {
	return u.UserType == UserTypeOperator
}

// Sanitized returns a copy with the password hash cleared.
func (u UserAccount) Sanitized() *UserAccount {
	u.PasswordHash = ""
	return &u
}

// RegisterParams contains the parameters for account registration.
type RegisterParams struct {
	Username        string
	Password        string // Raw password, will be hashed by service
	ConfirmPassword string
	FullName        string
	UserType        UserType
}

// SessionState is the state of the dashboard session.
type SessionState string

const (
	SessionAnonymous     SessionState = "Anonymous"
	SessionAuthenticated SessionState = "Authenticated"
)
