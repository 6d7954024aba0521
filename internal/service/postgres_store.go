package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// PostgresAccountStore stores accounts in the accounts table. The db handle
// is expected to use the pgx stdlib driver.
type PostgresAccountStore struct {
	db *sql.DB
}

// NewPostgresAccountStore wraps an open database handle.
func NewPostgresAccountStore(db *sql.DB) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

const accountColumns = `id, username, password_hash, full_name, role, user_type, last_login, created_at`

func (s *PostgresAccountStore) GetByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)

	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *PostgresAccountStore) Create(ctx context.Context, account *domain.UserAccount) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID,
		account.Username,
		account.PasswordHash,
		account.FullName,
		string(account.Role),
		string(account.UserType),
		account.LastLogin,
		account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicateUsername
		}
		return err
	}
	return nil
}

func (s *PostgresAccountStore) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *PostgresAccountStore) List(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at, username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserAccount
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *acct)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.UserAccount, error) {
	var (
		acct      domain.UserAccount
		role      string
		userType  string
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&acct.ID,
		&acct.Username,
		&acct.PasswordHash,
		&acct.FullName,
		&role,
		&userType,
		&lastLogin,
		&acct.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	acct.Role = domain.Role(role)
	acct.UserType = domain.UserType(userType)
	if lastLogin.Valid {
		t := lastLogin.Time
		acct.LastLogin = &t
	}
	return &acct, nil
}
