package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/meridianbank/passkeyd/internal/auth/account"
	"github.com/meridianbank/passkeyd/internal/auth/storage"
)

// PutAccount upserts an account record keyed by id.
func (s *Store) PutAccount(ctx context.Context, a account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(a.Email) == "" {
		return fmt.Errorf("account email is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO accounts (id, email, enabled, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    email = excluded.email,
    enabled = excluded.enabled,
    updated_at = excluded.updated_at
`,
		a.ID,
		a.Email,
		boolToInt(a.Enabled),
		toMillis(a.CreatedAt),
		toMillis(a.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

// GetAccount fetches an account by id.
func (s *Store) GetAccount(ctx context.Context, accountID string) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	if s == nil || s.sqlDB == nil {
		return account.Account{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(accountID) == "" {
		return account.Account{}, fmt.Errorf("account id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, email, enabled, created_at, updated_at
FROM accounts
WHERE id = ?
`, accountID)
	return scanAccount(row)
}

// FindAccountByEmail fetches an account by its normalized email.
func (s *Store) FindAccountByEmail(ctx context.Context, email string) (account.Account, error) {
	if err := ctx.Err(); err != nil {
		return account.Account{}, err
	}
	if s == nil || s.sqlDB == nil {
		return account.Account{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(email) == "" {
		return account.Account{}, fmt.Errorf("email is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, email, enabled, created_at, updated_at
FROM accounts
WHERE email = ?
`, email)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (account.Account, error) {
	var a account.Account
	var enabled int64
	var createdAt, updatedAt int64
	if err := row.Scan(&a.ID, &a.Email, &enabled, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.Account{}, storage.ErrNotFound
		}
		return account.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Enabled = enabled != 0
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}
