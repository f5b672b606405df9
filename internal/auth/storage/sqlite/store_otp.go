package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridianbank/passkeyd/internal/auth/otp"
	"github.com/meridianbank/passkeyd/internal/auth/storage"
)

// PutOneTimeCode upserts the code record for an email: last issued wins.
func (s *Store) PutOneTimeCode(ctx context.Context, code otp.Code) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(code.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if strings.TrimSpace(code.CodeHash) == "" {
		return fmt.Errorf("code hash is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO one_time_codes (email, code_hash, expires_at)
VALUES (?, ?, ?)
ON CONFLICT(email) DO UPDATE SET
    code_hash = excluded.code_hash,
    expires_at = excluded.expires_at
`, code.Email, code.CodeHash, toMillis(code.ExpiresAt))
	if err != nil {
		return fmt.Errorf("put one-time code: %w", err)
	}
	return nil
}

// GetOneTimeCode fetches the code record stored for an email.
func (s *Store) GetOneTimeCode(ctx context.Context, email string) (otp.Code, error) {
	if err := ctx.Err(); err != nil {
		return otp.Code{}, err
	}
	if s == nil || s.sqlDB == nil {
		return otp.Code{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(email) == "" {
		return otp.Code{}, fmt.Errorf("email is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT email, code_hash, expires_at
FROM one_time_codes
WHERE email = ?
`, email)

	var code otp.Code
	var expiresAt int64
	if err := row.Scan(&code.Email, &code.CodeHash, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return otp.Code{}, storage.ErrNotFound
		}
		return otp.Code{}, fmt.Errorf("scan one-time code: %w", err)
	}
	code.ExpiresAt = fromMillis(expiresAt)
	return code, nil
}

// ConsumeOneTimeCode deletes the record only when the stored hash still
// matches, in a single conditional statement. Zero rows affected means a
// concurrent verification or a newer code won.
func (s *Store) ConsumeOneTimeCode(ctx context.Context, email string, codeHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM one_time_codes
WHERE email = ? AND code_hash = ?
`, email, codeHash)
	if err != nil {
		return fmt.Errorf("consume one-time code: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume one-time code: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteExpiredOneTimeCodes removes code records past their expiry.
func (s *Store) DeleteExpiredOneTimeCodes(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM one_time_codes WHERE expires_at <= ?`, toMillis(now)); err != nil {
		return fmt.Errorf("delete expired one-time codes: %w", err)
	}
	return nil
}
