package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridianbank/passkeyd/internal/auth/ceremony"
	"github.com/meridianbank/passkeyd/internal/auth/storage"
)

// PutCeremony stores a ceremony context.
func (s *Store) PutCeremony(ctx context.Context, c ceremony.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("ceremony id is required")
	}
	if len(c.Challenge) == 0 {
		return fmt.Errorf("challenge is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO ceremonies (id, challenge, kind, account_id, expires_at)
VALUES (?, ?, ?, ?, ?)
`,
		c.ID,
		c.Challenge,
		string(c.Binding.Kind),
		c.Binding.AccountID,
		toMillis(c.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put ceremony: %w", err)
	}
	return nil
}

// GetCeremony fetches a ceremony context by id.
func (s *Store) GetCeremony(ctx context.Context, ceremonyID string) (ceremony.Context, error) {
	if err := ctx.Err(); err != nil {
		return ceremony.Context{}, err
	}
	if s == nil || s.sqlDB == nil {
		return ceremony.Context{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(ceremonyID) == "" {
		return ceremony.Context{}, fmt.Errorf("ceremony id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, challenge, kind, account_id, expires_at
FROM ceremonies
WHERE id = ?
`, ceremonyID)

	var c ceremony.Context
	var kind string
	var accountID string
	var expiresAt int64
	if err := row.Scan(&c.ID, &c.Challenge, &kind, &accountID, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ceremony.Context{}, storage.ErrNotFound
		}
		return ceremony.Context{}, fmt.Errorf("scan ceremony: %w", err)
	}
	c.Binding = ceremony.Binding{Kind: ceremony.Kind(kind), AccountID: accountID}
	c.ExpiresAt = fromMillis(expiresAt)
	return c, nil
}

// ConsumeCeremony deletes a ceremony context in a single conditional
// statement. Zero rows affected means another completion won the race.
func (s *Store) ConsumeCeremony(ctx context.Context, ceremonyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(ceremonyID) == "" {
		return fmt.Errorf("ceremony id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM ceremonies WHERE id = ?`, ceremonyID)
	if err != nil {
		return fmt.Errorf("consume ceremony: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume ceremony: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteExpiredCeremonies removes ceremony contexts past their expiry.
func (s *Store) DeleteExpiredCeremonies(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM ceremonies WHERE expires_at <= ?`, toMillis(now)); err != nil {
		return fmt.Errorf("delete expired ceremonies: %w", err)
	}
	return nil
}
