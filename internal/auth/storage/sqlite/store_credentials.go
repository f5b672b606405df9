package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridianbank/passkeyd/internal/auth/credential"
	"github.com/meridianbank/passkeyd/internal/auth/storage"
)

// PutCredential inserts a credential record. A duplicate id or duplicate
// public key surfaces storage.ErrDuplicate; records are never overwritten.
func (s *Store) PutCredential(ctx context.Context, c credential.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(c.AccountID) == "" {
		return fmt.Errorf("account id is required")
	}
	if len(c.PublicKey) == 0 {
		return fmt.Errorf("public key is required")
	}

	transports, err := json.Marshal(c.Transports)
	if err != nil {
		return fmt.Errorf("encode transports: %w", err)
	}
	lastUsed := sql.NullInt64{}
	if c.LastUsedAt != nil {
		lastUsed = sql.NullInt64{Int64: toMillis(*c.LastUsedAt), Valid: true}
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO credentials (
    id,
    account_id,
    public_key,
    sign_count,
    user_verified,
    backup_eligible,
    backup_state,
    transports,
    attestation_type,
    credential_json,
    created_at,
    updated_at,
    last_used_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		c.ID,
		c.AccountID,
		c.PublicKey,
		int64(c.SignCount),
		boolToInt(c.UserVerified),
		boolToInt(c.BackupEligible),
		boolToInt(c.BackupState),
		string(transports),
		c.AttestationType,
		c.CredentialJSON,
		toMillis(c.CreatedAt),
		toMillis(c.UpdatedAt),
		lastUsed,
	)
	if isUniqueConstraintError(err) {
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

// GetCredential fetches a credential by its encoded id.
func (s *Store) GetCredential(ctx context.Context, credentialID string) (credential.Credential, error) {
	if err := ctx.Err(); err != nil {
		return credential.Credential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return credential.Credential{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return credential.Credential{}, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, selectCredential+`WHERE id = ?`, credentialID)
	c, err := scanCredential(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return credential.Credential{}, storage.ErrNotFound
		}
		return credential.Credential{}, err
	}
	return c, nil
}

// ListCredentialsByAccount returns an account's credentials, oldest first.
func (s *Store) ListCredentialsByAccount(ctx context.Context, accountID string) ([]credential.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("account id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, selectCredential+`WHERE account_id = ? ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []credential.Credential
	for rows.Next() {
		c, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return credentials, nil
}

// UpdateSignCount persists a verified sign count and the use timestamp.
// Monotonicity is the caller's invariant; the store only records it.
func (s *Store) UpdateSignCount(ctx context.Context, credentialID string, signCount uint32, usedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credentialID) == "" {
		return fmt.Errorf("credential id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE credentials
SET sign_count = ?, updated_at = ?, last_used_at = ?
WHERE id = ?
`, int64(signCount), toMillis(usedAt), toMillis(usedAt), credentialID)
	if err != nil {
		return fmt.Errorf("update sign count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sign count: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const selectCredential = `
SELECT id, account_id, public_key, sign_count, user_verified, backup_eligible,
    backup_state, transports, attestation_type, credential_json,
    created_at, updated_at, last_used_at
FROM credentials
`

func scanCredential(scan func(dest ...any) error) (credential.Credential, error) {
	var c credential.Credential
	var signCount int64
	var userVerified, backupEligible, backupState int64
	var transports string
	var createdAt, updatedAt int64
	var lastUsed sql.NullInt64
	if err := scan(
		&c.ID,
		&c.AccountID,
		&c.PublicKey,
		&signCount,
		&userVerified,
		&backupEligible,
		&backupState,
		&transports,
		&c.AttestationType,
		&c.CredentialJSON,
		&createdAt,
		&updatedAt,
		&lastUsed,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return credential.Credential{}, err
		}
		return credential.Credential{}, fmt.Errorf("scan credential: %w", err)
	}
	c.SignCount = uint32(signCount)
	c.UserVerified = userVerified != 0
	c.BackupEligible = backupEligible != 0
	c.BackupState = backupState != 0
	if err := json.Unmarshal([]byte(transports), &c.Transports); err != nil {
		return credential.Credential{}, fmt.Errorf("decode transports: %w", err)
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	if lastUsed.Valid {
		value := fromMillis(lastUsed.Int64)
		c.LastUsedAt = &value
	}
	return c, nil
}
