// Package account provides the user account domain for passkey enrollment.
package account

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/meridianbank/passkeyd/internal/platform/errors"
	"github.com/meridianbank/passkeyd/internal/platform/id"
)

// ErrInvalidEmail indicates an address that cannot key an account.
var ErrInvalidEmail = apperrors.New(apperrors.CodeAccountEmailInvalid, "email address is invalid")

// Account represents an identity keyed by a verified email address.
//
// Accounts start disabled and flip to enabled exactly once, when their first
// passkey registration completes. They are never disabled again here.
type Account struct {
	ID        string
	Email     string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists account records.
type Store interface {
	PutAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, accountID string) (Account, error)
	FindAccountByEmail(ctx context.Context, email string) (Account, error)
}

// NormalizeEmail lowercases and validates an address so every store keyed by
// email agrees on the canonical form.
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidEmail
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil || parsed.Address != trimmed {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(parsed.Address), nil
}

// CreateAccount builds a new disabled account for a normalized email.
//
// The caller persists the result; enabling happens only at registration
// completion, after a credential has durably landed.
func CreateAccount(email string, now func() time.Time, idGenerator func() (string, error)) (Account, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeEmail(email)
	if err != nil {
		return Account{}, err
	}

	accountID, err := idGenerator()
	if err != nil {
		return Account{}, fmt.Errorf("generate account id: %w", err)
	}

	createdAt := now().UTC()
	return Account{
		ID:        accountID,
		Email:     normalized,
		Enabled:   false,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}
