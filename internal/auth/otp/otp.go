// Package otp issues and consumes email-bound one-time codes.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridianbank/passkeyd/internal/auth/storage"
	apperrors "github.com/meridianbank/passkeyd/internal/platform/errors"
)

var (
	// ErrNotFound indicates no code is stored for the email, or that the
	// code was consumed by a concurrent verification.
	ErrNotFound = apperrors.New(apperrors.CodeOtpNotFound, "one-time code not found")
	// ErrExpired indicates the stored code's TTL has elapsed.
	ErrExpired = apperrors.New(apperrors.CodeOtpExpired, "one-time code expired")
	// ErrMismatch indicates the submitted code does not match. The stored
	// code stays intact and retryable until it expires or is overwritten.
	ErrMismatch = apperrors.New(apperrors.CodeOtpMismatch, "one-time code mismatch")
)

// Code is a stored one-time code record. The raw code is never persisted,
// only its bcrypt hash.
type Code struct {
	Email     string
	CodeHash  string
	ExpiresAt time.Time
}

// Store persists one-time code records keyed by normalized email.
//
// ConsumeOneTimeCode deletes the record only when the stored hash still equals
// codeHash (compare-and-delete), so two concurrent verifications cannot both
// succeed; it returns storage.ErrNotFound when no row matched.
type Store interface {
	PutOneTimeCode(ctx context.Context, code Code) error
	GetOneTimeCode(ctx context.Context, email string) (Code, error)
	ConsumeOneTimeCode(ctx context.Context, email string, codeHash string) error
}

// Manager generates, persists, and consumes one-time codes.
type Manager struct {
	store  Store
	config Config
	clock  func() time.Time
	random io.Reader
}

// NewManager builds an OTP manager with production defaults for clock and
// entropy. Tests override the unexported fields directly.
func NewManager(store Store, config Config) *Manager {
	return &Manager{
		store:  store,
		config: config,
		clock:  time.Now,
		random: rand.Reader,
	}
}

// Initiate generates a fresh numeric code for the email, stores its hash with
// the configured TTL, and returns the raw code for out-of-band delivery.
// Any previously stored code for the email is overwritten: last issued wins.
func (m *Manager) Initiate(ctx context.Context, email string) (string, error) {
	if m.store == nil {
		return "", fmt.Errorf("otp store is not configured")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("email is required")
	}

	rawCode, err := m.generateCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawCode), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	record := Code{
		Email:     email,
		CodeHash:  string(hash),
		ExpiresAt: m.clock().UTC().Add(m.config.TTL),
	}
	if err := m.store.PutOneTimeCode(ctx, record); err != nil {
		return "", fmt.Errorf("store one-time code: %w", err)
	}
	return rawCode, nil
}

// VerifyAndConsume checks a submitted code against the stored record and
// deletes it on success. Failure kinds are ErrNotFound, ErrExpired, and
// ErrMismatch; only success removes the record.
func (m *Manager) VerifyAndConsume(ctx context.Context, email string, submitted string) error {
	if m.store == nil {
		return fmt.Errorf("otp store is not configured")
	}

	record, err := m.store.GetOneTimeCode(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load one-time code: %w", err)
	}

	if !m.clock().UTC().Before(record.ExpiresAt) {
		return ErrExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(submitted)); err != nil {
		return ErrMismatch
	}

	// Compare-and-delete on the exact hash that was verified: if another
	// verification (or a newer Initiate) raced ahead, no row matches and
	// this attempt loses.
	if err := m.store.ConsumeOneTimeCode(ctx, email, record.CodeHash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("consume one-time code: %w", err)
	}
	return nil
}

func (m *Manager) generateCode() (string, error) {
	digits := make([]byte, m.config.Length)
	for i := range digits {
		n, err := rand.Int(m.random, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
