// Package ceremony issues and consumes short-lived WebAuthn ceremony contexts.
package ceremony

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/meridianbank/passkeyd/internal/auth/storage"
	apperrors "github.com/meridianbank/passkeyd/internal/platform/errors"
	"github.com/meridianbank/passkeyd/internal/platform/id"
)

var (
	// ErrNotFound indicates the context is missing or already consumed.
	ErrNotFound = apperrors.New(apperrors.CodeSessionNotFound, "ceremony context not found")
	// ErrExpired indicates the context's TTL has elapsed.
	ErrExpired = apperrors.New(apperrors.CodeSessionExpired, "ceremony context expired")
)

// Kind discriminates the two ceremony types.
type Kind string

const (
	KindRegistration Kind = "registration"
	KindLogin        Kind = "login"
)

// Binding carries the ceremony kind and, for registration ceremonies, the
// account the resulting credential must attach to. Login ceremonies are open:
// a discoverable credential identifies the account at completion time.
type Binding struct {
	Kind      Kind
	AccountID string
}

// RegistrationBinding binds a ceremony to the account that will own the
// new credential.
func RegistrationBinding(accountID string) Binding {
	return Binding{Kind: KindRegistration, AccountID: accountID}
}

// LoginBinding opens an authentication ceremony with no pre-bound account.
func LoginBinding() Binding {
	return Binding{Kind: KindLogin}
}

// Context is a single-use ceremony context: an unguessable id plus the
// challenge the authenticator must sign over.
type Context struct {
	ID        string
	Challenge []byte
	Binding   Binding
	ExpiresAt time.Time
}

// Valid reports whether the context is still usable at the given instant.
func (c Context) Valid(now time.Time) bool {
	return now.Before(c.ExpiresAt)
}

// Store persists ceremony contexts.
//
// ConsumeCeremony must delete atomically (a single conditional statement) and
// return storage.ErrNotFound when no row matched, so concurrent completions of
// the same ceremony cannot both succeed.
type Store interface {
	PutCeremony(ctx context.Context, c Context) error
	GetCeremony(ctx context.Context, ceremonyID string) (Context, error)
	ConsumeCeremony(ctx context.Context, ceremonyID string) error
	DeleteExpiredCeremonies(ctx context.Context, now time.Time) error
}

// Manager issues and consumes ceremony contexts.
type Manager struct {
	store       Store
	config      Config
	clock       func() time.Time
	idGenerator func() (string, error)
	random      io.Reader
}

// NewManager builds a ceremony manager with production defaults for clock,
// id generation, and entropy. Tests override the unexported fields directly.
func NewManager(store Store, config Config) *Manager {
	return &Manager{
		store:       store,
		config:      config,
		clock:       time.Now,
		idGenerator: id.NewID,
		random:      rand.Reader,
	}
}

// Issue creates, persists, and returns a fresh ceremony context.
func (m *Manager) Issue(ctx context.Context, binding Binding) (Context, error) {
	if m.store == nil {
		return Context{}, fmt.Errorf("ceremony store is not configured")
	}
	switch binding.Kind {
	case KindRegistration:
		if binding.AccountID == "" {
			return Context{}, fmt.Errorf("registration ceremony requires an account id")
		}
	case KindLogin:
	default:
		return Context{}, fmt.Errorf("unknown ceremony kind %q", binding.Kind)
	}

	ceremonyID, err := m.idGenerator()
	if err != nil {
		return Context{}, fmt.Errorf("generate ceremony id: %w", err)
	}

	challenge := make([]byte, m.config.ChallengeSize)
	if _, err := io.ReadFull(m.random, challenge); err != nil {
		return Context{}, fmt.Errorf("generate challenge: %w", err)
	}

	issued := Context{
		ID:        ceremonyID,
		Challenge: challenge,
		Binding:   binding,
		ExpiresAt: m.clock().UTC().Add(m.config.TTL),
	}
	if err := m.store.PutCeremony(ctx, issued); err != nil {
		return Context{}, fmt.Errorf("store ceremony: %w", err)
	}
	return issued, nil
}

// Load fetches a context by id, failing with ErrNotFound when absent.
// Expiry is the caller's check: orchestrators reject invalid contexts before
// any cryptographic work.
func (m *Manager) Load(ctx context.Context, ceremonyID string) (Context, error) {
	if m.store == nil {
		return Context{}, fmt.Errorf("ceremony store is not configured")
	}
	loaded, err := m.store.GetCeremony(ctx, ceremonyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Context{}, ErrNotFound
		}
		return Context{}, fmt.Errorf("load ceremony: %w", err)
	}
	return loaded, nil
}

// Consume deletes the context, failing with ErrNotFound when it was already
// consumed. Orchestrators call this only after the ceremony's durable state
// change has succeeded.
func (m *Manager) Consume(ctx context.Context, ceremonyID string) error {
	if m.store == nil {
		return fmt.Errorf("ceremony store is not configured")
	}
	if err := m.store.ConsumeCeremony(ctx, ceremonyID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("consume ceremony: %w", err)
	}
	return nil
}
