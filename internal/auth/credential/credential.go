// Package credential defines passkey credential records and their store contract.
package credential

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Credential is one registered authenticator for an account.
//
// SignCount is the only field mutated after creation, and only upward, through
// Store.UpdateSignCount. CredentialJSON retains the verifier's full credential
// (including attestation data) for audit; it is never reparsed on the hot path
// except to rebuild verification material.
type Credential struct {
	ID              string // base64url-encoded credential id
	AccountID       string // owning account (WebAuthn user handle)
	PublicKey       []byte
	SignCount       uint32
	UserVerified    bool
	BackupEligible  bool
	BackupState     bool
	Transports      []string
	AttestationType string
	CredentialJSON  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastUsedAt      *time.Time
}

// Store persists credential records.
//
// PutCredential surfaces storage.ErrDuplicate when the credential id or public
// key is already registered. UpdateSignCount surfaces storage.ErrNotFound when
// no row matched.
type Store interface {
	PutCredential(ctx context.Context, c Credential) error
	GetCredential(ctx context.Context, credentialID string) (Credential, error)
	ListCredentialsByAccount(ctx context.Context, accountID string) ([]Credential, error)
	UpdateSignCount(ctx context.Context, credentialID string, signCount uint32, usedAt time.Time) error
}

// EncodeID renders a raw credential id in the canonical stored form.
func EncodeID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// FromWebAuthn converts a verifier-produced credential into a storable record
// bound to the given account.
func FromWebAuthn(accountID string, c webauthn.Credential, now time.Time) (Credential, error) {
	credentialJSON, err := json.Marshal(c)
	if err != nil {
		return Credential{}, fmt.Errorf("encode credential: %w", err)
	}

	transports := make([]string, 0, len(c.Transport))
	for _, transport := range c.Transport {
		transports = append(transports, string(transport))
	}

	return Credential{
		ID:              EncodeID(c.ID),
		AccountID:       accountID,
		PublicKey:       c.PublicKey,
		SignCount:       c.Authenticator.SignCount,
		UserVerified:    c.Flags.UserVerified,
		BackupEligible:  c.Flags.BackupEligible,
		BackupState:     c.Flags.BackupState,
		Transports:      transports,
		AttestationType: c.AttestationType,
		CredentialJSON:  string(credentialJSON),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// WebAuthn rebuilds the verification material for this record.
//
// The sign count column is authoritative: sign count updates do not rewrite
// CredentialJSON, so the decoded value is overwritten with the stored one.
func (c Credential) WebAuthn() (webauthn.Credential, error) {
	var decoded webauthn.Credential
	if err := json.Unmarshal([]byte(c.CredentialJSON), &decoded); err != nil {
		return webauthn.Credential{}, fmt.Errorf("decode credential %s: %w", c.ID, err)
	}
	decoded.Authenticator.SignCount = c.SignCount
	return decoded, nil
}

// Descriptor returns the allow-list entry advertised in login options.
func (c Credential) Descriptor() (protocol.CredentialDescriptor, error) {
	rawID, err := base64.RawURLEncoding.DecodeString(c.ID)
	if err != nil {
		return protocol.CredentialDescriptor{}, fmt.Errorf("decode credential id %s: %w", c.ID, err)
	}
	transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
	for _, transport := range c.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(transport))
	}
	return protocol.CredentialDescriptor{
		Type:         protocol.PublicKeyCredentialType,
		CredentialID: rawID,
		Transport:    transports,
	}, nil
}
