// Package verifier validates WebAuthn ceremony responses against
// service-issued challenges.
package verifier

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/meridianbank/passkeyd/internal/auth/credential"
	apperrors "github.com/meridianbank/passkeyd/internal/platform/errors"
)

// CredentialFinder resolves a stored credential by its encoded id during
// authentication verification.
type CredentialFinder func(ctx context.Context, credentialID string) (credential.Credential, error)

// WebAuthn wraps the go-webauthn relying party with challenge material owned
// by the ceremony layer. Sessions are built per call rather than by the
// library's Begin* helpers, so the challenge the authenticator signed is
// always the one the ceremony issued.
type WebAuthn struct {
	provider *webauthn.WebAuthn
	clock    func() time.Time
}

// New builds a verifier from relying party configuration.
func New(config Config) (*WebAuthn, error) {
	provider, err := webauthn.New(&webauthn.Config{
		RPDisplayName: config.RPDisplayName,
		RPID:          config.RPID,
		RPOrigins:     config.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	return &WebAuthn{provider: provider, clock: time.Now}, nil
}

// VerifyRegistration validates an attestation response against the issued
// challenge and returns the resulting credential bound to the account.
func (v *WebAuthn) VerifyRegistration(_ context.Context, response []byte, challenge []byte, accountID string) (credential.Credential, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return credential.Credential{}, apperrors.Wrap(apperrors.CodeRegistrationVerificationFailed, "parse attestation response", err)
	}

	session := webauthn.SessionData{
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		UserID:    []byte(accountID),
	}
	created, err := v.provider.CreateCredential(&ceremonyUser{id: accountID}, session, parsed)
	if err != nil {
		return credential.Credential{}, apperrors.Wrap(apperrors.CodeRegistrationVerificationFailed, "validate attestation response", err)
	}

	return credential.FromWebAuthn(accountID, *created, v.clock().UTC())
}

// VerifyAuthentication validates an assertion response against the issued
// challenge, resolving the asserted credential through find. It returns the
// matched stored credential and the sign count carried by the assertion.
//
// Discoverable flow: the account is identified by the response's user handle,
// never by caller input. Sign count enforcement is left to the caller, which
// knows the stored baseline.
func (v *WebAuthn) VerifyAuthentication(ctx context.Context, response []byte, challenge []byte, find CredentialFinder) (credential.Credential, uint32, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return credential.Credential{}, 0, apperrors.Wrap(apperrors.CodeAuthenticationVerificationFailed, "parse assertion response", err)
	}

	var (
		matched credential.Credential
		findErr error
	)
	handler := func(rawID, userHandle []byte) (webauthn.User, error) {
		stored, err := find(ctx, credential.EncodeID(rawID))
		if err != nil {
			findErr = err
			return nil, err
		}
		verification, err := stored.WebAuthn()
		if err != nil {
			findErr = err
			return nil, err
		}
		matched = stored
		return &ceremonyUser{id: stored.AccountID, credentials: []webauthn.Credential{verification}}, nil
	}

	session := webauthn.SessionData{
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
	}
	if _, _, err := v.provider.ValidatePasskeyLogin(handler, session, parsed); err != nil {
		// The library flattens handler errors into its own; surface the
		// original lookup failure when that is what went wrong.
		if findErr != nil {
			return credential.Credential{}, 0, findErr
		}
		return credential.Credential{}, 0, apperrors.Wrap(apperrors.CodeAuthenticationVerificationFailed, "validate assertion response", err)
	}

	return matched, parsed.Response.AuthenticatorData.Counter, nil
}

// ceremonyUser adapts an account id and its credentials to the webauthn.User
// contract. The account id doubles as the user handle.
type ceremonyUser struct {
	id          string
	credentials []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return []byte(u.id)
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.id
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.id
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}
