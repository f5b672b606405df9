package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridianbank/passkeyd/internal/auth/ceremony"
	"github.com/meridianbank/passkeyd/internal/auth/credential"
	"github.com/meridianbank/passkeyd/internal/auth/storage"
	"github.com/meridianbank/passkeyd/internal/auth/token"
	apperrors "github.com/meridianbank/passkeyd/internal/platform/errors"
)

// FinishLogin validates an assertion response against a login ceremony and
// returns tokens for the credential's account.
//
// The sign count guard lives here rather than in the verifier: an asserted
// count that does not strictly increase the stored one is rejected as a
// cloned-authenticator signal, with no state mutated.
func (s *Service) FinishLogin(ctx context.Context, contextID string, credentialID string, response []byte) (token.Tokens, error) {
	ctx, span := s.tracer.Start(ctx, "auth.FinishLogin")
	defer span.End()

	if s.ceremonies == nil || s.credentials == nil || s.verifier == nil || s.tokens == nil {
		return token.Tokens{}, fmt.Errorf("service collaborators are not configured")
	}
	if len(response) == 0 {
		return token.Tokens{}, apperrors.New(apperrors.CodeAuthenticationVerificationFailed, "assertion response is required")
	}

	loaded, err := s.ceremonies.Load(ctx, contextID)
	if err != nil {
		return token.Tokens{}, err
	}
	if !loaded.Valid(s.clock().UTC()) {
		return token.Tokens{}, ceremony.ErrExpired
	}
	if loaded.Binding.Kind != ceremony.KindLogin {
		return token.Tokens{}, apperrors.New(apperrors.CodeSessionNotFound, "ceremony is not a login ceremony")
	}

	stored, err := s.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return token.Tokens{}, apperrors.Wrap(apperrors.CodeCredentialNotFound, "credential not found", err)
		}
		return token.Tokens{}, fmt.Errorf("load credential: %w", err)
	}

	matched, assertedCount, err := s.verifier.VerifyAuthentication(ctx, response, loaded.Challenge, func(_ context.Context, assertedID string) (credential.Credential, error) {
		if assertedID != credentialID {
			return credential.Credential{}, apperrors.New(apperrors.CodeAuthenticationVerificationFailed, "asserted credential does not match request")
		}
		return stored, nil
	})
	if err != nil {
		return token.Tokens{}, err
	}

	if assertedCount <= matched.SignCount {
		return token.Tokens{}, apperrors.New(apperrors.CodeMaliciousCounter, "sign count did not increase")
	}

	if err := s.credentials.UpdateSignCount(ctx, matched.ID, assertedCount, s.clock().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return token.Tokens{}, apperrors.Wrap(apperrors.CodeCredentialNotFound, "credential vanished during login", err)
		}
		return token.Tokens{}, fmt.Errorf("update sign count: %w", err)
	}

	// The sign count is durable; only now is the ceremony spent.
	if err := s.ceremonies.Consume(ctx, contextID); err != nil {
		return token.Tokens{}, err
	}

	tokens, err := s.tokens.IssueTokens(ctx, matched.AccountID)
	if err != nil {
		return token.Tokens{}, fmt.Errorf("issue tokens: %w", err)
	}
	return tokens, nil
}
