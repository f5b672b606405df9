package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridianbank/passkeyd/internal/auth/ceremony"
	"github.com/meridianbank/passkeyd/internal/auth/storage"
	"github.com/meridianbank/passkeyd/internal/auth/token"
	apperrors "github.com/meridianbank/passkeyd/internal/platform/errors"
)

// FinishRegistration validates an attestation response against a registration
// ceremony and lands the credential.
//
// The steps are strictly sequential with no compensation: any failure before
// the ceremony is consumed leaves it valid for retry, and the account flips to
// enabled only after its first credential is durably stored.
func (s *Service) FinishRegistration(ctx context.Context, contextID string, response []byte) (token.Tokens, error) {
	ctx, span := s.tracer.Start(ctx, "auth.FinishRegistration")
	defer span.End()

	if s.ceremonies == nil || s.accounts == nil || s.credentials == nil || s.verifier == nil || s.tokens == nil {
		return token.Tokens{}, fmt.Errorf("service collaborators are not configured")
	}
	if len(response) == 0 {
		return token.Tokens{}, apperrors.New(apperrors.CodeRegistrationVerificationFailed, "attestation response is required")
	}

	loaded, err := s.ceremonies.Load(ctx, contextID)
	if err != nil {
		return token.Tokens{}, err
	}
	if !loaded.Valid(s.clock().UTC()) {
		return token.Tokens{}, ceremony.ErrExpired
	}
	if loaded.Binding.Kind != ceremony.KindRegistration {
		return token.Tokens{}, apperrors.New(apperrors.CodeSessionNotFound, "ceremony is not a registration ceremony")
	}

	created, err := s.verifier.VerifyRegistration(ctx, response, loaded.Challenge, loaded.Binding.AccountID)
	if err != nil {
		return token.Tokens{}, err
	}

	if err := s.credentials.PutCredential(ctx, created); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return token.Tokens{}, apperrors.Wrap(apperrors.CodeCredentialAlreadyExists, "credential already registered", err)
		}
		return token.Tokens{}, fmt.Errorf("store credential: %w", err)
	}

	// The credential is durable; only now is the ceremony spent.
	if err := s.ceremonies.Consume(ctx, contextID); err != nil {
		return token.Tokens{}, err
	}

	acct, err := s.accounts.GetAccount(ctx, loaded.Binding.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return token.Tokens{}, apperrors.Wrap(apperrors.CodeAccountNotFound, "account missing after registration", err)
		}
		return token.Tokens{}, fmt.Errorf("load account: %w", err)
	}
	if !acct.Enabled {
		acct.Enabled = true
		acct.UpdatedAt = s.clock().UTC()
		if err := s.accounts.PutAccount(ctx, acct); err != nil {
			return token.Tokens{}, fmt.Errorf("enable account: %w", err)
		}
	}

	tokens, err := s.tokens.IssueTokens(ctx, acct.ID)
	if err != nil {
		return token.Tokens{}, fmt.Errorf("issue tokens: %w", err)
	}
	return tokens, nil
}
