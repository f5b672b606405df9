package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/meridianbank/passkeyd/internal/auth/account"
	"github.com/meridianbank/passkeyd/internal/auth/ceremony"
	"github.com/meridianbank/passkeyd/internal/auth/storage"
)

// RequestOTP issues a fresh one-time code for the address and hands it to the
// configured sender. A delivery failure is surfaced but the stored code stays
// usable, so a resend or a copy from the logs still verifies.
func (s *Service) RequestOTP(ctx context.Context, email string) error {
	ctx, span := s.tracer.Start(ctx, "auth.RequestOTP")
	defer span.End()

	if s.otp == nil || s.sender == nil {
		return fmt.Errorf("otp manager and sender are not configured")
	}

	normalized, err := account.NormalizeEmail(email)
	if err != nil {
		return err
	}

	rawCode, err := s.otp.Initiate(ctx, normalized)
	if err != nil {
		return fmt.Errorf("initiate one-time code: %w", err)
	}

	if err := s.sender.SendOTPEmail(ctx, normalized, rawCode); err != nil {
		return fmt.Errorf("send one-time code: %w", err)
	}
	return nil
}

// StartVerification consumes a one-time code and opens the ceremony the
// account's state calls for: registration options for a disabled (or brand
// new) account, login options for an enabled one.
//
// Failure before ceremony issuance leaves no context behind; a newly created
// account record is the only committed residue allowed.
func (s *Service) StartVerification(ctx context.Context, email string, code string) (StartVerificationResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.StartVerification")
	defer span.End()

	if s.otp == nil || s.ceremonies == nil || s.accounts == nil || s.credentials == nil {
		return StartVerificationResult{}, fmt.Errorf("service stores are not configured")
	}

	normalized, err := account.NormalizeEmail(email)
	if err != nil {
		return StartVerificationResult{}, err
	}

	if err := s.otp.VerifyAndConsume(ctx, normalized, code); err != nil {
		return StartVerificationResult{}, err
	}

	acct, err := s.accounts.FindAccountByEmail(ctx, normalized)
	if errors.Is(err, storage.ErrNotFound) {
		acct, err = account.CreateAccount(normalized, s.clock, s.idGenerator)
		if err != nil {
			return StartVerificationResult{}, err
		}
		if err := s.accounts.PutAccount(ctx, acct); err != nil {
			return StartVerificationResult{}, fmt.Errorf("create account: %w", err)
		}
	} else if err != nil {
		return StartVerificationResult{}, fmt.Errorf("find account: %w", err)
	}

	if acct.Enabled {
		return s.startLogin(ctx, acct)
	}
	return s.startRegistration(ctx, acct)
}

func (s *Service) startRegistration(ctx context.Context, acct account.Account) (StartVerificationResult, error) {
	issued, err := s.ceremonies.Issue(ctx, ceremony.RegistrationBinding(acct.ID))
	if err != nil {
		return StartVerificationResult{}, fmt.Errorf("issue registration ceremony: %w", err)
	}
	return StartVerificationResult{
		ContextID: issued.ID,
		Kind:      ceremony.KindRegistration,
		Registration: &RegistrationOptions{
			Challenge:     base64.RawURLEncoding.EncodeToString(issued.Challenge),
			RPID:          s.relyingParty.ID,
			RPDisplayName: s.relyingParty.DisplayName,
			UserHandle:    acct.ID,
			UserName:      acct.Email,
		},
	}, nil
}

func (s *Service) startLogin(ctx context.Context, acct account.Account) (StartVerificationResult, error) {
	stored, err := s.credentials.ListCredentialsByAccount(ctx, acct.ID)
	if err != nil {
		return StartVerificationResult{}, fmt.Errorf("list credentials: %w", err)
	}
	allowed := make([]protocol.CredentialDescriptor, 0, len(stored))
	for _, c := range stored {
		descriptor, err := c.Descriptor()
		if err != nil {
			return StartVerificationResult{}, err
		}
		allowed = append(allowed, descriptor)
	}

	issued, err := s.ceremonies.Issue(ctx, ceremony.LoginBinding())
	if err != nil {
		return StartVerificationResult{}, fmt.Errorf("issue login ceremony: %w", err)
	}
	return StartVerificationResult{
		ContextID: issued.ID,
		Kind:      ceremony.KindLogin,
		Login: &LoginOptions{
			Challenge:        base64.RawURLEncoding.EncodeToString(issued.Challenge),
			RPID:             s.relyingParty.ID,
			AllowCredentials: allowed,
		},
	}, nil
}
