// Package service orchestrates the OTP-gated passkey ceremonies: code
// verification, ceremony issuance, credential registration, and login.
package service

import (
	"context"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/meridianbank/passkeyd/internal/auth/account"
	"github.com/meridianbank/passkeyd/internal/auth/ceremony"
	"github.com/meridianbank/passkeyd/internal/auth/credential"
	"github.com/meridianbank/passkeyd/internal/auth/otp"
	"github.com/meridianbank/passkeyd/internal/auth/token"
	"github.com/meridianbank/passkeyd/internal/auth/verifier"
	"github.com/meridianbank/passkeyd/internal/platform/id"
)

// Verifier validates WebAuthn ceremony responses.
type Verifier interface {
	VerifyRegistration(ctx context.Context, response []byte, challenge []byte, accountID string) (credential.Credential, error)
	VerifyAuthentication(ctx context.Context, response []byte, challenge []byte, find verifier.CredentialFinder) (credential.Credential, uint32, error)
}

// TokenIssuer mints the grant returned after a completed ceremony.
type TokenIssuer interface {
	IssueTokens(ctx context.Context, accountID string) (token.Tokens, error)
}

// OTPSender delivers a raw one-time code out of band.
type OTPSender interface {
	SendOTPEmail(ctx context.Context, email string, code string) error
}

// RelyingParty is the identity advertised in ceremony options.
type RelyingParty struct {
	ID          string
	DisplayName string
}

// Service is the ceremony orchestrator. It owns no state of its own; every
// suspension point is a store call.
type Service struct {
	otp          *otp.Manager
	ceremonies   *ceremony.Manager
	accounts     account.Store
	credentials  credential.Store
	verifier     Verifier
	tokens       TokenIssuer
	sender       OTPSender
	relyingParty RelyingParty
	clock        func() time.Time
	idGenerator  func() (string, error)
	tracer       trace.Tracer
}

// Params collects the service collaborators.
type Params struct {
	OTP          *otp.Manager
	Ceremonies   *ceremony.Manager
	Accounts     account.Store
	Credentials  credential.Store
	Verifier     Verifier
	Tokens       TokenIssuer
	Sender       OTPSender
	RelyingParty RelyingParty
}

// New builds the orchestrator with production defaults for clock and id
// generation. Tests override the unexported fields directly.
func New(p Params) *Service {
	return &Service{
		otp:          p.OTP,
		ceremonies:   p.Ceremonies,
		accounts:     p.Accounts,
		credentials:  p.Credentials,
		verifier:     p.Verifier,
		tokens:       p.Tokens,
		sender:       p.Sender,
		relyingParty: p.RelyingParty,
		clock:        time.Now,
		idGenerator:  id.NewID,
		tracer:       otel.Tracer("passkeyd/auth"),
	}
}

// RegistrationOptions is what a client needs to run a credential creation
// ceremony for a fresh account.
type RegistrationOptions struct {
	Challenge     string `json:"challenge"` // base64url
	RPID          string `json:"rpId"`
	RPDisplayName string `json:"rpDisplayName"`
	UserHandle    string `json:"userHandle"`
	UserName      string `json:"userName"`
}

// LoginOptions is what a client needs to run an assertion ceremony against
// an enabled account's credentials.
type LoginOptions struct {
	Challenge        string                          `json:"challenge"` // base64url
	RPID             string                          `json:"rpId"`
	AllowCredentials []protocol.CredentialDescriptor `json:"allowCredentials,omitempty"`
}

// StartVerificationResult carries the issued ceremony context plus exactly one
// of the two option payloads, chosen by the account's enabled flag.
type StartVerificationResult struct {
	ContextID    string               `json:"contextId"`
	Kind         ceremony.Kind        `json:"kind"`
	Registration *RegistrationOptions `json:"registration,omitempty"`
	Login        *LoginOptions        `json:"login,omitempty"`
}
