// Package token issues access and refresh tokens for authenticated accounts.
package token

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	"github.com/meridianbank/passkeyd/internal/platform/id"
)

// Tokens is the opaque grant returned to a caller that completed a ceremony.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Config controls token claims and lifetimes.
//
// PrivateKey is a base64-encoded ed25519 private key (see cmd/token-key).
// When empty an ephemeral key is generated at startup: tokens then stop
// verifying across restarts, which is acceptable for local development only.
type Config struct {
	Issuer     string        `env:"PASSKEYD_TOKEN_ISSUER"      envDefault:"passkeyd"`
	Audience   string        `env:"PASSKEYD_TOKEN_AUDIENCE"    envDefault:"passkeyd"`
	AccessTTL  time.Duration `env:"PASSKEYD_TOKEN_ACCESS_TTL"  envDefault:"15m"`
	RefreshTTL time.Duration `env:"PASSKEYD_TOKEN_REFRESH_TTL" envDefault:"720h"`
	PrivateKey string        `env:"PASSKEYD_TOKEN_PRIVATE_KEY"`
}

// LoadConfigFromEnv returns token configuration with defensive defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.Issuer == "" {
		cfg.Issuer = "passkeyd"
	}
	if cfg.Audience == "" {
		cfg.Audience = "passkeyd"
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 720 * time.Hour
	}
	return cfg
}

// Claims are the signed JWT claims carried by both token types.
type Claims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
}

// Issuer signs EdDSA access/refresh token pairs keyed by account id.
type Issuer struct {
	config      Config
	key         ed25519.PrivateKey
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewIssuer builds a token issuer from configuration, decoding the configured
// signing key or generating an ephemeral one when none is set.
func NewIssuer(config Config) (*Issuer, error) {
	key, err := decodePrivateKey(config.PrivateKey)
	if err != nil {
		return nil, err
	}
	if key == nil {
		_, key, err = ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral signing key: %w", err)
		}
	}
	return &Issuer{
		config:      config,
		key:         key,
		clock:       time.Now,
		idGenerator: id.NewID,
	}, nil
}

// PublicKey exposes the verification key for token consumers.
func (i *Issuer) PublicKey() ed25519.PublicKey {
	return i.key.Public().(ed25519.PublicKey)
}

// IssueTokens returns a fresh access/refresh pair for the account.
func (i *Issuer) IssueTokens(_ context.Context, accountID string) (Tokens, error) {
	if strings.TrimSpace(accountID) == "" {
		return Tokens{}, fmt.Errorf("account id is required")
	}

	accessToken, err := i.sign(accountID, "access", i.config.AccessTTL)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := i.sign(accountID, "refresh", i.config.RefreshTTL)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Tokens{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (i *Issuer) sign(accountID string, use string, ttl time.Duration) (string, error) {
	jti, err := i.idGenerator()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := i.clock().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.config.Issuer,
			Audience:  jwt.ClaimStrings{i.config.Audience},
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
		TokenUse: use,
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(i.key)
}

func decodePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode token private key: %w", err)
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, fmt.Errorf("token private key must be %d or %d bytes", ed25519.SeedSize, ed25519.PrivateKeySize)
	}
}
