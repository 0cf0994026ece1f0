// Package jwt verifies access tokens issued by the external identity provider.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/campus-reservations/internal/identity"
	"github.com/golang-jwt/jwt/v5"
)

// Verification errors.
var (
	ErrMissingSubject = errors.New("token has no subject")
	ErrMissingEmail   = errors.New("token has no email")
)

// Config contains verifier settings.
type Config struct {
	SecretKey string
	// Issuer and Audience are checked only when set.
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Claims mirrors the identity provider's access token payload.
type Claims struct {
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserMetadata holds profile fields the provider embeds in tokens.
type UserMetadata struct {
	FullName string `json:"full_name"`
}

// Verifier validates HS256-signed tokens.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier creates a token verifier.
func NewVerifier(cfg Config) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		secret: []byte(cfg.SecretKey),
		parser: jwt.NewParser(opts...),
	}
}

// Verify parses and validates token.
func (v *Verifier) Verify(_ context.Context, token string) (*identity.Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(_ *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if claims.Email == "" {
		return nil, ErrMissingEmail
	}

	return &identity.Claims{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.UserMetadata.FullName,
	}, nil
}

// Sign issues a token for the given claims. The service never issues tokens
// in production; this exists for local development and tests.
func Sign(secretKey string, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// NewClaims builds claims for subject valid for ttl.
func NewClaims(subject, email, fullName string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		Email:        email,
		UserMetadata: UserMetadata{FullName: fullName},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}
