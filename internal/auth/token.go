// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// DefaultTokenTTL is the lifetime of a session token and its cookie.
const DefaultTokenTTL = 7 * 24 * time.Hour

// InsecureDevSecret signs tokens when no secret is configured outside
// production. Anyone who knows it can forge sessions.
//
//nolint:gosec // G101: well-known development value, never used in production
const InsecureDevSecret = "please-set-a-secret"

// Claims identify the session holder.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type sessionClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret   []byte
	insecure bool
	ttl      time.Duration
	now      func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenTTL overrides DefaultTokenTTL.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(i *TokenIssuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(i *TokenIssuer) { i.now = now }
}

// AllowInsecureSecret substitutes InsecureDevSecret for an empty secret.
func AllowInsecureSecret() TokenOption {
	return func(i *TokenIssuer) {
		if len(i.secret) == 0 {
			i.secret = []byte(InsecureDevSecret)
			i.insecure = true
		}
	}
}

// NewTokenIssuer creates an issuer. With an empty secret and no
// AllowInsecureSecret, Issue fails and Verify rejects everything.
func NewTokenIssuer(secret string, opts ...TokenOption) *TokenIssuer {
	i := &TokenIssuer{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TTL returns the default token lifetime.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// UsesInsecureSecret reports whether the development secret is in use.
func (i *TokenIssuer) UsesInsecureSecret() bool { return i.insecure }

// Configured reports whether the issuer can sign tokens.
func (i *TokenIssuer) Configured() bool { return len(i.secret) > 0 }

// Issue signs claims with the default TTL.
func (i *TokenIssuer) Issue(claims Claims) (string, error) {
	return i.IssueWithTTL(claims, i.ttl)
}

// IssueWithTTL signs claims expiring ttl from now. Output is deterministic
// for identical claims, ttl, secret and clock reading.
func (i *TokenIssuer) IssueWithTTL(claims Claims, ttl time.Duration) (string, error) {
	if len(i.secret) == 0 {
		return "", oops.Code(CodeTokenCreation).With("reason", "secret not configured").Wrap(ErrTokenCreation)
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", oops.Code(CodeTokenCreation).With("operation", "sign token").Wrap(errors.Join(ErrTokenCreation, err))
	}
	return signed, nil
}

// Verify returns the claims of a valid token. Bad signatures, other
// algorithms, malformed input and expired tokens all yield (nil, false).
func (i *TokenIssuer) Verify(token string) (*Claims, bool) {
	claims, _, ok := i.VerifyWithExpiry(token)
	return claims, ok
}

// VerifyWithExpiry is Verify plus the token's expiry time.
func (i *TokenIssuer) VerifyWithExpiry(token string) (*Claims, time.Time, bool) {
	if token == "" || len(i.secret) == 0 {
		return nil, time.Time{}, false
	}

	var sc sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &sc,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, time.Time{}, false
	}
	return &Claims{UserID: sc.UserID, Email: sc.Email}, sc.ExpiresAt.Time, true
}
