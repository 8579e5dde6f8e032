// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"errors"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost the web application has always used.
const DefaultBcryptCost = 10

// maxPasswordBytes is the most bcrypt reads of a password. Comparison
// ignores anything past it, so hashing only the prefix stays compatible
// with hashes produced by the web application.
const maxPasswordBytes = 72

// hashedPrefix marks bcrypt output ($2a$, $2b$, $2y$).
const hashedPrefix = "$2"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a bcrypt hash of the password.
	Hash(password string) (string, error)

	// Verify checks a password against a hash in constant time.
	// Returns (false, nil) on mismatch and an error only for unusable hashes.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade reports whether stored is a legacy plaintext credential.
	NeedsUpgrade(stored string) bool
}

// BcryptHasher implements PasswordHasher with golang.org/x/crypto/bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher. A cost outside bcrypt's range falls
// back to DefaultBcryptCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost returns the work factor new hashes are produced with.
func (h *BcryptHasher) Cost() int { return h.cost }

// Hash produces a bcrypt hash of the password. Passwords longer than 72
// bytes are hashed on their first 72 bytes.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	secret := []byte(password)
	if len(secret) > maxPasswordBytes {
		secret = secret[:maxPasswordBytes]
	}
	hash, err := bcrypt.GenerateFromPassword(secret, h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("cost", h.cost).Wrap(err)
	}
	return string(hash), nil
}

// Verify compares password with a bcrypt hash.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
}

// NeedsUpgrade returns true for anything that is not bcrypt output.
func (h *BcryptHasher) NeedsUpgrade(stored string) bool {
	return !IsHashed(stored)
}

// IsHashed reports whether stored uses the hashed credential format.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, hashedPrefix)
}
