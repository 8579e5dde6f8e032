// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"crypto/subtle"
	"sync"

	"github.com/samber/oops"
)

// VerifyResult is the outcome of checking a password against a stored
// credential. Rehashed is set only when a legacy credential matched; it is
// the value that should replace the stored credential.
type VerifyResult struct {
	Valid    bool
	Rehashed string
}

// CredentialEngine verifies passwords against hashed or legacy credentials.
// It performs no I/O.
type CredentialEngine struct {
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialEngine creates an engine around hasher.
func NewCredentialEngine(hasher PasswordHasher) *CredentialEngine {
	return &CredentialEngine{hasher: hasher}
}

// Hasher returns the hasher new credentials are produced with.
func (e *CredentialEngine) Hasher() PasswordHasher {
	return e.hasher
}

// Verify checks password against stored.
//
// An empty stored credential or an empty password never matches. A
// malformed hash is treated as a mismatch. The only error is a failure to
// produce the replacement hash for a matching legacy credential.
func (e *CredentialEngine) Verify(password, stored string) (VerifyResult, error) {
	if stored == "" || password == "" {
		return VerifyResult{}, nil
	}

	if !e.hasher.NeedsUpgrade(stored) {
		ok, err := e.hasher.Verify(password, stored)
		if err != nil {
			return VerifyResult{}, nil //nolint:nilerr // unusable hash is a mismatch
		}
		return VerifyResult{Valid: ok}, nil
	}

	if subtle.ConstantTimeCompare([]byte(password), []byte(stored)) != 1 {
		return VerifyResult{}, nil
	}

	rehashed, err := e.hasher.Hash(password)
	if err != nil {
		return VerifyResult{}, oops.Code("AUTH_REHASH_FAILED").With("operation", "upgrade legacy credential").Wrap(err)
	}
	return VerifyResult{Valid: true, Rehashed: rehashed}, nil
}

// Hash produces a fresh hashed credential.
func (e *CredentialEngine) Hash(password string) (string, error) {
	return e.hasher.Hash(password) //nolint:wrapcheck // hasher errors are already coded
}

// VerifyDummy spends the same work as a real hash comparison. It keeps the
// unknown-email path from answering measurably faster than a wrong password.
func (e *CredentialEngine) VerifyDummy(password string) {
	e.dummyOnce.Do(func() {
		e.dummyHash, _ = e.hasher.Hash("authgate-dummy-credential") //nolint:errcheck // empty hash still costs a compare
	})
	_, _ = e.hasher.Verify(password, e.dummyHash) //nolint:errcheck // result is discarded
}
