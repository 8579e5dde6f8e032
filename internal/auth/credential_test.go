// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/majorproject/authgate/internal/auth"
	"github.com/majorproject/authgate/pkg/errutil"
)

func newEngine() *auth.CredentialEngine {
	return auth.NewCredentialEngine(auth.NewBcryptHasher(bcrypt.MinCost))
}

func TestCredentialEngine_HashedCredential(t *testing.T) {
	engine := newEngine()

	for _, password := range []string{"secret1", "correct horse battery staple", "ünïcødé-🔑"} {
		t.Run(password, func(t *testing.T) {
			hash, err := engine.Hash(password)
			require.NoError(t, err)

			res, err := engine.Verify(password, hash)
			require.NoError(t, err)
			assert.True(t, res.Valid)
			assert.Empty(t, res.Rehashed, "hashed credentials are never rehashed")

			res, err = engine.Verify(password+"x", hash)
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.Empty(t, res.Rehashed)
		})
	}
}

func TestCredentialEngine_LegacyUpgradeIsOneShot(t *testing.T) {
	engine := newEngine()

	first, err := engine.Verify("secret1", "secret1")
	require.NoError(t, err)
	assert.True(t, first.Valid)
	require.NotEmpty(t, first.Rehashed)
	assert.True(t, auth.IsHashed(first.Rehashed))

	second, err := engine.Verify("secret1", first.Rehashed)
	require.NoError(t, err)
	assert.True(t, second.Valid)
	assert.Empty(t, second.Rehashed, "verifying the upgraded credential proposes nothing further")
}

func TestCredentialEngine_LongLegacyCredentialUpgrades(t *testing.T) {
	engine := newEngine()
	password := strings.Repeat("a", 80)

	first, err := engine.Verify(password, password)
	require.NoError(t, err)
	assert.True(t, first.Valid)
	require.NotEmpty(t, first.Rehashed)

	second, err := engine.Verify(password, first.Rehashed)
	require.NoError(t, err)
	assert.True(t, second.Valid)
	assert.Empty(t, second.Rehashed)
}

func TestCredentialEngine_LegacyMismatch(t *testing.T) {
	res, err := newEngine().Verify("wrong", "secret1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Empty(t, res.Rehashed)
}

func TestCredentialEngine_EmptyInputs(t *testing.T) {
	engine := newEngine()

	tests := []struct {
		name     string
		password string
		stored   string
	}{
		{"empty stored credential", "anything", ""},
		{"empty stored and password", "", ""},
		{"empty password against legacy", "", "secret1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.Verify(tt.password, tt.stored)
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.Empty(t, res.Rehashed)
		})
	}
}

func TestCredentialEngine_MalformedHashIsInvalid(t *testing.T) {
	res, err := newEngine().Verify("$2a$10$short", "$2a$10$short")
	require.NoError(t, err)
	assert.False(t, res.Valid, "a $2-prefixed value is never compared as plaintext")
}

type failingHasher struct{ auth.PasswordHasher }

func (failingHasher) Hash(string) (string, error) { return "", errors.New("entropy exhausted") }

func TestCredentialEngine_RehashFailure(t *testing.T) {
	engine := auth.NewCredentialEngine(failingHasher{auth.NewBcryptHasher(bcrypt.MinCost)})

	_, err := engine.Verify("secret1", "secret1")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_REHASH_FAILED")
}

func TestCredentialEngine_VerifyDummy(t *testing.T) {
	engine := newEngine()
	assert.NotPanics(t, func() {
		engine.VerifyDummy("whatever")
		engine.VerifyDummy("")
	})
}
