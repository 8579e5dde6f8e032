// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"errors"

	"github.com/majorproject/authgate/internal/store"
)

// Error codes attached to every failure Service returns.
const (
	CodeMissingFields      = "AUTH_MISSING_FIELDS"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeUserExists         = "AUTH_USER_EXISTS"
	CodeStoreUnavailable   = store.CodeStoreUnavailable
	CodeTokenCreation      = "TOKEN_CREATION_FAILED"
	CodeInvalidSession     = "AUTH_INVALID_SESSION"
	CodeInternal           = "AUTH_INTERNAL"
)

// Taxonomy sentinels. Returned errors wrap exactly one of these.
var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrStoreUnavailable   = store.ErrUnavailable
	ErrTokenCreation      = errors.New("token creation failed")
	ErrInvalidSession     = errors.New("invalid session")
	ErrInternal           = errors.New("internal error")
)

var taxonomy = []struct {
	err  error
	code string
}{
	{ErrMissingFields, CodeMissingFields},
	{ErrInvalidCredentials, CodeInvalidCredentials},
	{ErrUserExists, CodeUserExists},
	{ErrStoreUnavailable, CodeStoreUnavailable},
	{ErrTokenCreation, CodeTokenCreation},
	{ErrInvalidSession, CodeInvalidSession},
	{ErrInternal, CodeInternal},
}

// ErrorCode returns the taxonomy code err belongs to, or "" when err is
// outside it. Matching uses the wrapped sentinel rather than the oops code,
// which reports the innermost code of a chain.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, t := range taxonomy {
		if errors.Is(err, t.err) {
			return t.code
		}
	}
	return ""
}
