// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/majorproject/authgate/internal/auth"
	"github.com/majorproject/authgate/internal/store"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unrelated", errors.New("boom"), ""},
		{"missing fields", oops.Code(auth.CodeMissingFields).Wrap(auth.ErrMissingFields), auth.CodeMissingFields},
		{"invalid credentials wrapped twice", fmt.Errorf("login: %w", oops.Wrap(auth.ErrInvalidCredentials)), auth.CodeInvalidCredentials},
		{"user exists", auth.ErrUserExists, auth.CodeUserExists},
		{
			"store unavailable beneath a store code",
			oops.Code(auth.CodeStoreUnavailable).Wrap(oops.Code("USER_QUERY_FAILED").Wrap(store.ErrUnavailable)),
			auth.CodeStoreUnavailable,
		},
		{"token creation", errors.Join(auth.ErrTokenCreation, errors.New("hmac")), auth.CodeTokenCreation},
		{"invalid session", auth.ErrInvalidSession, auth.CodeInvalidSession},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.ErrorCode(tt.err))
		})
	}
}
