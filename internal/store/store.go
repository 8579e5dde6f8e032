// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package store provides the credential store implementations and the
// connector that resolves which one the process uses.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Backend identifies which implementation is serving credential lookups.
type Backend string

// Known backends.
const (
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
	BackendMemory   Backend = "memory"
)

// CodeStoreUnavailable is the oops code carried by connection failures.
const CodeStoreUnavailable = "STORE_UNAVAILABLE"

// Sentinel errors returned (wrapped) by every Store implementation.
var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrUnavailable    = errors.New("credential store unavailable")
)

// User is a persisted account. Credential is either a bcrypt hash or a
// legacy plaintext password and must never leave the service.
type User struct {
	ID         string
	Email      string
	Name       string
	Credential string
	CreatedAt  time.Time
}

// Store is the persistence contract shared by all backends.
type Store interface {
	// FindUserByEmail returns ErrNotFound when no account has the email.
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	// UpdateCredential replaces the stored credential of one account.
	UpdateCredential(ctx context.Context, id, credential string) error

	// CreateUser inserts a new account, assigning ID and CreatedAt when unset.
	// Returns ErrDuplicateEmail if the email is taken.
	CreateUser(ctx context.Context, user *User) error

	Backend() Backend
	Ping(ctx context.Context) error
	Close()
}

// NormalizeEmail returns the lookup key for an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
