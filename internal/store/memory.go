// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package store

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MemoryStore is an in-process Store used as the development fallback and
// in tests. Records are keyed by normalized email.
type MemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]*User
	emails  map[string]string // id -> email key
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byEmail: make(map[string]*User),
		emails:  make(map[string]string),
	}
}

// FindUserByEmail returns a copy of the matching record.
func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("backend", BackendMemory).Wrap(ErrNotFound)
	}
	found := *u
	return &found, nil
}

// UpdateCredential swaps the credential under the write lock.
func (s *MemoryStore) UpdateCredential(_ context.Context, id, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.emails[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("backend", BackendMemory).With("user_id", id).Wrap(ErrNotFound)
	}
	s.byEmail[key].Credential = credential
	return nil
}

// CreateUser stores a copy of user and writes back generated fields.
func (s *MemoryStore) CreateUser(_ context.Context, user *User) error {
	key := NormalizeEmail(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[key]; exists {
		return oops.Code("USER_CREATE_FAILED").With("backend", BackendMemory).Wrap(ErrDuplicateEmail)
	}
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = key

	stored := *user
	s.byEmail[key] = &stored
	s.emails[user.ID] = key
	return nil
}

// Backend reports BackendMemory.
func (s *MemoryStore) Backend() Backend { return BackendMemory }

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op; records live as long as the process.
func (s *MemoryStore) Close() {}

// Len returns the number of stored accounts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEmail)
}
