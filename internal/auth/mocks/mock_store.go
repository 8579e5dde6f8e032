// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package mocks

import (
	context "context"

	store "github.com/majorproject/authgate/internal/store"
	mock "github.com/stretchr/testify/mock"
)

// MockStore is a mock type for the Store type
type MockStore struct {
	mock.Mock
}

// Backend provides a mock function with no fields
func (_m *MockStore) Backend() store.Backend {
	ret := _m.Called()

	var r0 store.Backend
	if rf, ok := ret.Get(0).(func() store.Backend); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(store.Backend)
	}

	return r0
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() {
	_m.Called()
}

// CreateUser provides a mock function with given fields: ctx, user
func (_m *MockStore) CreateUser(ctx context.Context, user *store.User) error {
	ret := _m.Called(ctx, user)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *store.User) error); ok {
		r0 = rf(ctx, user)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// FindUserByEmail provides a mock function with given fields: ctx, email
func (_m *MockStore) FindUserByEmail(ctx context.Context, email string) (*store.User, error) {
	ret := _m.Called(ctx, email)

	var r0 *store.User
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*store.User, error)); ok {
		return rf(ctx, email)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*store.User)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Ping provides a mock function with given fields: ctx
func (_m *MockStore) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

// UpdateCredential provides a mock function with given fields: ctx, id, credential
func (_m *MockStore) UpdateCredential(ctx context.Context, id string, credential string) error {
	ret := _m.Called(ctx, id, credential)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) error); ok {
		r0 = rf(ctx, id, credential)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockStore creates a new instance of MockStore. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
