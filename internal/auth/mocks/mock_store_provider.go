// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package mocks

import (
	context "context"

	store "github.com/majorproject/authgate/internal/store"
	mock "github.com/stretchr/testify/mock"
)

// MockStoreProvider is a mock type for the StoreProvider type
type MockStoreProvider struct {
	mock.Mock
}

// Store provides a mock function with given fields: ctx
func (_m *MockStoreProvider) Store(ctx context.Context) (store.Store, error) {
	ret := _m.Called(ctx)

	var r0 store.Store
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (store.Store, error)); ok {
		return rf(ctx)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(store.Store)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockStoreProvider creates a new instance of MockStoreProvider. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockStoreProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStoreProvider {
	m := &MockStoreProvider{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
