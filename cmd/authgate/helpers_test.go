// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/majorproject/authgate/internal/observability"
	"github.com/majorproject/authgate/internal/store"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// isolateEnv blanks the variables config.Load reads from the environment.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"DATABASE_URL", "MONGODB_URI", "MONGODB_DB", "JWT_SECRET", "NODE_ENV"} {
		t.Setenv(name, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""
}

// useStore makes the one-shot commands use s instead of dialing.
func useStore(t *testing.T, s store.Store, dialErr error) {
	t.Helper()
	orig := StoreOpener
	StoreOpener = func(context.Context, store.ConnectorConfig, store.Dialer) (store.Store, func(), error) {
		if dialErr != nil {
			return nil, nil, dialErr
		}
		return s, func() {}, nil
	}
	t.Cleanup(func() { StoreOpener = orig })
}

// mockMigrator implements Migrator.
type mockMigrator struct {
	mu          sync.Mutex
	upCalled    bool
	downCalled  bool
	closeCalled bool
	upErr       error
	version     uint
	dirty       bool
}

func (m *mockMigrator) Up() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upCalled = true
	return m.upErr
}

func (m *mockMigrator) Down() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downCalled = true
	return nil
}

func (m *mockMigrator) Version() (uint, bool, error) { return m.version, m.dirty, nil }

func (m *mockMigrator) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalled = true
	return nil
}

// mockObservabilityServer implements ObservabilityServer.
type mockObservabilityServer struct {
	ready   observability.ReadinessChecker
	metrics *observability.Metrics
	errCh   chan error
	stopped bool
}

func newMockObservabilityServer(ready observability.ReadinessChecker) *mockObservabilityServer {
	return &mockObservabilityServer{
		ready:   ready,
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
		errCh:   make(chan error, 1),
	}
}

func (m *mockObservabilityServer) Start() (<-chan error, error) { return m.errCh, nil }

func (m *mockObservabilityServer) Stop(context.Context) error {
	m.stopped = true
	return nil
}

func (m *mockObservabilityServer) Addr() string { return "127.0.0.1:0" }

func (m *mockObservabilityServer) Metrics() *observability.Metrics { return m.metrics }
