// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorproject/authgate/internal/config"
	"github.com/majorproject/authgate/internal/observability"
	"github.com/majorproject/authgate/internal/store"
	"github.com/majorproject/authgate/pkg/errutil"
)

func serveConfig() *config.Config {
	return &config.Config{
		Profile: config.ProfileDevelopment,
		HTTP:    config.HTTPConfig{Addr: "127.0.0.1:0"},
		Metrics: config.MetricsConfig{Addr: "127.0.0.1:0"},
		Log:     config.LogConfig{Format: "json", Level: "info"},
		Store: config.StoreConfig{
			URL:            "postgres://authgate@db/authgate",
			ConnectTimeout: time.Second,
			AutoMigrate:    true,
		},
		Auth: config.AuthConfig{TokenTTL: time.Hour, BcryptCost: 4},
	}
}

type serveHarness struct {
	deps     *ServeDeps
	migrator *mockMigrator
	obs      *mockObservabilityServer
	mem      *store.MemoryStore
	logs     *bytes.Buffer
	addrCh   chan string
}

func newServeHarness() *serveHarness {
	h := &serveHarness{
		migrator: &mockMigrator{},
		mem:      store.NewMemoryStore(),
		logs:     &bytes.Buffer{},
		addrCh:   make(chan string, 1),
	}
	h.deps = &ServeDeps{
		Dialer: func(context.Context, string) (store.Store, error) { return h.mem, nil },
		MigratorFactory: func(string) (AutoMigrator, error) {
			return h.migrator, nil
		},
		ObservabilityServerFactory: func(_ string, ready observability.ReadinessChecker) ObservabilityServer {
			h.obs = newMockObservabilityServer(ready)
			return h.obs
		},
		LogWriter: h.logs,
		Started:   func(addr string) { h.addrCh <- addr },
	}
	return h
}

// run starts serve in the background and returns its address and a func
// that cancels it and returns its error.
func (h *serveHarness) run(t *testing.T, cfg *config.Config) (string, func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))

	done := make(chan error, 1)
	go func() { done <- runServeWithDeps(ctx, cfg, cmd, h.deps) }()

	select {
	case addr := <-h.addrCh:
		return addr, func() error {
			cancel()
			select {
			case err := <-done:
				return err
			case <-time.After(10 * time.Second):
				t.Fatal("serve did not stop")
				return nil
			}
		}
	case err := <-done:
		cancel()
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("serve did not start")
	}
	return "", nil
}

func TestServe_SignupOverHTTP(t *testing.T) {
	h := newServeHarness()
	addr, stop := h.run(t, serveConfig())

	resp, err := http.Post("http://"+addr+"/api/auth/signup", "application/json", //nolint:noctx // test
		strings.NewReader(`{"name":"A","email":"a@x.com","password":"secret1"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "token=")
	assert.NotContains(t, resp.Header.Get("Set-Cookie"), "Secure", "development cookies are not Secure")

	require.NoError(t, stop())
	assert.Equal(t, 1, h.mem.Len())
	assert.True(t, h.obs.stopped)
	assert.InDelta(t, 1, testutil.ToFloat64(h.obs.metrics.AuthAttempts.WithLabelValues("signup", "success")), 0)
	assert.Contains(t, h.logs.String(), "signing sessions with the development secret")
}

func TestServe_ReadinessFollowsStoreResolution(t *testing.T) {
	h := newServeHarness()
	addr, stop := h.run(t, serveConfig())
	defer func() { require.NoError(t, stop()) }()

	require.NotEmpty(t, addr)
	assert.Eventually(t, h.obs.ready, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(h.obs.metrics.StoreBackend.WithLabelValues("memory")) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServe_AutoMigrate(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		autoMigrate bool
		wantCalled  bool
	}{
		{"postgres with auto-migrate", "postgres://db/app", true, true},
		{"postgresql scheme", "postgresql://db/app", true, true},
		{"auto-migrate disabled", "postgres://db/app", false, false},
		{"mongodb never migrates", "mongodb://db/app", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newServeHarness()
			cfg := serveConfig()
			cfg.Store.URL = tt.url
			cfg.Store.AutoMigrate = tt.autoMigrate

			_, stop := h.run(t, cfg)
			require.NoError(t, stop())

			assert.Equal(t, tt.wantCalled, h.migrator.upCalled)
			assert.Equal(t, tt.wantCalled, h.migrator.closeCalled)
		})
	}
}

func TestServe_AutoMigrateFailureStopsStartup(t *testing.T) {
	h := newServeHarness()
	h.migrator.upErr = errors.New("relation exists")

	err := runServeWithDeps(context.Background(), serveConfig(), &cobra.Command{}, h.deps)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation exists")
	assert.True(t, h.migrator.closeCalled)
	assert.Nil(t, h.obs, "nothing starts after a failed migration")
}

func TestServe_AutoMigrateFailureToleratedWithFallback(t *testing.T) {
	h := newServeHarness()
	h.migrator.upErr = errors.New("connection refused")
	cfg := serveConfig()
	cfg.Store.AllowFallback = true

	_, stop := h.run(t, cfg)
	require.NoError(t, stop())
	assert.Contains(t, h.logs.String(), "auto-migration failed")
}

func TestServe_InvalidConfig(t *testing.T) {
	cfg := serveConfig()
	cfg.Profile = config.ProfileProduction

	err := runServeWithDeps(context.Background(), cfg, &cobra.Command{}, newServeHarness().deps)

	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	errutil.AssertErrorContext(t, err, "field", "auth.jwt_secret")
}

func TestServe_ProductionIssuesSecureCookies(t *testing.T) {
	h := newServeHarness()
	cfg := serveConfig()
	cfg.Profile = config.ProfileProduction
	cfg.Auth.JWTSecret = "prod-secret"
	addr, stop := h.run(t, cfg)

	resp, err := http.Post("http://"+addr+"/api/auth/signup", "application/json", //nolint:noctx // test
		strings.NewReader(`{"name":"A","email":"a@x.com","password":"secret1"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.NoError(t, stop())

	assert.Contains(t, resp.Header.Get("Set-Cookie"), "; Secure")
	assert.NotContains(t, h.logs.String(), "development secret")
}

func TestServe_MetricsDisabled(t *testing.T) {
	h := newServeHarness()
	cfg := serveConfig()
	cfg.Metrics.Addr = ""

	_, stop := h.run(t, cfg)
	require.NoError(t, stop())
	assert.Nil(t, h.obs)
}

func TestServe_ObservabilityErrorTriggersShutdown(t *testing.T) {
	h := newServeHarness()
	ctx := context.Background()
	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))

	done := make(chan error, 1)
	go func() { done <- runServeWithDeps(ctx, serveConfig(), cmd, h.deps) }()
	<-h.addrCh

	h.obs.errCh <- errors.New("listener died")

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not shut down after observability failure")
	}
}

func TestMonitorServerErrors_ClosedChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error)
	close(errCh)

	monitorServerErrors(ctx, cancel, errCh, "test")
	assert.NoError(t, ctx.Err(), "a graceful close does not cancel")
}
