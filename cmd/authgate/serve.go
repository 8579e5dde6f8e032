// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/majorproject/authgate/internal/auth"
	"github.com/majorproject/authgate/internal/config"
	"github.com/majorproject/authgate/internal/httpapi"
	"github.com/majorproject/authgate/internal/logging"
	"github.com/majorproject/authgate/internal/observability"
	"github.com/majorproject/authgate/internal/store"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API",
		Long: `Start the HTTP API (/api/auth/login, /api/auth/signup, /api/auth/session)
and, unless metrics-addr is empty, the metrics and health server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runServeWithDeps runs the API until a signal, a server failure or ctx
// cancellation. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.Dialer == nil {
		deps.Dialer = store.NewDialer(cfg.Store.MongoDatabase)
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(url string) (AutoMigrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err //nolint:wrapcheck // coded by store
			}
			return m, nil
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err //nolint:wrapcheck // coded by logging
	}
	logger := logging.Setup("authgate", version, cfg.Log.Format, level, deps.LogWriter)
	slog.SetDefault(logger)

	// Continue upstream W3C traces so request logs carry the caller's trace id.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("starting authgate",
		"profile", cfg.Profile,
		"http_addr", cfg.HTTP.Addr,
		"log_format", cfg.Log.Format,
	)

	if cfg.Store.AutoMigrate && store.IsMigratable(cfg.Store.URL) {
		if err := autoMigrate(deps, cfg.Store.URL); err != nil {
			if !cfg.Store.AllowFallback {
				return err
			}
			logger.Warn("auto-migration failed, continuing with fallback enabled", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		connector *store.Connector
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
			return connector != nil && connector.Ready()
		})
		metrics = obsServer.Metrics()
	}

	engine := auth.NewCredentialEngine(auth.NewBcryptHasher(cfg.Auth.BcryptCost))

	tokenOpts := []auth.TokenOption{auth.WithTokenTTL(cfg.Auth.TokenTTL)}
	if !cfg.Production() {
		tokenOpts = append(tokenOpts, auth.AllowInsecureSecret())
	}
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, tokenOpts...)
	if tokens.UsesInsecureSecret() {
		logger.Warn("auth.jwt_secret is not set, signing sessions with the development secret")
	}

	connectorOpts := []store.ConnectorOption{store.WithDialer(deps.Dialer), store.WithLogger(logger)}
	if metrics != nil {
		connectorOpts = append(connectorOpts, store.WithResolveHook(func(b store.Backend) {
			metrics.SetStoreBackend(string(b))
		}))
	}
	connector = store.NewConnector(store.ConnectorConfig{
		URL:            cfg.Store.URL,
		ConnectTimeout: cfg.Store.ConnectTimeout,
		AllowFallback:  cfg.Store.AllowFallback,
		SeedName:       cfg.Store.SeedName,
		SeedEmail:      cfg.Store.SeedEmail,
		SeedPassword:   cfg.Store.SeedPassword,
		HashSeed:       engine.Hash,
	}, connectorOpts...)
	defer connector.Close()

	serviceOpts := []auth.ServiceOption{
		auth.WithServiceLogger(logger),
		auth.WithSecureCookies(cfg.Production()),
		auth.WithLegacyPlaintextSignup(cfg.Auth.LegacyPlaintextSignup),
	}
	if metrics != nil {
		serviceOpts = append(serviceOpts, auth.WithRecorder(metrics))
	}
	svc, err := auth.NewService(connector, engine, tokens, serviceOpts...)
	if err != nil {
		return err //nolint:wrapcheck // coded by auth
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	// Resolve the store up front so readiness reflects it before the first
	// request arrives.
	go func() {
		if _, err := connector.Store(ctx); err != nil {
			logger.Warn("credential store not available yet", "error", err)
		}
	}()

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obsServer)
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	httpServer := &http.Server{
		Handler:           httpapi.NewHandler(svc, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpErrChan := make(chan error, 1)
	go func() {
		defer close(httpErrChan)
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrChan <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Printf("authgate listening on %s\n", listener.Addr())
	logger.Info("authgate ready", "http_addr", listener.Addr().String())
	if deps.Started != nil {
		deps.Started(listener.Addr().String())
	}

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-httpErrChan:
		runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

func autoMigrate(deps *ServeDeps, url string) error {
	m, err := deps.MigratorFactory(url)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := m.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	slog.Info("database migrations applied")
	return nil
}

func stopObservability(s ObservabilityServer) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
