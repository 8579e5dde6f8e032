// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"context"
	"io"

	"github.com/majorproject/authgate/internal/observability"
	"github.com/majorproject/authgate/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// Dialer opens the credential store.
	// Default: store.NewDialer(cfg.Store.MongoDatabase)
	Dialer store.Dialer

	// MigratorFactory creates a migrator for a PostgreSQL URL.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (AutoMigrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// LogWriter receives process logs.
	// Default: os.Stderr
	LogWriter io.Writer

	// Started is called with the bound API address once serving.
	Started func(addr string)
}

// AutoMigrator wraps the methods serve uses from store.Migrator.
type AutoMigrator interface {
	Up() error
	Close() error
}

// Migrator wraps the methods the migrate command uses from store.Migrator.
type Migrator interface {
	AutoMigrator
	Down() error
	Version() (version uint, dirty bool, err error)
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// StoreOpener opens a store for the one-shot commands.
// Tests replace it.
var StoreOpener = func(ctx context.Context, cfg store.ConnectorConfig, dialer store.Dialer) (store.Store, func(), error) {
	c := store.NewConnector(cfg, store.WithDialer(dialer))
	s, err := c.Store(ctx)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // coded by connector
	}
	return s, c.Close, nil
}

// MigratorOpener creates the migrator for the migrate command.
// Tests replace it.
var MigratorOpener = func(url string) (Migrator, error) {
	m, err := store.NewMigrator(url)
	if err != nil {
		return nil, err //nolint:wrapcheck // coded by store
	}
	return m, nil
}
