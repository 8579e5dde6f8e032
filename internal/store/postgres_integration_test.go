//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/majorproject/authgate/internal/store"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestPostgresStore_Integration(t *testing.T) {
	ctx := context.Background()
	connStr := startPostgres(t)

	migrator, err := store.NewMigrator(connStr)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	require.NoError(t, migrator.Close())

	s, err := store.OpenPostgres(ctx, connStr)
	require.NoError(t, err)
	defer s.Close()

	u := &store.User{Name: "A", Email: "A@x.com", Credential: "secret1"}
	require.NoError(t, s.CreateUser(ctx, u))

	found, err := s.FindUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
	assert.Equal(t, "secret1", found.Credential)

	require.NoError(t, s.UpdateCredential(ctx, u.ID, "$2a$10$upgraded"))
	found, err = s.FindUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$upgraded", found.Credential)

	err = s.CreateUser(ctx, &store.User{Name: "B", Email: "a@x.com", Credential: "other"})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)

	_, err = s.FindUserByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConnector_Integration_Postgres(t *testing.T) {
	connStr := startPostgres(t)

	c := store.NewConnector(store.ConnectorConfig{URL: connStr})
	defer c.Close()

	s, err := c.Store(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.BackendPostgres, s.Backend())
	assert.NoError(t, s.Ping(context.Background()))
}
