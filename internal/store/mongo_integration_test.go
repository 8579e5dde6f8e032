//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/majorproject/authgate/internal/store"
)

func TestMongoStore_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	s, err := store.OpenMongo(ctx, uri, "")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, store.BackendMongo, s.Backend())

	t.Run("string ids round trip", func(t *testing.T) {
		u := &store.User{Name: "A", Email: "a@x.com", Credential: "secret1"}
		require.NoError(t, s.CreateUser(ctx, u))

		found, err := s.FindUserByEmail(ctx, "A@X.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, found.ID)
		assert.Equal(t, "secret1", found.Credential)

		require.NoError(t, s.UpdateCredential(ctx, u.ID, "$2a$10$upgraded"))
		found, err = s.FindUserByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "$2a$10$upgraded", found.Credential)

		err = s.CreateUser(ctx, &store.User{Name: "B", Email: "a@x.com", Credential: "x"})
		assert.ErrorIs(t, err, store.ErrDuplicateEmail)
	})

	t.Run("documents with object ids", func(t *testing.T) {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		require.NoError(t, err)
		defer func() { _ = client.Disconnect(ctx) }()

		oid := primitive.NewObjectID()
		_, err = client.Database(store.DefaultMongoDatabase).Collection("users").InsertOne(ctx, bson.M{
			"_id":       oid,
			"name":      "Legacy",
			"email":     "legacy@x.com",
			"password":  "plain",
			"createdAt": time.Now().UTC(),
		})
		require.NoError(t, err)

		found, err := s.FindUserByEmail(ctx, "legacy@x.com")
		require.NoError(t, err)
		assert.Equal(t, oid.Hex(), found.ID)

		require.NoError(t, s.UpdateCredential(ctx, found.ID, "$2a$10$hashed"))
		found, err = s.FindUserByEmail(ctx, "legacy@x.com")
		require.NoError(t, err)
		assert.Equal(t, "$2a$10$hashed", found.Credential)
	})

	_, err = s.FindUserByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
