// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultMongoDatabase is used when the connection string names no database.
const DefaultMongoDatabase = "majorproject"

const usersCollection = "users"

// mongoUser is the document shape of the users collection. _id is an
// ObjectID for documents written by other tools and a ULID string for
// documents written here.
type mongoUser struct {
	ID        any       `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

// MongoStore implements Store on a MongoDB users collection.
type MongoStore struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewMongoStore uses the users collection of database on client.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		users:  client.Database(database).Collection(usersCollection),
	}
}

// OpenMongo connects to uri, pings the primary and ensures the unique
// email index exists. An empty database falls back to the URI path.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("backend", BackendMongo).With("operation", "connect").Wrap(err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background()) //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("STORE_CONNECT_FAILED").With("backend", BackendMongo).With("operation", "ping").Wrap(err)
	}

	if database == "" {
		database = mongoDatabase(uri)
	}
	s := NewMongoStore(client, database)
	if err := s.ensureIndexes(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// mongoDatabase extracts the database name from the URI path.
func mongoDatabase(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultMongoDatabase
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		return db
	}
	return DefaultMongoDatabase
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return oops.Code("STORE_INDEX_FAILED").With("backend", BackendMongo).With("collection", usersCollection).Wrap(err)
	}
	return nil
}

// FindUserByEmail looks up an account by normalized email.
func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var doc mongoUser
	err := s.users.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, oops.Code("USER_NOT_FOUND").With("backend", BackendMongo).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("backend", BackendMongo).With("operation", "find user by email").Wrap(err)
	}
	return &User{
		ID:         documentID(doc.ID),
		Email:      doc.Email,
		Name:       doc.Name,
		Credential: doc.Password,
		CreatedAt:  doc.CreatedAt,
	}, nil
}

// UpdateCredential sets the password field of the document with id.
func (s *MongoStore) UpdateCredential(ctx context.Context, id, credential string) error {
	res, err := s.users.UpdateOne(ctx, idFilter(id), bson.M{"$set": bson.M{"password": credential}})
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("backend", BackendMongo).With("user_id", id).Wrap(err)
	}
	if res.MatchedCount == 0 {
		return oops.Code("USER_NOT_FOUND").With("backend", BackendMongo).With("user_id", id).Wrap(ErrNotFound)
	}
	return nil
}

// CreateUser inserts user with a string _id.
func (s *MongoStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = NormalizeEmail(user.Email)

	_, err := s.users.InsertOne(ctx, mongoUser{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Password:  user.Credential,
		CreatedAt: user.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return oops.Code("USER_CREATE_FAILED").With("backend", BackendMongo).Wrap(ErrDuplicateEmail)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").With("backend", BackendMongo).With("operation", "insert user").Wrap(err)
	}
	return nil
}

// Backend reports BackendMongo.
func (s *MongoStore) Backend() Backend { return BackendMongo }

// Ping checks the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return oops.Code("STORE_PING_FAILED").With("backend", BackendMongo).Wrap(err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Disconnect(ctx) //nolint:errcheck // nothing useful to do on shutdown
}

func documentID(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// idFilter matches either representation of _id. A hex string may belong to
// an ObjectID document or to a string-keyed one.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}
