// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// poolIface is the subset of pgxpool.Pool used by PostgresStore.
// pgxmock.PgxPoolIface satisfies it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on the users table.
type PostgresStore struct {
	pool poolIface
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool poolIface) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgres creates a pool for databaseURL and verifies it with a ping.
// pgxpool connects lazily, so the ping is what proves reachability.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("backend", BackendPostgres).With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").With("backend", BackendPostgres).With("operation", "ping").Wrap(err)
	}
	return NewPostgresStore(pool), nil
}

// FindUserByEmail looks up an account by normalized email.
func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, name, credential, created_at FROM users WHERE email = $1`,
		NormalizeEmail(email))

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("backend", BackendPostgres).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("backend", BackendPostgres).With("operation", "find user by email").Wrap(err)
	}
	return u, nil
}

// UpdateCredential replaces the credential column for id.
func (s *PostgresStore) UpdateCredential(ctx context.Context, id, credential string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET credential = $2 WHERE id = $1`, id, credential)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("backend", BackendPostgres).With("user_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("backend", BackendPostgres).With("user_id", id).Wrap(ErrNotFound)
	}
	return nil
}

// CreateUser inserts user. A unique violation on email maps to ErrDuplicateEmail.
func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = NormalizeEmail(user.Email)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, credential, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.Name, user.Credential, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_CREATE_FAILED").With("backend", BackendPostgres).Wrap(ErrDuplicateEmail)
		}
		return oops.Code("USER_CREATE_FAILED").With("backend", BackendPostgres).With("operation", "insert user").Wrap(err)
	}
	return nil
}

// Backend reports BackendPostgres.
func (s *PostgresStore) Backend() Backend { return BackendPostgres }

// Ping checks the pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("STORE_PING_FAILED").With("backend", BackendPostgres).Wrap(err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u          User
		credential *string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &credential, &u.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}
	if credential != nil {
		u.Credential = *credential
	}
	return &u, nil
}
