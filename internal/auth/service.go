// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/majorproject/authgate/internal/logging"
	"github.com/majorproject/authgate/internal/store"
	"github.com/majorproject/authgate/pkg/errutil"
)

// Attempt outcomes reported to the log and to Recorder.
const (
	OutcomeSuccess            = "success"
	OutcomeMissingFields      = "missing_fields"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeUserExists         = "user_exists"
	OutcomeStoreUnavailable   = "store_unavailable"
	OutcomeTokenFailure       = "token_failure"
	OutcomeInternal           = "internal_error"
)

// Credential migration results reported to Recorder.
const (
	MigrationPersisted = "persisted"
	MigrationFailed    = "failed"
)

// StoreProvider yields the credential store, connecting on first use.
type StoreProvider interface {
	Store(ctx context.Context) (store.Store, error)
}

// Recorder receives authentication metrics.
type Recorder interface {
	RecordAttempt(operation, outcome string)
	RecordMigration(result string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAttempt(string, string) {}
func (noopRecorder) RecordMigration(string)       {}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupInput is the body of a signup request.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserView is the public projection of a user. It never carries the credential.
type UserView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Result is a successful login or signup.
type Result struct {
	User   UserView
	Token  string
	Cookie string
}

// SessionInfo describes a verified session token.
type SessionInfo struct {
	Claims
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service implements login, signup and session introspection.
type Service struct {
	stores        StoreProvider
	engine        *CredentialEngine
	tokens        *TokenIssuer
	logger        *slog.Logger
	metrics       Recorder
	secureCookies bool
	legacySignup  bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for attempt events.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithSecureCookies marks issued cookies Secure.
func WithSecureCookies(secure bool) ServiceOption {
	return func(s *Service) { s.secureCookies = secure }
}

// WithLegacyPlaintextSignup stores signup passwords verbatim; they are
// hashed on the account's first successful login. Passwords that already
// look like a hash are hashed at signup regardless.
func WithLegacyPlaintextSignup(enabled bool) ServiceOption {
	return func(s *Service) { s.legacySignup = enabled }
}

// NewService creates a Service. All three collaborators are required.
func NewService(stores StoreProvider, engine *CredentialEngine, tokens *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if stores == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("store provider is required")
	}
	if engine == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("credential engine is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("token issuer is required")
	}

	s := &Service{
		stores:  stores,
		engine:  engine,
		tokens:  tokens,
		logger:  slog.Default(),
		metrics: noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login authenticates email and password. Unknown emails and wrong
// passwords fail identically. A matching legacy credential is replaced by
// its hash before the token is issued; failure to persist the replacement
// is logged and does not fail the login.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Result, error) {
	email := store.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, s.fail(ctx, "login", in.Email, OutcomeMissingFields,
			oops.Code(CodeMissingFields).Wrap(ErrMissingFields))
	}

	st, err := s.stores.Store(ctx)
	if err != nil {
		return nil, s.fail(ctx, "login", email, OutcomeStoreUnavailable, storeUnavailable("connect", err))
	}

	user, err := st.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.engine.VerifyDummy(in.Password)
		return nil, s.fail(ctx, "login", email, OutcomeInvalidCredentials, invalidCredentials())
	}
	if err != nil {
		return nil, s.fail(ctx, "login", email, OutcomeStoreUnavailable, storeUnavailable("find user", err))
	}

	if user.Credential == "" {
		s.engine.VerifyDummy(in.Password)
		return nil, s.fail(ctx, "login", email, OutcomeInvalidCredentials, invalidCredentials())
	}

	result, err := s.engine.Verify(in.Password, user.Credential)
	if err != nil {
		return nil, s.fail(ctx, "login", email, OutcomeInternal,
			oops.Code(CodeInternal).With("operation", "verify credential").Wrap(errors.Join(ErrInternal, err)))
	}
	if !result.Valid {
		return nil, s.fail(ctx, "login", email, OutcomeInvalidCredentials, invalidCredentials())
	}

	if result.Rehashed != "" {
		s.persistMigration(ctx, st, user.ID, result.Rehashed)
	}

	res, err := s.issue(user)
	if err != nil {
		return nil, s.fail(ctx, "login", email, OutcomeTokenFailure, err)
	}
	s.succeed(ctx, "login", email)
	return res, nil
}

// Signup creates an account and signs the new user in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Result, error) {
	name := strings.TrimSpace(in.Name)
	email := store.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, s.fail(ctx, "signup", in.Email, OutcomeMissingFields,
			oops.Code(CodeMissingFields).Wrap(ErrMissingFields))
	}

	st, err := s.stores.Store(ctx)
	if err != nil {
		return nil, s.fail(ctx, "signup", email, OutcomeStoreUnavailable, storeUnavailable("connect", err))
	}

	_, err = st.FindUserByEmail(ctx, email)
	if err == nil {
		return nil, s.fail(ctx, "signup", email, OutcomeUserExists, userExists())
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, s.fail(ctx, "signup", email, OutcomeStoreUnavailable, storeUnavailable("find user", err))
	}

	// A verbatim password with the hash prefix could never verify.
	credential := in.Password
	if !s.legacySignup || IsHashed(in.Password) {
		credential, err = s.engine.Hash(in.Password)
		if err != nil {
			return nil, s.fail(ctx, "signup", email, OutcomeInternal,
				oops.Code(CodeInternal).With("operation", "hash password").Wrap(errors.Join(ErrInternal, err)))
		}
	}

	user := &store.User{Name: name, Email: email, Credential: credential}
	if err := st.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, s.fail(ctx, "signup", email, OutcomeUserExists, userExists())
		}
		return nil, s.fail(ctx, "signup", email, OutcomeStoreUnavailable, storeUnavailable("create user", err))
	}

	res, err := s.issue(user)
	if err != nil {
		return nil, s.fail(ctx, "signup", email, OutcomeTokenFailure, err)
	}
	s.succeed(ctx, "signup", email)
	return res, nil
}

// Session verifies a session token.
func (s *Service) Session(_ context.Context, token string) (*SessionInfo, error) {
	claims, expiresAt, ok := s.tokens.VerifyWithExpiry(token)
	if !ok {
		return nil, oops.Code(CodeInvalidSession).Wrap(ErrInvalidSession)
	}
	return &SessionInfo{Claims: *claims, ExpiresAt: expiresAt}, nil
}

func (s *Service) issue(user *store.User) (*Result, error) {
	token, err := s.tokens.Issue(Claims{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, err
	}
	return &Result{
		User:   UserView{ID: user.ID, Name: user.Name, Email: user.Email},
		Token:  token,
		Cookie: PackageCookie(token, s.tokens.TTL(), s.secureCookies),
	}, nil
}

func (s *Service) persistMigration(ctx context.Context, st store.Store, userID, hash string) {
	if err := st.UpdateCredential(ctx, userID, hash); err != nil {
		s.metrics.RecordMigration(MigrationFailed)
		errutil.LogErrorContext(ctx, s.logger, "credential migration failed", err)
		return
	}
	s.metrics.RecordMigration(MigrationPersisted)
	s.logger.InfoContext(ctx, "legacy credential migrated", "user_id", userID)
}

func (s *Service) succeed(ctx context.Context, operation, email string) {
	s.metrics.RecordAttempt(operation, OutcomeSuccess)
	s.logger.InfoContext(ctx, "auth attempt",
		"operation", operation,
		"email_prefix", logging.EmailPrefix(email),
		"outcome", OutcomeSuccess,
	)
}

func (s *Service) fail(ctx context.Context, operation, email, outcome string, err error) error {
	s.metrics.RecordAttempt(operation, outcome)
	attrs := []any{
		"operation", operation,
		"email_prefix", logging.EmailPrefix(email),
		"outcome", outcome,
	}
	switch outcome {
	case OutcomeStoreUnavailable, OutcomeTokenFailure, OutcomeInternal:
		s.logger.ErrorContext(ctx, "auth attempt", append(attrs, "error", err)...)
	default:
		s.logger.InfoContext(ctx, "auth attempt", attrs...)
	}
	return err
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}

func userExists() error {
	return oops.Code(CodeUserExists).Wrap(ErrUserExists)
}

func storeUnavailable(operation string, err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return oops.Code(CodeStoreUnavailable).With("operation", operation).Wrap(err)
	}
	return oops.Code(CodeStoreUnavailable).With("operation", operation).Wrap(errors.Join(ErrStoreUnavailable, err))
}
