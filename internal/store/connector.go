// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
)

// DefaultConnectTimeout bounds the whole dial, retries included.
const DefaultConnectTimeout = 5 * time.Second

const connectKey = "connect"

var errUnsupportedScheme = errors.New("unsupported store url scheme")

// Dialer opens a Store for a connection string.
type Dialer func(ctx context.Context, url string) (Store, error)

// ConnectorConfig controls how the Connector resolves its store.
type ConnectorConfig struct {
	URL            string
	ConnectTimeout time.Duration

	// AllowFallback serves a seeded MemoryStore when the dial fails.
	AllowFallback bool
	SeedName      string
	SeedEmail     string
	SeedPassword  string

	// HashSeed turns SeedPassword into the stored credential. When nil the
	// seed account keeps a plaintext credential and migrates on first login.
	HashSeed func(password string) (string, error)
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithDialer replaces DialStore.
func WithDialer(d Dialer) ConnectorOption {
	return func(c *Connector) { c.dial = d }
}

// WithLogger sets the connector logger.
func WithLogger(l *slog.Logger) ConnectorOption {
	return func(c *Connector) { c.logger = l }
}

// WithResolveHook registers fn to run once a store has been resolved.
func WithResolveHook(fn func(Backend)) ConnectorOption {
	return func(c *Connector) { c.onResolve = fn }
}

// Connector lazily resolves and caches the process's Store. Concurrent
// first callers share a single dial.
type Connector struct {
	cfg       ConnectorConfig
	dial      Dialer
	logger    *slog.Logger
	onResolve func(Backend)

	group singleflight.Group

	mu    sync.RWMutex
	store Store
}

// NewConnector creates a Connector. Nothing is dialed until Store is called.
func NewConnector(cfg ConnectorConfig, opts ...ConnectorOption) *Connector {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	c := &Connector{
		cfg:    cfg,
		dial:   DialStore,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the cached store, dialing on first use. A failed dial with
// fallback disabled is not cached; the next call dials again.
func (c *Connector) Store(ctx context.Context) (Store, error) {
	if s := c.cached(); s != nil {
		return s, nil
	}

	ch := c.group.DoChan(connectKey, func() (any, error) {
		if s := c.cached(); s != nil {
			return s, nil
		}
		// The flight outlives any single caller's cancellation.
		s, err := c.resolve(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.store = s
		c.mu.Unlock()
		if c.onResolve != nil {
			c.onResolve(s.Backend())
		}
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err //nolint:wrapcheck // already coded by resolve
		}
		return res.Val.(Store), nil //nolint:forcetypeassert // flight only returns Store
	case <-ctx.Done():
		return nil, oops.Code(CodeStoreUnavailable).With("operation", "await connection").Wrap(errors.Join(ErrUnavailable, ctx.Err()))
	}
}

// Backend reports the resolved backend, or "" before resolution.
func (c *Connector) Backend() Backend {
	if s := c.cached(); s != nil {
		return s.Backend()
	}
	return ""
}

// Ready reports whether a store has been resolved.
func (c *Connector) Ready() bool {
	return c.cached() != nil
}

// Close closes the cached store, if any.
func (c *Connector) Close() {
	c.mu.Lock()
	s := c.store
	c.store = nil
	c.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

func (c *Connector) cached() Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

func (c *Connector) resolve(ctx context.Context) (Store, error) {
	s, err := c.connect(ctx)
	if err == nil {
		c.logger.Info("credential store connected", "backend", s.Backend())
		return s, nil
	}

	if !c.cfg.AllowFallback {
		return nil, oops.Code(CodeStoreUnavailable).
			With("operation", "connect").
			With("timeout", c.cfg.ConnectTimeout.String()).
			Wrap(errors.Join(ErrUnavailable, err))
	}

	c.logger.Warn("credential store unreachable, serving in-memory development store",
		"error", err,
	)
	mem, seedErr := c.fallbackStore(ctx)
	if seedErr != nil {
		return nil, oops.Code(CodeStoreUnavailable).With("operation", "seed fallback store").Wrap(errors.Join(ErrUnavailable, seedErr))
	}
	return mem, nil
}

// connect dials with exponential backoff until ConnectTimeout elapses.
func (c *Connector) connect(ctx context.Context) (Store, error) {
	if c.cfg.URL == "" {
		return nil, oops.Code("STORE_NOT_CONFIGURED").Errorf("store url is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	var (
		s       Store
		lastErr error
	)
	backoff := retry.WithCappedDuration(time.Second, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var dialErr error
		s, dialErr = c.dial(ctx, c.cfg.URL)
		if dialErr == nil {
			return nil
		}
		lastErr = dialErr
		if errors.Is(dialErr, errUnsupportedScheme) {
			return dialErr
		}
		c.logger.Debug("credential store dial failed, retrying", "error", dialErr)
		return retry.RetryableError(dialErr)
	})
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err //nolint:wrapcheck // context error before any dial
	}
	return s, nil
}

func (c *Connector) fallbackStore(ctx context.Context) (*MemoryStore, error) {
	mem := NewMemoryStore()
	if c.cfg.SeedEmail == "" || c.cfg.SeedPassword == "" {
		return mem, nil
	}

	credential := c.cfg.SeedPassword
	if c.cfg.HashSeed != nil {
		hashed, err := c.cfg.HashSeed(c.cfg.SeedPassword)
		if err != nil {
			return nil, oops.Code("SEED_HASH_FAILED").Wrap(err)
		}
		credential = hashed
	}

	name := c.cfg.SeedName
	if name == "" {
		name = "Developer"
	}
	if err := mem.CreateUser(ctx, &User{Name: name, Email: c.cfg.SeedEmail, Credential: credential}); err != nil {
		return nil, err
	}
	return mem, nil
}

// DialStore picks the backend from the URL scheme.
func DialStore(ctx context.Context, url string) (Store, error) {
	return dialStore(ctx, url, "")
}

// NewDialer returns a Dialer like DialStore that opens mongoDatabase on
// MongoDB URLs instead of the database named in the URL.
func NewDialer(mongoDatabase string) Dialer {
	return func(ctx context.Context, url string) (Store, error) {
		return dialStore(ctx, url, mongoDatabase)
	}
}

func dialStore(ctx context.Context, url, mongoDatabase string) (Store, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		s, err := OpenPostgres(ctx, url)
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		s, err := OpenMongo(ctx, url, mongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		scheme, _, _ := strings.Cut(url, "://")
		return nil, oops.Code("STORE_UNSUPPORTED_SCHEME").With("scheme", scheme).Wrap(errUnsupportedScheme)
	}
}
