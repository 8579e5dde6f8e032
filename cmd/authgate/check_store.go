// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"context"
	"net/url"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/majorproject/authgate/internal/store"
)

// NewCheckStoreCmd creates the check-store subcommand.
func NewCheckStoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-store",
		Short: "Verify the credential store is reachable",
		Long: `Connect to the configured store without the in-memory fallback, ping it
and report the backend. Exits non-zero when the store is unreachable.`,
		RunE: runCheckStore,
	}
}

func runCheckStore(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store.URL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "store.url").Errorf("store.url is required")
	}

	cmd.Printf("Attempting to connect to: %s\n", redactedHost(cfg.Store.URL))

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Store.ConnectTimeout+time.Second)
	defer cancel()

	s, closeStore, err := StoreOpener(ctx, store.ConnectorConfig{
		URL:            cfg.Store.URL,
		ConnectTimeout: cfg.Store.ConnectTimeout,
	}, store.NewDialer(cfg.Store.MongoDatabase))
	if err != nil {
		cmd.PrintErrf("CONNECTION ERROR: %v\n", err)
		return err
	}
	defer closeStore()

	if err := s.Ping(ctx); err != nil {
		cmd.PrintErrf("PING ERROR: %v\n", err)
		return err //nolint:wrapcheck // coded by store
	}

	cmd.Printf("Connected OK (backend: %s)\n", s.Backend())
	return nil
}

// redactedHost returns the host part of a connection string, never its
// credentials.
func redactedHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "n/a"
	}
	return u.Host
}
