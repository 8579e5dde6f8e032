// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/majorproject/authgate/internal/auth"
	"github.com/majorproject/authgate/internal/store"
)

// importRecord is one account in an import file.
type importRecord struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// importSummary counts the outcome of an import.
type importSummary struct {
	Imported int
	Skipped  int
}

type importUsersConfig struct {
	hash bool
}

// NewImportUsersCmd creates the import-users subcommand.
func NewImportUsersCmd() *cobra.Command {
	cfg := &importUsersConfig{}

	cmd := &cobra.Command{
		Use:   "import-users <file.yaml>",
		Short: "Import accounts from a YAML list",
		Long: `Import a YAML list of {name, email, password} accounts. Accounts whose
email already exists are skipped. Passwords are stored as given, and plaintext
ones are replaced by their bcrypt hash on first login, unless --hash is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportUsers(cmd, args[0], cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.hash, "hash", false, "bcrypt-hash plaintext passwords before storing")

	return cmd
}

func runImportUsers(cmd *cobra.Command, path string, opts *importUsersConfig) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	records, err := readImportFile(path)
	if err != nil {
		return err
	}

	var hash func(string) (string, error)
	if opts.hash {
		hash = auth.NewBcryptHasher(cfg.Auth.BcryptCost).Hash
	}

	s, closeStore, err := StoreOpener(cmd.Context(), store.ConnectorConfig{
		URL:            cfg.Store.URL,
		ConnectTimeout: cfg.Store.ConnectTimeout,
	}, store.NewDialer(cfg.Store.MongoDatabase))
	if err != nil {
		return err
	}
	defer closeStore()

	summary, err := importUsers(cmd.Context(), s, records, hash)
	if err != nil {
		return err
	}
	cmd.Printf("Imported %d account(s), skipped %d existing\n", summary.Imported, summary.Skipped)
	return nil
}

func readImportFile(path string) ([]importRecord, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied import path
	if err != nil {
		return nil, oops.Code("IMPORT_READ_FAILED").With("path", path).Wrap(err)
	}

	var records []importRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, oops.Code("IMPORT_PARSE_FAILED").With("path", path).Wrap(err)
	}
	for i, r := range records {
		if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Email) == "" || r.Password == "" {
			return nil, oops.Code("IMPORT_INVALID_RECORD").With("path", path).With("index", i).
				Errorf("record %d needs name, email and password", i)
		}
	}
	return records, nil
}

// importUsers creates every record whose email is not taken. Already hashed
// passwords are stored as they are.
func importUsers(ctx context.Context, s store.Store, records []importRecord, hash func(string) (string, error)) (importSummary, error) {
	var summary importSummary
	for i, r := range records {
		email := store.NormalizeEmail(r.Email)

		_, err := s.FindUserByEmail(ctx, email)
		if err == nil {
			summary.Skipped++
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return summary, oops.With("index", i).Wrap(err)
		}

		credential := r.Password
		if hash != nil && !auth.IsHashed(credential) {
			credential, err = hash(r.Password)
			if err != nil {
				return summary, oops.With("index", i).Wrap(err)
			}
		}

		err = s.CreateUser(ctx, &store.User{Name: strings.TrimSpace(r.Name), Email: email, Credential: credential})
		if errors.Is(err, store.ErrDuplicateEmail) {
			summary.Skipped++
			continue
		}
		if err != nil {
			return summary, oops.With("index", i).Wrap(err)
		}
		summary.Imported++
	}
	return summary, nil
}
