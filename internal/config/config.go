// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package config loads authgate settings from defaults, an optional YAML
// file, the environment and command-line flags, in increasing precedence.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/majorproject/authgate/internal/logging"
)

// Profiles.
const (
	ProfileDevelopment = "development"
	ProfileProduction  = "production"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: AUTHGATE_STORE__CONNECT_TIMEOUT sets store.connect_timeout.
const EnvPrefix = "AUTHGATE_"

// Config is the complete authgate configuration.
type Config struct {
	Profile string        `koanf:"profile" jsonschema:"enum=development,enum=production"`
	HTTP    HTTPConfig    `koanf:"http"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Store   StoreConfig   `koanf:"store"`
	Auth    AuthConfig    `koanf:"auth"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" jsonschema:"minLength=1"`
}

// MetricsConfig configures the metrics and health listener. An empty
// address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StoreConfig configures the credential store connector.
type StoreConfig struct {
	URL            string        `koanf:"url" jsonschema:"description=Connection string with a postgres or mongodb scheme"`
	MongoDatabase  string        `koanf:"mongo_database" jsonschema:"description=Overrides the database named in a MongoDB URL"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
	AllowFallback  bool          `koanf:"allow_fallback" jsonschema:"description=Serve an in-memory store when the database is unreachable. Development only."`
	SeedName       string        `koanf:"seed_name"`
	SeedEmail      string        `koanf:"seed_email"`
	SeedPassword   string        `koanf:"seed_password"`
}

// AuthConfig configures credentials and session tokens.
type AuthConfig struct {
	JWTSecret             string        `koanf:"jwt_secret"`
	TokenTTL              time.Duration `koanf:"token_ttl"`
	BcryptCost            int           `koanf:"bcrypt_cost" jsonschema:"minimum=4,maximum=31"`
	LegacyPlaintextSignup bool          `koanf:"legacy_plaintext_signup"`
}

func defaults() map[string]any {
	return map[string]any{
		"profile":                      ProfileDevelopment,
		"http.addr":                    ":8080",
		"metrics.addr":                 "127.0.0.1:9100",
		"log.format":                   "json",
		"log.level":                    "info",
		"store.connect_timeout":        "5s",
		"store.auto_migrate":           true,
		"store.allow_fallback":         false,
		"store.seed_name":              "Developer",
		"auth.token_ttl":               "168h",
		"auth.bcrypt_cost":             bcrypt.DefaultCost,
		"auth.legacy_plaintext_signup": false,
	}
}

// legacyEnv maps the variable names older deployments set.
var legacyEnv = map[string]string{
	"DATABASE_URL": "store.url",
	"MONGODB_DB":   "store.mongo_database",
	"JWT_SECRET":   "auth.jwt_secret",
}

// mongoURIEnv is loaded after legacyEnv so it wins over DATABASE_URL.
const mongoURIEnv = "MONGODB_URI"

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"profile":        "profile",
	"http-addr":      "http.addr",
	"metrics-addr":   "metrics.addr",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"store-url":      "store.url",
	"allow-fallback": "store.allow_fallback",
	"auto-migrate":   "store.auto_migrate",
}

// BindFlags registers the overridable settings on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("profile", ProfileDevelopment, "deployment profile (development or production)")
	fs.String("http-addr", ":8080", "API listen address")
	fs.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", "json", "log format (json or text)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("store-url", "", "credential store connection string")
	fs.Bool("allow-fallback", false, "serve an in-memory store when the database is unreachable")
	fs.Bool("auto-migrate", true, "apply PostgreSQL migrations on startup")
}

// Load builds the configuration. path may be empty; flags may be nil.
// Flags only override when set explicitly.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := ValidateFile(path); err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", legacyEnvKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "legacy env").Wrap(err)
	}
	if err := k.Load(env.ProviderWithValue(mongoURIEnv, ".", mongoURIKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "legacy env").Wrap(err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// legacyEnvKey keeps only the legacy names. NODE_ENV selects the production
// profile and is otherwise ignored.
func legacyEnvKey(key, value string) (string, any) {
	if key == "NODE_ENV" {
		if value == ProfileProduction {
			return "profile", value
		}
		return "", nil
	}
	if mapped, ok := legacyEnv[key]; ok && value != "" {
		return mapped, value
	}
	return "", nil
}

func mongoURIKey(key, value string) (string, any) {
	if key != mongoURIEnv || value == "" {
		return "", nil
	}
	return "store.url", value
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Profile {
	case ProfileDevelopment, ProfileProduction:
	default:
		return invalid("profile", "must be %q or %q, got %q", ProfileDevelopment, ProfileProduction, c.Profile)
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "unknown level %q", c.Log.Level)
	}
	if c.Store.ConnectTimeout <= 0 {
		return invalid("store.connect_timeout", "must be positive")
	}
	if c.Store.URL == "" && !c.Store.AllowFallback {
		return invalid("store.url", "is required unless store.allow_fallback is set")
	}
	if c.Auth.TokenTTL <= 0 {
		return invalid("auth.token_ttl", "must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return invalid("auth.bcrypt_cost", "must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.Production() {
		if c.Auth.JWTSecret == "" {
			return invalid("auth.jwt_secret", "is required in production")
		}
		if c.Store.AllowFallback {
			return invalid("store.allow_fallback", "must be false in production")
		}
	}
	return nil
}

// Production reports whether the production profile is active.
func (c *Config) Production() bool {
	return c.Profile == ProfileProduction
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf(field+" "+format, args...)
}
