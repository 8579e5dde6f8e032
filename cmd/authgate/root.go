package main

import (
	"github.com/spf13/cobra"

	"github.com/majorproject/authgate/internal/config"
	"github.com/majorproject/authgate/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authgate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authgate",
		Short: "authgate - email/password authentication service",
		Long: `authgate signs users up and in against a PostgreSQL or MongoDB
credential store, migrates legacy plaintext passwords to bcrypt on login,
and issues HS256 session tokens as HttpOnly cookies.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCheckStoreCmd())
	cmd.AddCommand(NewImportUsersCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// loadConfig reads the configuration for cmd from --config (or the XDG
// config file when present), the environment and cmd's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		found, err := xdg.FindConfigFile()
		if err != nil {
			return nil, err //nolint:wrapcheck // coded by xdg
		}
		path = found
	}
	return config.Load(path, cmd.Flags()) //nolint:wrapcheck // coded by config
}
