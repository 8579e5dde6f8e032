// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/majorproject/authgate/internal/config"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration file JSON Schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.Schema()
			if err != nil {
				return err //nolint:wrapcheck // coded by config
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err //nolint:wrapcheck // stdout write
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Check a configuration file against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateFile(args[0]); err != nil {
				return err //nolint:wrapcheck // coded by config
			}
			cmd.Printf("%s: valid\n", args[0])
			return nil
		},
	})

	return cmd
}
