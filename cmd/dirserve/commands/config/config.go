// Package config implements configuration management subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage dirserve configuration files.

dirserve runs without a configuration file; every setting has a default and
can be overridden with DIRSERVE_* environment variables.

Subcommands:
  init      Create a configuration file
  show      Display the effective configuration
  validate  Validate a configuration file
  schema    Generate JSON schema for IDE/validation`,
}

func init() {
	Cmd.AddCommand(initCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(schemaCmd)
}
