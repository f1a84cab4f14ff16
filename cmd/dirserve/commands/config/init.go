package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dirserve/internal/cli/prompt"
	"github.com/marmos91/dirserve/pkg/config"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file",
	Long: `Create a dirserve configuration file populated with the defaults.

By default, the configuration file is created at $XDG_CONFIG_HOME/dirserve/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  dirserve config init

  # Ask for port, served directory and log level
  dirserve config init --interactive

  # Force overwrite existing config
  dirserve config init --force --config /etc/dirserve/config.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for the main settings")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.GetDefaultConfig()
	force := initForce

	if initInteractive {
		if _, err := os.Stat(configPath); err == nil && !force {
			overwrite, err := prompt.Confirm(fmt.Sprintf("%s already exists. Overwrite", configPath), false)
			if err != nil {
				return err
			}
			if !overwrite {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted, configuration unchanged.")
				return nil
			}
			force = true
		}

		if err := promptSettings(cfg); err != nil {
			if prompt.IsAborted(err) {
				return fmt.Errorf("configuration not written: %w", err)
			}
			return err
		}
	}

	if err := config.InitConfigWith(configPath, cfg, force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the configuration file to customize your setup")
	_, _ = fmt.Fprintln(out, "  2. Start the server with: dirserve start")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: dirserve start --config %s\n", configPath)
	return nil
}

func promptSettings(cfg *config.Config) error {
	port, err := prompt.InputPort("Port", cfg.Server.Port)
	if err != nil {
		return err
	}
	cfg.Server.Port = port

	root, err := prompt.InputDirectory("Directory to serve (empty = working directory)", cfg.Server.Root)
	if err != nil {
		return err
	}
	cfg.Server.Root = root

	level, err := prompt.SelectString("Log level", []string{"DEBUG", "INFO", "WARN", "ERROR"}, cfg.Logging.Level)
	if err != nil {
		return err
	}
	cfg.Logging.Level = level

	return nil
}
