package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dirserve/internal/cli/output"
	"github.com/marmos91/dirserve/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration dirserve would run with: the config file (if
any) merged with DIRSERVE_* environment variables and defaults.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show effective config as YAML
  dirserve config show

  # Show as JSON
  dirserve config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}
