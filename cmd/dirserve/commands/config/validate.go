package config

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dirserve/internal/cli/output"
	"github.com/marmos91/dirserve/pkg/config"
	"github.com/marmos91/dirserve/pkg/fileserver"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the dirserve configuration file.

Checks for syntax errors, invalid values and whether the served directory
is usable.

Examples:
  # Validate default config
  dirserve config validate

  # Validate specific config file
  dirserve config validate --config /etc/dirserve/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string

	rootDir, err := cfg.Server.RootDir()
	if err == nil {
		if _, rerr := fileserver.NewResolver(rootDir); rerr != nil {
			warnings = append(warnings, fmt.Sprintf("Served directory is not usable: %v", rerr))
		}
	} else {
		warnings = append(warnings, err.Error())
	}
	if cfg.Server.Root == "" {
		rootDir = "(working directory)"
	}
	if cfg.Server.ReadTimeout == 0 {
		warnings = append(warnings, "read_timeout is disabled - idle clients hold connections open")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	maxConns := "unlimited"
	if cfg.Server.MaxConnections > 0 {
		maxConns = strconv.Itoa(cfg.Server.MaxConnections)
	}

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	return output.KeyValueTable(out, [][2]string{
		{"  Listen", fmt.Sprintf("%s:%d", bindOrAll(cfg.Server.BindAddress), cfg.Server.Port)},
		{"  Root", rootDir},
		{"  Max connections", maxConns},
		{"  Access log", cfg.AccessLog.Output + " (" + cfg.AccessLog.Format + ")"},
		{"  Log level", cfg.Logging.Level},
		{"  Metrics", enabledString(cfg.Metrics.Enabled)},
		{"  Telemetry", enabledString(cfg.Telemetry.Enabled)},
	})
}

func bindOrAll(addr string) string {
	if addr == "" {
		return "0.0.0.0"
	}
	return addr
}

func enabledString(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
