package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const configHeader = `# dirserve Configuration File
#
# Every key can be overridden with an environment variable, e.g.
#   DIRSERVE_SERVER_PORT=8080
#   DIRSERVE_LOGGING_LEVEL=DEBUG
#
# Durations use Go syntax ("30s", "5m"). Sizes accept "1KiB", "4KB" or bytes.
# An empty server.root serves the working directory dirserve starts in.

`

// InitConfig writes a default configuration file at the default location
// and returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file at path.
func InitConfigToPath(path string, force bool) error {
	return InitConfigWith(path, GetDefaultConfig(), force)
}

// InitConfigWith writes cfg to path with the explanatory header. cfg is
// validated first so a generated file always loads.
func InitConfigWith(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("refusing to write invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return writeConfigFile(path, append([]byte(configHeader), data...))
}
