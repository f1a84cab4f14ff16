package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/dirserve/internal/bytesize"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "info"

server:
  port: 8081
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default output 'stderr', got %q", cfg.Logging.Output)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Expected port 8081, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("Expected default shutdown_timeout %v, got %v", DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Expected default read_timeout 30s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.RequestBufferSize != bytesize.KiB {
		t.Errorf("Expected default request_buffer_size 1KiB, got %v", cfg.Server.RequestBufferSize)
	}
	if cfg.AccessLog.Output != "stdout" {
		t.Errorf("Expected default access log output 'stdout', got %q", cfg.AccessLog.Output)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config, so the
	// server runs without any setup.
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Expected default port %d, got %d", DefaultPort, cfg.Server.Port)
	}
	if cfg.Server.MaxConnections != 0 {
		t.Errorf("Expected unlimited connections by default, got %d", cfg.Server.MaxConnections)
	}
	if !cfg.Telemetry.Insecure {
		t.Error("Expected telemetry.insecure to default to true")
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Expected default sample rate 1.0, got %v", cfg.Telemetry.SampleRate)
	}
}

func TestLoad_ExplicitZeroValuesPreserved(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  port: 0
  read_timeout: 0s
telemetry:
  insecure: false
  sample_rate: 0
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 0 {
		t.Errorf("Expected explicit port 0, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 0 {
		t.Errorf("Expected read timeout disabled, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Telemetry.Insecure {
		t.Error("Expected telemetry.insecure false")
	}
	if cfg.Telemetry.SampleRate != 0 {
		t.Errorf("Expected sample rate 0, got %v", cfg.Telemetry.SampleRate)
	}
}

func TestLoad_HumanReadableValues(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  request_buffer_size: 4KiB
  read_timeout: 5s
  write_timeout: 1m
  shutdown_timeout: 2s
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.RequestBufferSize != 4*bytesize.KiB {
		t.Errorf("Expected 4KiB, got %v", cfg.Server.RequestBufferSize)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Expected 5s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != time.Minute {
		t.Errorf("Expected 1m, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Server.ShutdownTimeout != 2*time.Second {
		t.Errorf("Expected 2s, got %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  port: 70000
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "server.port") {
		t.Errorf("Expected error to name server.port, got: %v", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[server]
port = 9100
root = "`+yamlSafePath(os.TempDir())+`"
request_buffer_size = "2KiB"

[access_log]
format = "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestBufferSize != 2*bytesize.KiB {
		t.Errorf("Expected 2KiB, got %v", cfg.Server.RequestBufferSize)
	}
	if cfg.AccessLog.Format != "json" {
		t.Errorf("Expected access log format 'json', got %q", cfg.AccessLog.Format)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DIRSERVE_LOGGING_LEVEL", "ERROR")
	t.Setenv("DIRSERVE_SERVER_PORT", "8080")
	t.Setenv("DIRSERVE_SERVER_MAX_CONNECTIONS", "16")
	t.Setenv("DIRSERVE_TELEMETRY_PROFILING_PROFILE_TYPES", "cpu,goroutines")

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

server:
  port: 9097
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Environment variables override the config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080 from env var, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections != 16 {
		t.Errorf("Expected max connections 16 from env var, got %d", cfg.Server.MaxConnections)
	}
	types := cfg.Telemetry.Profiling.ProfileTypes
	if len(types) != 2 || types[0] != "cpu" || types[1] != "goroutines" {
		t.Errorf("Expected profile types [cpu goroutines], got %v", types)
	}
}

func TestLoad_EnvironmentWithoutFile(t *testing.T) {
	t.Setenv("DIRSERVE_SERVER_BIND_ADDRESS", "127.0.0.1")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.BindAddress != "127.0.0.1" {
		t.Errorf("Expected bind address from env var, got %q", cfg.Server.BindAddress)
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := MustLoad(path)
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "dirserve config init") {
		t.Errorf("Expected init hint in error, got: %v", err)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Server.Port = 9200
	cfg.Server.RequestBufferSize = 8 * bytesize.KiB
	cfg.Server.WriteTimeout = 15 * time.Second

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Server.Port != 9200 {
		t.Errorf("Expected port 9200, got %d", loaded.Server.Port)
	}
	if loaded.Server.RequestBufferSize != 8*bytesize.KiB {
		t.Errorf("Expected 8KiB, got %v", loaded.Server.RequestBufferSize)
	}
	if loaded.Server.WriteTimeout != 15*time.Second {
		t.Errorf("Expected 15s, got %v", loaded.Server.WriteTimeout)
	}
}

func TestRootDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}

	got, err := ServerConfig{}.RootDir()
	if err != nil {
		t.Fatalf("RootDir failed: %v", err)
	}
	if got != wd {
		t.Errorf("Expected working directory %q, got %q", wd, got)
	}

	got, err = ServerConfig{Root: "relative/dir"}.RootDir()
	if err != nil {
		t.Fatalf("RootDir failed: %v", err)
	}
	if got != filepath.Join(wd, "relative", "dir") {
		t.Errorf("Expected absolute path under working directory, got %q", got)
	}
}

func TestDefaultConfigExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if DefaultConfigExists() {
		t.Fatal("Expected no config in empty config home")
	}
	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if !DefaultConfigExists() {
		t.Fatal("Expected config to exist after InitConfig")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "dirserve" {
		t.Errorf("Expected directory name 'dirserve', got %q", filepath.Base(dir))
	}

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	if got := GetConfigDir(); got != filepath.Join(xdg, "dirserve") {
		t.Errorf("Expected XDG_CONFIG_HOME to be honored, got %q", got)
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	result := InitializeMetrics(GetDefaultConfig())

	if result.Server != nil {
		t.Error("Expected no metrics server when disabled")
	}
	if result.ServerMetrics != nil {
		t.Error("Expected no collectors when disabled")
	}
}
