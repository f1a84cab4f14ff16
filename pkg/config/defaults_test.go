package config

import (
	"testing"
	"time"

	"github.com/marmos91/dirserve/internal/bytesize"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default output 'stderr', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected default shutdown timeout 10s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.RequestBufferSize != bytesize.KiB {
		t.Errorf("Expected default request buffer 1KiB, got %v", cfg.Server.RequestBufferSize)
	}
	// Zero is meaningful for these and left alone
	if cfg.Server.Port != 0 || cfg.Server.MaxConnections != 0 || cfg.Server.WriteTimeout != 0 {
		t.Errorf("Expected zero-valued fields to be preserved, got %+v", cfg.Server)
	}
}

func TestApplyDefaults_AccessLog(t *testing.T) {
	cfg := &Config{AccessLog: AccessLogConfig{Format: "JSON"}}
	ApplyDefaults(cfg)

	if cfg.AccessLog.Output != "stdout" {
		t.Errorf("Expected default access log output 'stdout', got %q", cfg.AccessLog.Output)
	}
	if cfg.AccessLog.Format != "json" {
		t.Errorf("Expected format normalized to 'json', got %q", cfg.AccessLog.Format)
	}
}

func TestApplyDefaults_Metrics(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 0 {
		t.Errorf("Expected metrics port to stay unset while disabled, got %d", cfg.Metrics.Port)
	}

	cfg = &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_Profiling(t *testing.T) {
	cfg := &Config{}
	cfg.Telemetry.Profiling.ProfileTypes = []string{" CPU ", "Goroutines"}
	ApplyDefaults(cfg)

	types := cfg.Telemetry.Profiling.ProfileTypes
	if len(types) != 2 || types[0] != "cpu" || types[1] != "goroutines" {
		t.Errorf("Expected normalized profile types, got %v", types)
	}
	if cfg.Telemetry.Profiling.Endpoint != "http://localhost:4040" {
		t.Errorf("Expected default profiling endpoint, got %q", cfg.Telemetry.Profiling.Endpoint)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/dirserve.log",
		},
		Server: ServerConfig{
			Port:              8080,
			RequestBufferSize: 4 * bytesize.KiB,
			ShutdownTimeout:   time.Minute,
		},
		Telemetry: TelemetryConfig{
			Endpoint: "collector:4317",
		},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json' to be preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "/var/log/dirserve.log" {
		t.Errorf("Expected output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080 to be preserved, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestBufferSize != 4*bytesize.KiB {
		t.Errorf("Expected request buffer to be preserved, got %v", cfg.Server.RequestBufferSize)
	}
	if cfg.Server.ShutdownTimeout != time.Minute {
		t.Errorf("Expected shutdown timeout 1m to be preserved, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Telemetry.Endpoint != "collector:4317" {
		t.Errorf("Expected telemetry endpoint to be preserved, got %q", cfg.Telemetry.Endpoint)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Fatalf("Default config should be valid, got: %v", err)
	}
}

func TestGetDefaultConfig_HasRequiredFields(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Expected default port %d, got %d", DefaultPort, cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("Expected default read timeout %v, got %v", DefaultReadTimeout, cfg.Server.ReadTimeout)
	}
	if cfg.Server.Root != "" {
		t.Errorf("Expected empty root (working directory), got %q", cfg.Server.Root)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Expected metrics port %d, got %d", DefaultMetricsPort, cfg.Metrics.Port)
	}
	if !cfg.Telemetry.Insecure {
		t.Error("Expected insecure telemetry transport by default")
	}
}
