package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marmos91/dirserve/internal/bytesize"
)

const (
	// DefaultPort is the TCP port the file server listens on.
	DefaultPort = 9097

	// DefaultMetricsPort is the port for /metrics and /health.
	DefaultMetricsPort = 9090

	DefaultRequestBufferSize = bytesize.KiB
	DefaultReadTimeout       = 30 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Fields where zero is meaningful (port 0, max_connections 0, timeouts)
//     are defaulted through viper instead, see setViperDefaults
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyAccessLogDefaults(&cfg.AccessLog)
	applyMetricsDefaults(&cfg.Metrics)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	cfg.Format = strings.ToLower(cfg.Format)

	// stdout belongs to the access log
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.RequestBufferSize == 0 {
		cfg.RequestBufferSize = DefaultRequestBufferSize
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyAccessLogDefaults(cfg *AccessLogConfig) {
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	cfg.Format = strings.ToLower(cfg.Format)
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "inuse_space"}
	}
	for i, pt := range cfg.ProfileTypes {
		cfg.ProfileTypes[i] = strings.ToLower(strings.TrimSpace(pt))
	}
}

// setViperDefaults registers every key with viper. Registration is what lets
// DIRSERVE_* environment variables reach Unmarshal when no config file sets
// the key, and it also carries defaults whose zero value is meaningful.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("server.bind_address", "")
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.root", "")
	v.SetDefault("server.max_connections", 0)
	v.SetDefault("server.request_buffer_size", DefaultRequestBufferSize.String())
	v.SetDefault("server.read_timeout", DefaultReadTimeout.String())
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout.String())
	v.SetDefault("server.metrics_log_interval", "0s")

	v.SetDefault("access_log.output", "stdout")
	v.SetDefault("access_log.format", "text")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", DefaultMetricsPort)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.endpoint", "http://localhost:4040")
	v.SetDefault("telemetry.profiling.profile_types", []string{"cpu", "inuse_space"})
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:        DefaultPort,
			ReadTimeout: DefaultReadTimeout,
		},
		Metrics: MetricsConfig{
			Port: DefaultMetricsPort,
		},
		Telemetry: TelemetryConfig{
			Insecure:   true,
			SampleRate: 1.0,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
