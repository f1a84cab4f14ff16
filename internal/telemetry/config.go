package telemetry

// Config holds OpenTelemetry tracing configuration.
type Config struct {
	// Enabled indicates whether tracing is enabled
	Enabled bool

	// ServiceName is reported as service.name on every span
	ServiceName string

	// ServiceVersion is reported as service.version
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address (e.g., "localhost:4317")
	Endpoint string

	// Insecure disables TLS towards the collector
	Insecure bool

	// SampleRate is the fraction of requests traced (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns tracing disabled, pointed at a local collector.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "dirserve",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// sampleRate clamps the configured rate into [0, 1].
func (c Config) sampleRate() float64 {
	switch {
	case c.SampleRate < 0:
		return 0
	case c.SampleRate > 1:
		return 1
	default:
		return c.SampleRate
	}
}
