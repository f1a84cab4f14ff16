package config

import (
	"github.com/marmos91/dirserve/pkg/metrics"
	promMetrics "github.com/marmos91/dirserve/pkg/metrics/prometheus"
)

// MetricsResult holds what InitializeMetrics created. All fields are nil
// when metrics are disabled.
type MetricsResult struct {
	// Server exposes /metrics and /health
	Server *metrics.Server

	// ServerMetrics records connection and request activity
	ServerMetrics metrics.ServerMetrics
}

// InitializeMetrics creates the Prometheus registry, the metrics HTTP server
// and the collectors the file server records into. The server is not
// started.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{}
	}

	reg := metrics.InitRegistry()
	return &MetricsResult{
		Server:        metrics.NewServer(cfg.Metrics.Port, reg),
		ServerMetrics: promMetrics.NewServerMetrics(),
	}
}
