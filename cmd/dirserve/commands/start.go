package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/marmos91/dirserve/internal/logger"
	"github.com/marmos91/dirserve/internal/telemetry"
	"github.com/marmos91/dirserve/pkg/accesslog"
	"github.com/marmos91/dirserve/pkg/config"
	"github.com/marmos91/dirserve/pkg/fileserver"
	"github.com/marmos91/dirserve/pkg/metrics"
	"github.com/marmos91/dirserve/pkg/server"
)

var (
	startPort           int
	startBind           string
	startRoot           string
	startMaxConnections int
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the file server",
	Long: `Start the dirserve file server in the foreground.

The served directory defaults to the current working directory. Settings come
from the config file, DIRSERVE_* environment variables and the flags below,
with flags taking precedence.

Examples:
  # Serve the current directory on the default port (9097)
  dirserve start

  # Serve /srv/files on port 8080, loopback only
  dirserve start -p 8080 --bind 127.0.0.1 --root /srv/files

  # Start with a custom config file
  dirserve start --config /etc/dirserve/config.yaml`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().IntVarP(&startPort, "port", "p", config.DefaultPort, "TCP port to listen on")
	startCmd.Flags().StringVar(&startBind, "bind", "", "Address to bind (default: all interfaces)")
	startCmd.Flags().StringVar(&startRoot, "root", "", "Directory to serve (default: working directory)")
	startCmd.Flags().IntVar(&startMaxConnections, "max-connections", 0, "Maximum concurrent connections (0 = unlimited)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := applyStartFlags(cmd, cfg); err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "dirserve",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "dirserve",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if cfg.Telemetry.Profiling.Enabled {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	rootDir, err := cfg.Server.RootDir()
	if err != nil {
		return err
	}
	resolver, err := fileserver.NewResolver(rootDir)
	if err != nil {
		return fmt.Errorf("invalid root directory: %w", err)
	}
	logger.Info("Serving directory", "root", resolver.Root())

	accessFormat, err := accesslog.ParseFormat(cfg.AccessLog.Format)
	if err != nil {
		return err
	}
	accessLog, err := accesslog.Open(cfg.AccessLog.Output, accessFormat)
	if err != nil {
		return fmt.Errorf("failed to open access log: %w", err)
	}
	defer func() { _ = accessLog.Close() }()

	// Initialize metrics (if enabled)
	var (
		requestMetrics    metrics.RequestMetrics
		connectionMetrics metrics.ConnectionMetrics
	)
	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		requestMetrics = metricsResult.ServerMetrics
		connectionMetrics = metricsResult.ServerMetrics
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error", logger.Err(err))
			}
		}()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	handler := fileserver.NewHandler(resolver, accessLog, requestMetrics, fileserver.Config{
		RequestBufferSize: cfg.Server.RequestBufferSize.Int(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	})

	srv := server.New(server.Config{
		BindAddress:        cfg.Server.BindAddress,
		Port:               cfg.Server.Port,
		MaxConnections:     cfg.Server.MaxConnections,
		ShutdownTimeout:    cfg.Server.ShutdownTimeout,
		MetricsLogInterval: cfg.Server.MetricsLogInterval,
	}, handler, connectionMetrics)

	// Hot-reload the log level when the config file changes
	if path := watchedConfigPath(GetConfigFile()); path != "" {
		if err := config.Watch(ctx, path, func(newCfg *config.Config) {
			logger.SetLevel(newCfg.Logging.Level)
			logger.Info("Log level updated", "level", newCfg.Logging.Level)
		}); err != nil {
			logger.Warn("Config hot reload disabled", logger.Err(err))
		}
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	// Addr returns "" if the listener could not be created
	if srv.Addr() == "" {
		return <-serverDone
	}
	printBanner(cmd, srv.Port())

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error", logger.Err(err))
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// applyStartFlags copies explicitly set flags over the loaded config and
// revalidates the result.
func applyStartFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = startPort
	}
	if flags.Changed("bind") {
		cfg.Server.BindAddress = startBind
	}
	if flags.Changed("root") {
		cfg.Server.Root = startRoot
	}
	if flags.Changed("max-connections") {
		cfg.Server.MaxConnections = startMaxConnections
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func printBanner(cmd *cobra.Command, port int) {
	out := cmd.OutOrStdout()
	highlight := color.New(color.FgGreen, color.Bold).SprintFunc()
	_, _ = fmt.Fprintf(out, "%s Server started on port %d\n", highlight("[*]"), port)
	_, _ = fmt.Fprintf(out, "%s Access via: http://localhost:%d/\n", highlight("[*]"), port)
}
