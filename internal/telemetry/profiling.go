package telemetry

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// ProfilingConfig configures Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the Pyroscope server URL (e.g., "http://localhost:4040")
	Endpoint string

	// ProfileTypes lists the profiles to collect. Empty selects cpu and
	// inuse_space. Valid values: cpu, alloc_objects, alloc_space,
	// inuse_objects, inuse_space, goroutines, mutex_count, mutex_duration,
	// block_count, block_duration
	ProfileTypes []string
}

// DefaultProfileTypes is used when ProfilingConfig.ProfileTypes is empty.
var DefaultProfileTypes = []string{"cpu", "inuse_space"}

// InitProfiling starts Pyroscope when enabled and returns a function that
// stops it.
func InitProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	if !cfg.Enabled {
		return func() error { return nil }, nil
	}

	names := cfg.ProfileTypes
	if len(names) == 0 {
		names = DefaultProfileTypes
	}

	profileTypes, err := parseProfileTypes(names)
	if err != nil {
		return nil, err
	}

	for _, pt := range profileTypes {
		switch pt {
		case pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration:
			runtime.SetMutexProfileFraction(5)
		case pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration:
			runtime.SetBlockProfileRate(5)
		}
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags: map[string]string{
			"version": cfg.ServiceVersion,
		},
		ProfileTypes: profileTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}

	return profiler.Stop, nil
}

func parseProfileTypes(names []string) ([]pyroscope.ProfileType, error) {
	out := make([]pyroscope.ProfileType, 0, len(names))
	for _, name := range names {
		pt, err := parseProfileType(name)
		if err != nil {
			return nil, fmt.Errorf("invalid profile type %q: %w", name, err)
		}
		out = append(out, pt)
	}
	return out, nil
}

var profileTypesByName = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

func parseProfileType(name string) (pyroscope.ProfileType, error) {
	if pt, ok := profileTypesByName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return pt, nil
	}
	return "", fmt.Errorf("unknown profile type: %s", name)
}
