package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"vegcli/internal/config"
	"vegcli/internal/files"
	"vegcli/internal/operations"
	ws "vegcli/internal/websocket"
)

// HealthService answers the liveness, readiness and version endpoints.
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	paths     *config.Paths
	discovery *files.Discovery
	manager   *operations.Manager
	hub       *ws.Hub
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the health endpoint response.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth is the readiness state of one subsystem.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats summarizes the running process and its data footprint.
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	InputFiles       int     `json:"input_files"`
	InputSizeBytes   int64   `json:"input_size_bytes"`
	ResultFiles      int     `json:"result_files"`
	ResultSizeBytes  int64   `json:"result_size_bytes"`
	HasResults       bool    `json:"has_results"`
	WebSocketClients int     `json:"websocket_clients"`
	ActiveOperations int     `json:"active_operations"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

// NewHealthService creates a health service with the injected
// dependencies.
func NewHealthService(version string, paths *config.Paths, manager *operations.Manager, hub *ws.Hub, logger *slog.Logger) *HealthService {
	return NewHealthServiceWithBuildInfo(version, "", "", paths, manager, hub, logger)
}

// NewHealthServiceWithBuildInfo creates a health service carrying linker
// build metadata.
func NewHealthServiceWithBuildInfo(version, buildTime, buildID string, paths *config.Paths, manager *operations.Manager, hub *ws.Hub, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime),
		slog.String("build_id", buildID))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		buildID:   buildID,
		paths:     paths,
		discovery: files.NewDiscovery(paths),
		manager:   manager,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns the overall health status.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.Debug("health check",
		slog.String("version", hs.version),
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports whether every subsystem can serve requests.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["operations"] = hs.checkOperationsHealth()
	status.Services["data"] = hs.checkDataHealth()
	status.Services["output"] = hs.checkOutputHealth()

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// LivenessCheck reports that the process is alive.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version and build information.
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}

	return result
}

// SystemStats returns process and data-footprint statistics.
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	inputFiles, inputSize := dirFootprint(hs.paths.DataDir)
	resultFiles, resultSize := dirFootprint(hs.paths.OutputDir)

	return SystemStats{
		UptimeSeconds:    time.Since(hs.startTime).Seconds(),
		InputFiles:       inputFiles,
		InputSizeBytes:   inputSize,
		ResultFiles:      resultFiles,
		ResultSizeBytes:  resultSize,
		HasResults:       hs.discovery.HasCoreResults(),
		WebSocketClients: hs.hub.ClientCount(),
		ActiveOperations: len(hs.manager.ListOperations()),
		GoVersion:        runtime.Version(),
		OS:               runtime.GOOS,
		Arch:             runtime.GOARCH,
	}, nil
}

// GetDetailedHealth bundles every health view into one response.
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	stats, _ := hs.SystemStats(ctx)

	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     stats,
	}
}

// dirFootprint counts the regular files under dir and sums their sizes.
func dirFootprint(dir string) (int, int64) {
	var count int
	var size int64

	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			count++
			size += info.Size()
		}
		return nil
	})

	return count, size
}

// checkWebSocketHealth reports the hub state.
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "websocket hub not initialized",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkOperationsHealth reports whether the run manager can accept runs.
func (hs *HealthService) checkOperationsHealth() ServiceHealth {
	if hs.manager == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "run manager not initialized",
		}
	}
	if hs.manager.GetRegistry().Count() == 0 {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "no pipeline steps registered",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d pipeline steps registered", hs.manager.GetRegistry().Count()),
	}
}

// checkDataHealth verifies the data directory exists and is writable.
func (hs *HealthService) checkDataHealth() ServiceHealth {
	if _, err := os.Stat(hs.paths.DataDir); os.IsNotExist(err) {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("data directory not found: %s", hs.paths.DataDir),
		}
	}

	probe, err := os.CreateTemp(hs.paths.DataDir, ".probe-*")
	if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("data directory not writable: %v", err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	return ServiceHealth{
		Status:  "ready",
		Message: "data directory accessible",
	}
}

// checkOutputHealth verifies the output directory exists and is writable.
func (hs *HealthService) checkOutputHealth() ServiceHealth {
	if err := os.MkdirAll(hs.paths.OutputDir, 0o755); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("cannot create output directory: %v", err),
		}
	}

	probe, err := os.CreateTemp(hs.paths.OutputDir, ".probe-*")
	if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("output directory not writable: %v", err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	return ServiceHealth{
		Status:  "ready",
		Message: "output directory accessible",
	}
}
