package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	MQTT          BackendMetrics  `json:"mqtt"`
	InfluxDB      BackendMetrics  `json:"influxdb"`
	Accounts      AccountMetrics  `json:"accounts"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// BackendMetrics reports an optional backend. Enabled is false when the
// service runs without it.
type BackendMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// AccountMetrics contains account store statistics.
type AccountMetrics struct {
	Total int `json:"total"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns system metrics. Admin only.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = BackendMetrics{Enabled: true, Connected: s.mqtt.IsConnected()}
	}
	if s.telemetry != nil {
		metrics.InfluxDB = BackendMetrics{Enabled: true, Connected: s.telemetry.IsConnected()}
	}

	total, err := s.users.Count(r.Context())
	if err != nil {
		s.logger.Error("count accounts failed", "error", err)
		writeInternalError(w, "failed to collect metrics")
		return
	}
	metrics.Accounts.Total = total

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
