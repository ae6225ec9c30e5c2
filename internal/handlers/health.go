package handlers

import (
	"net/http"
	"runtime"
	"time"

	"render-engine/internal/startup"
)

const (
	statusHealthy = "healthy"
	statusAlive   = "alive"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	ActiveJobs int    `json:"activeJobs"`
	TotalJobs  int    `json:"totalJobs"`

	// Cache summary, omitted when the engine runs without a cache
	CacheEntries int   `json:"cacheEntries,omitempty"`
	CacheBytes   int64 `json:"cacheBytes,omitempty"`

	Memory *MemoryStatus `json:"memory,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// MemoryStatus reports heap pressure as seen by the memory monitor. Preview
// image work waits while Paused is set.
type MemoryStatus struct {
	HeapBytes  int64   `json:"heapBytes"`
	LimitBytes int64   `json:"limitBytes"`
	Usage      float64 `json:"usage"`
	Throttled  bool    `json:"throttled"`
	Paused     bool    `json:"paused"`
}

// HealthCheck returns the health status of the engine
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if h.jobs != nil {
		response.ActiveJobs = h.jobs.ActiveJobs()
		response.TotalJobs = len(h.jobs.List())
	}
	if h.cache != nil {
		usage := h.cache.Usage()
		response.CacheEntries = usage.TotalEntries
		response.CacheBytes = usage.TotalBytes
	}
	if h.monitor != nil {
		current, limit, usage := h.monitor.GetStats()
		response.Memory = &MemoryStatus{
			HeapBytes:  current,
			LimitBytes: limit,
			Usage:      usage,
			Throttled:  h.monitor.ShouldThrottle(),
			Paused:     h.monitor.IsPaused(),
		}
	}
	writeJSONStatus(w, http.StatusOK, response)
}

// LivenessCheck reports that the process is serving requests.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": statusAlive})
}
