package handlers

import (
	"net/http"

	"render-engine/internal/cache"
	"render-engine/internal/gpu"
)

// CacheResponse reports cache usage and hit ratios per namespace.
type CacheResponse struct {
	Usage cache.Usage                              `json:"usage"`
	Stats map[cache.Namespace]cache.NamespaceStats `json:"stats"`
}

// GetGPU returns detected hardware encoders. Detection runs on the first
// call and is cached.
func (h *Handlers) GetGPU(w http.ResponseWriter, r *http.Request) {
	if h.gpu == nil {
		writeJSONStatus(w, http.StatusOK, gpu.Capabilities{Error: "hardware detection not configured"})
		return
	}
	writeJSONStatus(w, http.StatusOK, h.gpu.GetCapabilities(r.Context()))
}

// RefreshGPU discards cached capabilities and detects again.
func (h *Handlers) RefreshGPU(w http.ResponseWriter, r *http.Request) {
	if h.gpu == nil {
		writeJSONError(w, "hardware detection not configured", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, http.StatusOK, h.gpu.Refresh(r.Context()))
}

// GetCache returns cache usage and statistics.
func (h *Handlers) GetCache(w http.ResponseWriter, _ *http.Request) {
	if h.cache == nil {
		writeJSONError(w, "cache disabled", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, http.StatusOK, CacheResponse{Usage: h.cache.Usage(), Stats: h.cache.Stats()})
}

// ClearCache drops every cached entry, deleting rendered segment files.
func (h *Handlers) ClearCache(w http.ResponseWriter, _ *http.Request) {
	if h.cache == nil {
		writeJSONError(w, "cache disabled", http.StatusNotFound)
		return
	}
	h.cache.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}
