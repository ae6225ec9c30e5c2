package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Pipeline outcomes and default stages ---
	for _, status := range []string{"completed", "failed", "cancelled"} {
		PipelineJobsTotal.WithLabelValues(status)
	}
	for _, stage := range []string{"validation", "preprocessing", "composition", "encoding", "finalization"} {
		PipelineStageDuration.WithLabelValues(stage)
		PipelineStageOverruns.WithLabelValues(stage)
	}

	// --- FFmpeg invocation kinds ---
	for _, kind := range []string{"render", "segment", "prerender", "preview", "waveform", "transcode", "metadata", "benchmark", "probe"} {
		FFmpegRunsTotal.WithLabelValues(kind, "success")
		FFmpegRunsTotal.WithLabelValues(kind, "error")
		FFmpegRunDuration.WithLabelValues(kind)
	}

	// --- Cache namespaces ---
	for _, ns := range []string{"metadata", "previews", "segments"} {
		CacheHits.WithLabelValues(ns)
		CacheMisses.WithLabelValues(ns)
		CacheStoreErrors.WithLabelValues(ns)
		CacheEntries.WithLabelValues(ns)
		CacheBytes.WithLabelValues(ns)
		CacheHitRatio.WithLabelValues(ns)
		for _, reason := range []string{"size", "count", "age", "clear"} {
			CacheEvictions.WithLabelValues(ns, reason)
		}
	}

	// --- GPU detection ---
	for _, status := range []string{"success", "error", "disabled"} {
		GPUDetectionsTotal.WithLabelValues(status)
	}

	// --- Preview kinds ---
	for _, kind := range []string{"frame", "storyboard", "waveform", "segment"} {
		PreviewRequestsTotal.WithLabelValues(kind, "success")
		PreviewRequestsTotal.WithLabelValues(kind, "cache_hit")
		PreviewRequestsTotal.WithLabelValues(kind, "error")
		PreviewDuration.WithLabelValues(kind)
	}

	// --- Filesystem retry metrics (per retry-operation × volume) ---
	volumes := []string{"sources", "output", "temp", "unknown"}
	for _, op := range []string{"stat", "open"} {
		for _, vol := range volumes {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
