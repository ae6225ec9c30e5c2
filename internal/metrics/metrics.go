package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics (ops listener)
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_engine_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "render_engine_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Pipeline metrics
var (
	PipelineJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_pipeline_jobs_total",
			Help: "Total number of pipeline jobs by outcome",
		},
		[]string{"status"}, // "completed", "failed", "cancelled"
	)

	PipelineJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "render_engine_pipeline_jobs_active",
			Help: "Number of pipeline jobs currently executing",
		},
	)

	PipelineJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "render_engine_pipeline_job_duration_seconds",
			Help:    "End-to-end pipeline job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_engine_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 120, 300},
		},
		[]string{"stage"},
	)

	PipelineStageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_pipeline_stage_errors_total",
			Help: "Total number of stage failures by error kind",
		},
		[]string{"stage", "kind"},
	)

	PipelineStageOverruns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_pipeline_stage_budget_overruns_total",
			Help: "Stages that ran longer than their advisory budget",
		},
		[]string{"stage"},
	)

	PipelinePanicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_engine_pipeline_panics_recovered_total",
			Help: "Panics recovered at the job boundary",
		},
	)

	PipelineInputsTranscoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_engine_pipeline_inputs_transcoded_total",
			Help: "Source files converted to intermediates during preprocessing",
		},
	)
)

// FFmpeg subprocess metrics
var (
	FFmpegRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_ffmpeg_runs_total",
			Help: "Total number of ffmpeg invocations",
		},
		[]string{"kind", "status"},
	)

	FFmpegRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_engine_ffmpeg_run_duration_seconds",
			Help:    "ffmpeg invocation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
		},
		[]string{"kind"},
	)

	FFmpegProcessesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "render_engine_ffmpeg_processes_active",
			Help: "Number of ffmpeg processes currently running",
		},
	)

	FFprobeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "render_engine_ffprobe_duration_seconds",
			Help:    "ffprobe invocation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

// Cache metrics
var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_cache_hits_total",
			Help: "Cache hits by namespace",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_cache_misses_total",
			Help: "Cache misses by namespace",
		},
		[]string{"namespace"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_cache_evictions_total",
			Help: "Cache evictions by namespace and reason",
		},
		[]string{"namespace", "reason"}, // "size", "count", "age", "clear"
	)

	CacheStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_cache_store_errors_total",
			Help: "Rejected cache writes by namespace",
		},
		[]string{"namespace"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "render_engine_cache_entries",
			Help: "Number of cached entries by namespace",
		},
		[]string{"namespace"},
	)

	CacheBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "render_engine_cache_bytes",
			Help: "Accounted cache size in bytes by namespace",
		},
		[]string{"namespace"},
	)

	CacheHitRatio = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "render_engine_cache_hit_ratio",
			Help: "Lifetime hit ratio by namespace (0.0-1.0)",
		},
		[]string{"namespace"},
	)
)

// GPU capability metrics
var (
	GPUDetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_gpu_detections_total",
			Help: "Hardware encoder detection runs",
		},
		[]string{"status"},
	)

	GPUHardwareAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "render_engine_gpu_hardware_available",
			Help: "Whether a hardware encoder was detected (1 = yes)",
		},
	)

	GPUEncoderAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "render_engine_gpu_encoder_available",
			Help: "Detected hardware encoders (1 = available)",
		},
		[]string{"encoder", "family"},
	)

	GPUBenchmarkFPS = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "render_engine_gpu_benchmark_fps",
			Help: "Frames per second measured by the last synthetic benchmark",
		},
		[]string{"encoder"},
	)
)

// Preview metrics
var (
	PreviewRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_preview_requests_total",
			Help: "Preview requests by kind and outcome",
		},
		[]string{"kind", "status"}, // kind: "frame", "storyboard", "waveform", "segment"
	)

	PreviewDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_engine_preview_duration_seconds",
			Help:    "Preview generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	PreviewStoryboardFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_engine_preview_storyboard_fallbacks_total",
			Help: "Storyboards that fell back to a single representative thumbnail",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_engine_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_filesystem_operation_errors_total",
			Help: "Filesystem operation errors",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_filesystem_retry_attempts_total",
			Help: "Filesystem operation retries after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_engine_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retried filesystem operations",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_engine_filesystem_stale_errors_total",
			Help: "ESTALE errors encountered",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "render_engine_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "render_engine_memory_paused",
			Help: "Whether preview work is paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_engine_memory_gc_pauses_total",
			Help: "Times processing was paused due to critical memory usage",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "render_engine_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
