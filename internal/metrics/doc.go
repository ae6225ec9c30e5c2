// Package metrics provides Prometheus instrumentation for the render engine.
//
// All metrics are prefixed with "render_engine_" and registered with the
// default Prometheus registry through promauto.
//
// # Metric Categories
//
// ## Pipeline Metrics
//
// Track render jobs and their stages:
//   - PipelineJobsTotal: Counter of finished jobs by status (completed/failed/cancelled)
//   - PipelineJobsActive: Gauge of executing jobs
//   - PipelineJobDuration: Histogram of end-to-end job duration
//   - PipelineStageDuration: Histogram of stage duration by stage name
//   - PipelineStageErrors: Counter of stage failures by stage and error kind
//   - PipelineStageOverruns: Counter of stages exceeding their advisory budget
//   - PipelinePanicsRecovered: Counter of panics contained at the job boundary
//   - PipelineInputsTranscoded: Counter of sources converted during preprocessing
//
// ## FFmpeg Metrics
//
//   - FFmpegRunsTotal: Counter by invocation kind and status
//   - FFmpegRunDuration: Histogram by invocation kind
//   - FFmpegProcessesActive: Gauge of running processes
//   - FFprobeDuration: Histogram of probe duration
//
// ## Cache Metrics
//
// Hits, misses, evictions and rejected writes are counted inline by the cache.
// Entry counts, byte totals and hit ratios are gauges refreshed by [Collector].
//
// ## GPU Metrics
//
//   - GPUDetectionsTotal, GPUHardwareAvailable, GPUEncoderAvailable
//   - GPUBenchmarkFPS: fps measured by the last synthetic encode per encoder
//
// ## Preview, Filesystem and Memory Metrics
//
// Preview requests by kind, ESTALE retry behavior for source and output
// volumes, and memory backpressure state.
//
// # Usage
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	router.Handle("/metrics", promhttp.Handler())
//
// # Collector
//
//	collector := metrics.NewCollector(cacheLayer, 15*time.Second)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Render failure rate:
//
//	sum(rate(render_engine_pipeline_jobs_total{status="failed"}[1h])) /
//	sum(rate(render_engine_pipeline_jobs_total[1h]))
//
// P95 encoding stage time:
//
//	histogram_quantile(0.95, sum(rate(render_engine_pipeline_stage_duration_seconds_bucket{stage="encoding"}[1h])) by (le))
//
// Preview cache hit rate:
//
//	rate(render_engine_cache_hits_total{namespace="previews"}[5m]) /
//	(rate(render_engine_cache_hits_total{namespace="previews"}[5m]) + rate(render_engine_cache_misses_total{namespace="previews"}[5m]))
package metrics
