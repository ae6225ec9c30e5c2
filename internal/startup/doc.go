// Package startup handles engine initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] starts from [DefaultConfig], overlays a YAML file named by
// RENDER_CONFIG (or the first of ./render-engine.yaml,
// ~/.render-engine/config.yaml, /etc/render-engine/config.yaml), then
// overlays environment variables:
//
//   - FFMPEG_PATH, FFPROBE_PATH: executables (default: resolved through PATH)
//   - TEMP_DIR: root for per-job temp dirs and cached segments
//   - OUTPUT_DIR: root that outputs of jobs submitted over HTTP are confined
//     to (default: TEMP_DIR/outputs)
//   - CACHE_MAX_PREVIEW_BYTES, CACHE_MAX_SEGMENT_BYTES: byte limits
//   - CACHE_MAX_METADATA_ENTRIES: probe result limit
//   - CACHE_MAX_AGE: janitor eviction age as Go duration (default: 1h, 0 disables)
//   - GPU_ACCEL: auto or none (default: auto)
//   - PREVIEW_WORKERS: concurrent frame extractions (default: derived from CPUs)
//   - LISTEN_ADDR: ops listener address (default: disabled)
//   - METRICS_ENABLED: serve /metrics on the ops listener (default: true)
//   - LOG_HEALTH_CHECKS: log /healthz and /livez requests (default: false)
//   - LOG_LEVEL, LOG_FORMAT, DEBUG: see package logging
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// Build information is injected through -ldflags into [Version], [Commit]
// and [BuildTime].
package startup
