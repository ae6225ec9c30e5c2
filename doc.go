// Package main provides the entry point for the render engine.
//
// The render engine turns a declarative project document (tracks of clips,
// transitions, effects and text overlays) into a single encoded video by
// compiling it to an ffmpeg filter graph and running it through a staged
// pipeline. It also produces quick previews: single frames, storyboards,
// audio waveforms and low-resolution renders of a time range.
//
// # Commands
//
//	render-engine render  -project p.yaml -output out.mp4 [-skip stages] [-listen addr]
//	render-engine preview frame|storyboard|waveform|segment [flags] -out file
//	render-engine serve   [-listen addr]
//	render-engine gpu     [-benchmark]
//	render-engine version
//
// render prints a progress bar when stderr is a terminal and plain progress
// lines otherwise. serve accepts render jobs over HTTP until interrupted.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  2. Configuration Loading: Defaults, then RENDER_CONFIG or a discovered YAML
//     file, then environment variables
//  3. Component Initialization:
//     - FFmpeg Runner: Verifies ffmpeg and ffprobe are installed
//     - Cache: Bounded metadata, preview and segment namespaces with a janitor
//     - GPU Service: Detects hardware encoders (unless GPU_ACCEL=none)
//     - Memory Monitor: Throttles preview workers under memory pressure
//     - Metrics Collector: Publishes cache occupancy to Prometheus
//  4. Ops Listener (optional): Health, version, metrics and the jobs API
//  5. Graceful Shutdown: SIGINT/SIGTERM cancels running jobs, kills ffmpeg
//     processes and stops background services
//
// # Ops API
//
//	GET    /healthz                  readiness with job, cache and memory status
//	GET    /livez                    liveness
//	GET    /version                  build information
//	GET    /metrics                  Prometheus metrics (METRICS_ENABLED)
//	GET    /api/jobs                 list jobs
//	POST   /api/jobs?output=path     submit a YAML or JSON project; path is
//	                                 relative to OUTPUT_DIR
//	POST   /api/jobs/cleanup         forget finished jobs
//	GET    /api/jobs/{id}            job state, statistics and progress
//	POST   /api/jobs/{id}/cancel     cancel a job
//	GET    /api/jobs/{id}/output     download a completed job's output
//	GET    /api/gpu                  hardware capabilities
//	POST   /api/gpu/refresh          re-run hardware detection
//	GET    /api/cache                cache usage and statistics
//	DELETE /api/cache                clear every cache namespace
//
// # Exit Codes
//
//	0    success
//	1    render, hardware or internal failure
//	2    invalid flags, configuration or project document
//	127  ffmpeg or ffprobe missing
//	130  cancelled
//
// See package startup for the configuration keys.
package main
