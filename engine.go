package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"render-engine/internal/cache"
	"render-engine/internal/ffmpeg"
	"render-engine/internal/filesystem"
	"render-engine/internal/gpu"
	"render-engine/internal/handlers"
	"render-engine/internal/logging"
	"render-engine/internal/memory"
	"render-engine/internal/metrics"
	"render-engine/internal/middleware"
	"render-engine/internal/pipeline"
	"render-engine/internal/preview"
	"render-engine/internal/startup"
	"render-engine/internal/workers"
)

const (
	janitorInterval   = 5 * time.Minute
	collectorInterval = 30 * time.Second
	jobReapInterval   = 10 * time.Minute
)

// engine holds the services shared by every command.
type engine struct {
	config    *startup.Config
	runner    *ffmpeg.Runner
	cache     *cache.Cache
	gpu       *gpu.Service
	monitor   *memory.Monitor
	collector *metrics.Collector
	jobs      *pipeline.Manager
	previews  *preview.Service

	stopBackground context.CancelFunc
}

// newEngine wires the engine from config. onEvent receives pipeline events
// of every job and may be nil.
func newEngine(ctx context.Context, config *startup.Config, onEvent pipeline.EventFunc) (*engine, error) {
	runner := ffmpeg.NewRunner(config.FFmpegPath, config.FFprobePath)
	if err := startup.LogFFmpegInit(ctx, runner); err != nil {
		return nil, err
	}

	if config.PreviewWorkers > 0 {
		workers.SetOverride(config.PreviewWorkers)
	}

	cacheConfig := config.CacheConfig()
	startup.LogCacheInit(cacheConfig, janitorInterval, config.CacheMaxAge)
	c := cache.New(cacheConfig)

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"temp":   config.TempDir,
		"output": config.OutputDir,
	}))

	gpuSvc := gpu.NewService(runner, config.GPUMode())

	monitor := memory.NewMonitor(memory.MonitorConfigFromEnv())
	monitor.Start()

	if err := preview.InitVips(); err != nil {
		logging.Warn("libvips unavailable, still thumbnails use imaging: %v", err)
	}

	bg, stop := context.WithCancel(ctx)
	go c.RunJanitor(bg, janitorInterval, config.CacheMaxAge)

	collector := metrics.NewCollector(c, collectorInterval)
	collector.Start()
	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)

	svc := pipeline.Services{
		Runner:   runner,
		Cache:    c,
		GPU:      gpuSvc,
		TempRoot: config.TempDir,
	}

	previews := preview.New(runner, c, preview.Config{
		TempDir: config.TempDir,
		Workers: config.PreviewWorkers,
		GPU:     gpuSvc,
		Monitor: monitor,
	})

	return &engine{
		config:         config,
		runner:         runner,
		cache:          c,
		gpu:            gpuSvc,
		monitor:        monitor,
		collector:      collector,
		jobs:           pipeline.NewManager(svc, nil, onEvent),
		previews:       previews,
		stopBackground: stop,
	}, nil
}

// detectGPU runs hardware detection up front so its outcome is logged
// with the rest of startup.
func (e *engine) detectGPU(ctx context.Context) {
	startup.LogGPUInit(e.gpu.DetectGPUs(ctx), e.config.GPUMode())
}

// reapJobs forgets finished jobs periodically so a long-running listener
// does not accumulate them.
func (e *engine) reapJobs(ctx context.Context) {
	ticker := time.NewTicker(jobReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.jobs.CleanupCompleted()
		case <-ctx.Done():
			return
		}
	}
}

// close stops background work and kills any ffmpeg still running.
func (e *engine) close() {
	startup.LogShutdownStep("Stopping background services")
	e.stopBackground()
	e.collector.Stop()
	e.monitor.Stop()
	startup.LogShutdownStepComplete("Background services stopped")

	startup.LogShutdownStep("Killing ffmpeg processes")
	e.runner.Cleanup()
	startup.LogShutdownStepComplete("FFmpeg processes stopped")

	preview.ShutdownVips()
}

func setupRouter(h *handlers.Handlers, metricsEnabled, logHealthChecks bool) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	api.HandleFunc("/jobs", h.CreateJob).Methods("POST")
	api.HandleFunc("/jobs/cleanup", h.CleanupJobs).Methods("POST")
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/cancel", h.CancelJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/output", h.DownloadOutput).Methods("GET")
	api.HandleFunc("/gpu", h.GetGPU).Methods("GET")
	api.HandleFunc("/gpu/refresh", h.RefreshGPU).Methods("POST")
	api.HandleFunc("/cache", h.GetCache).Methods("GET")
	api.HandleFunc("/cache", h.ClearCache).Methods("DELETE")

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = logHealthChecks
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	r.Use(middleware.Logger(loggingConfig))
	return r
}

// startOpsServer serves the ops API on config.ListenAddr. It returns nil
// when no address is configured.
func (e *engine) startOpsServer(ctx context.Context, started time.Time) *http.Server {
	if e.config.ListenAddr == "" {
		return nil
	}

	h := handlers.New(ctx, e.jobs, e.gpu, e.cache, e.monitor, e.config.OutputDir)
	router := setupRouter(h, e.config.MetricsEnabled, e.config.LogHealthChecks)
	startup.LogHTTPRoutes(router, e.config.LogHealthChecks)

	srv := &http.Server{
		Addr:              e.config.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Ops listener error: %v", err)
		}
	}()

	startup.LogServerStarted(startup.ServerConfig{
		ListenAddr:      e.config.ListenAddr,
		MetricsEnabled:  e.config.MetricsEnabled,
		StartupDuration: time.Since(started),
	})
	return srv
}

func shutdownOpsServer(srv *http.Server) {
	if srv == nil {
		return
	}
	startup.LogShutdownStep("Shutting down ops listener")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Ops listener shutdown error: %v", err)
		return
	}
	startup.LogShutdownStepComplete("Ops listener stopped")
}
