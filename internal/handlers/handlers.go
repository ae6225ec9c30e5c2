package handlers

import (
	"context"
	"time"

	"render-engine/internal/cache"
	"render-engine/internal/gpu"
	"render-engine/internal/memory"
	"render-engine/internal/pipeline"
	"render-engine/internal/streaming"
)

// Handlers serves the ops API over the engine's shared services. gpu,
// cache and monitor may be nil.
type Handlers struct {
	ctx        context.Context
	jobs       *pipeline.Manager
	gpu        *gpu.Service
	cache      *cache.Cache
	monitor    *memory.Monitor
	outputRoot string
	stream     streaming.Config
	started    time.Time
}

// New creates Handlers. Jobs submitted over HTTP run under ctx, so
// cancelling it cancels them. Their outputs are written below outputRoot.
func New(ctx context.Context, jobs *pipeline.Manager, gpuSvc *gpu.Service, c *cache.Cache, monitor *memory.Monitor, outputRoot string) *Handlers {
	return &Handlers{
		ctx:        ctx,
		jobs:       jobs,
		gpu:        gpuSvc,
		cache:      c,
		monitor:    monitor,
		outputRoot: outputRoot,
		stream:     streaming.DefaultConfig(),
		started:    time.Now(),
	}
}
