package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"render-engine/internal/cache"
	"render-engine/internal/ffmpeg"
	"render-engine/internal/filtergraph"
	"render-engine/internal/renderr"
)

// Default stage names, in execution order.
const (
	StageValidation    = "validation"
	StagePreprocessing = "preprocessing"
	StageComposition   = "composition"
	StageEncoding      = "encoding"
	StageFinalization  = "finalization"
)

// Advisory budgets. Overruns are logged, never enforced.
const (
	ValidationBudget    = 5 * time.Second
	PreprocessingBudget = 30 * time.Second
	CompositionBudget   = 120 * time.Second
	EncodingBudget      = 300 * time.Second
	FinalizationBudget  = 5 * time.Second
)

// Stage is one phase of a render.
type Stage interface {
	Name() string
	Process(ctx context.Context, pc *Context) error
	// EstimatedDuration is an advisory budget used for ETAs and overrun
	// warnings.
	EstimatedDuration() time.Duration
}

// Services are the shared collaborators stages use. Cache and GPU may be
// nil.
type Services struct {
	Runner   ffmpeg.Executor
	Cache    *cache.Cache
	GPU      filtergraph.EncoderRecommender
	TempRoot string
}

type funcStage struct {
	name   string
	budget time.Duration
	fn     func(ctx context.Context, pc *Context) error
}

func (s *funcStage) Name() string                     { return s.name }
func (s *funcStage) EstimatedDuration() time.Duration { return s.budget }

func (s *funcStage) Process(ctx context.Context, pc *Context) error {
	return s.fn(ctx, pc)
}

// NewStage adapts a function into a Stage.
func NewStage(name string, budget time.Duration, fn func(ctx context.Context, pc *Context) error) Stage {
	return &funcStage{name: name, budget: budget, fn: fn}
}

// DefaultStageNames lists the built-in stages in order.
func DefaultStageNames() []string {
	return []string{StageValidation, StagePreprocessing, StageComposition, StageEncoding, StageFinalization}
}

// DefaultStages returns the built-in stages wired to svc.
func DefaultStages(svc Services) []Stage {
	return []Stage{
		&validationStage{},
		&preprocessingStage{svc: svc},
		&compositionStage{svc: svc},
		&encodingStage{svc: svc},
		&finalizationStage{svc: svc},
	}
}

// StageFactory creates a custom stage.
type StageFactory func(svc Services) Stage

// Registry maps custom stage names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]StageFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]StageFactory)}
}

// Register adds a factory. Names of built-in stages and duplicates are
// rejected.
func (r *Registry) Register(name string, factory StageFactory) error {
	const op = "pipeline.Registry.Register"
	if name == "" || factory == nil {
		return renderr.Validation(op, "stage name and factory are required")
	}
	for _, builtin := range DefaultStageNames() {
		if name == builtin {
			return renderr.Validation(op, "stage %q is built in", name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return renderr.Validation(op, "stage %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Lookup returns the factory for name.
func (r *Registry) Lookup(name string) (StageFactory, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
