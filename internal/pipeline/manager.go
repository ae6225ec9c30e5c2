package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"render-engine/internal/ffmpeg"
	"render-engine/internal/logging"
	"render-engine/internal/project"
	"render-engine/internal/renderr"
)

// Info summarizes a job for listings and the ops API.
type Info struct {
	ID           string     `json:"id"`
	State        State      `json:"state"`
	CurrentStage string     `json:"currentStage,omitempty"`
	Stages       []string   `json:"stages"`
	OutputPath   string     `json:"outputPath"`
	Percent      float64    `json:"percent"`
	CreatedAt    time.Time  `json:"createdAt"`
	Statistics   Statistics `json:"statistics"`
	Error        string     `json:"error,omitempty"`
}

// ProgressInfo is the latest encoder progress of a job.
type ProgressInfo struct {
	ffmpeg.Progress
	Percent float64 `json:"percent"`
}

type job struct {
	pipeline *Pipeline
	created  time.Time
	done     chan struct{}
	doneOnce sync.Once
}

// Manager is the registry of active jobs. Jobs run independently; the
// registry lock only guards insertion, removal and lookup.
type Manager struct {
	svc      Services
	registry *Registry
	onEvent  EventFunc

	mu   sync.RWMutex
	jobs map[string]*job
}

// NewManager creates a job manager. registry and onEvent may be nil.
func NewManager(svc Services, registry *Registry, onEvent EventFunc) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		svc:      svc,
		registry: registry,
		onEvent:  onEvent,
		jobs:     make(map[string]*job),
	}
}

// Registry returns the custom stage registry.
func (m *Manager) Registry() *Registry { return m.registry }

// Create registers a job rendering p to output and returns its id.
// configure, if given, customizes the stage list.
func (m *Manager) Create(p *project.Project, output string, configure ...func(*Builder)) (string, error) {
	const op = "pipeline.Manager.Create"
	if p == nil {
		return "", renderr.Validation(op, "project is required")
	}
	if output == "" {
		return "", renderr.Validation(op, "output path is required")
	}

	b := NewBuilder(m.svc, m.registry)
	for _, fn := range configure {
		fn(b)
	}
	stages, err := b.Build()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	pc := NewContext(id, p, output, m.svc.TempRoot)
	j := &job{
		pipeline: New(pc, stages, m.onEvent),
		created:  time.Now(),
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[id] = j
	m.mu.Unlock()

	logging.Debug("Created job %s -> %s", id, output)
	return id, nil
}

func (m *Manager) get(op, id string) (*job, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, renderr.Validation(op, "Pipeline not found: %s", id)
	}
	return j, nil
}

// Execute runs the job on the calling goroutine.
func (m *Manager) Execute(ctx context.Context, id string) error {
	j, err := m.get("pipeline.Manager.Execute", id)
	if err != nil {
		return err
	}
	return m.run(ctx, j)
}

// Start runs the job on its own goroutine. Use Done to wait for it.
func (m *Manager) Start(ctx context.Context, id string) error {
	const op = "pipeline.Manager.Start"
	j, err := m.get(op, id)
	if err != nil {
		return err
	}
	if state := j.pipeline.State(); state != StatePending {
		return renderr.Validation(op, "pipeline %s already %s", id, state)
	}
	go func() {
		if err := m.run(ctx, j); err != nil {
			logging.Debug("Job %s finished with error: %v", id, err)
		}
	}()
	return nil
}

func (m *Manager) run(ctx context.Context, j *job) error {
	err := j.pipeline.Execute(ctx)
	if j.pipeline.State().Finished() {
		j.doneOnce.Do(func() { close(j.done) })
	}
	return err
}

// Done returns a channel closed when the job finishes.
func (m *Manager) Done(id string) (<-chan struct{}, error) {
	j, err := m.get("pipeline.Manager.Done", id)
	if err != nil {
		return nil, err
	}
	return j.done, nil
}

// Info summarizes a job.
func (m *Manager) Info(id string) (Info, error) {
	j, err := m.get("pipeline.Manager.Info", id)
	if err != nil {
		return Info{}, err
	}
	return j.info(id), nil
}

func (j *job) info(id string) Info {
	p := j.pipeline
	pc := p.Context()
	_, pct := pc.Progress()
	info := Info{
		ID:           id,
		State:        p.State(),
		CurrentStage: p.CurrentStage(),
		Stages:       p.Stages(),
		OutputPath:   pc.OutputPath,
		Percent:      pct,
		CreatedAt:    j.created,
		Statistics:   pc.Statistics(),
	}
	if err := p.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

// Statistics returns a job's statistics.
func (m *Manager) Statistics(id string) (Statistics, error) {
	j, err := m.get("pipeline.Manager.Statistics", id)
	if err != nil {
		return Statistics{}, err
	}
	return j.pipeline.Context().Statistics(), nil
}

// Context returns a job's context.
func (m *Manager) Context(id string) (*Context, error) {
	j, err := m.get("pipeline.Manager.Context", id)
	if err != nil {
		return nil, err
	}
	return j.pipeline.Context(), nil
}

// Progress returns a job's latest encoder progress.
func (m *Manager) Progress(id string) (ProgressInfo, error) {
	j, err := m.get("pipeline.Manager.Progress", id)
	if err != nil {
		return ProgressInfo{}, err
	}
	prog, pct := j.pipeline.Context().Progress()
	return ProgressInfo{Progress: prog, Percent: pct}, nil
}

// Cancel requests cancellation of a job. Cancelling a finished job is a
// no-op.
func (m *Manager) Cancel(id string) error {
	j, err := m.get("pipeline.Manager.Cancel", id)
	if err != nil {
		return err
	}
	if j.pipeline.State().Finished() {
		return nil
	}
	logging.Info("Cancelling job %s", id)
	j.pipeline.Context().Cancel()
	return nil
}

// InsertStage adds a registered custom stage to a pending job.
func (m *Manager) InsertStage(id, name string, position int) error {
	const op = "pipeline.Manager.InsertStage"
	j, err := m.get(op, id)
	if err != nil {
		return err
	}
	factory, ok := m.registry.Lookup(name)
	if !ok {
		return renderr.Validation(op, "unknown stage %q", name)
	}
	return j.pipeline.InsertStage(factory(m.svc), position)
}

// RemoveStage drops a stage from a pending job.
func (m *Manager) RemoveStage(id, name string) error {
	j, err := m.get("pipeline.Manager.RemoveStage", id)
	if err != nil {
		return err
	}
	return j.pipeline.RemoveStage(name)
}

// CleanupCompleted forgets finished jobs and returns how many were removed.
func (m *Manager) CleanupCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, j := range m.jobs {
		if j.pipeline.State().Finished() {
			delete(m.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		logging.Debug("Removed %d finished job(s)", removed)
	}
	return removed
}

// List summarizes every job, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	type entry struct {
		id string
		j  *job
	}
	entries := make([]entry, 0, len(m.jobs))
	for id, j := range m.jobs {
		entries = append(entries, entry{id, j})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(a, b int) bool {
		if entries[a].j.created.Equal(entries[b].j.created) {
			return entries[a].id < entries[b].id
		}
		return entries[a].j.created.Before(entries[b].j.created)
	})

	out := make([]Info, len(entries))
	for i, e := range entries {
		out[i] = e.j.info(e.id)
	}
	return out
}

// ActiveJobs counts jobs that are running.
func (m *Manager) ActiveJobs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, j := range m.jobs {
		if j.pipeline.State() == StateRunning {
			n++
		}
	}
	return n
}
