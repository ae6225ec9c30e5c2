package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"render-engine/internal/logging"
	"render-engine/internal/metrics"
	"render-engine/internal/renderr"
)

// Pipeline runs an ordered list of stages over one Context.
type Pipeline struct {
	pc *Context

	mu      sync.RWMutex
	stages  []Stage
	state   State
	current string
	err     error
}

// New creates a pipeline. onEvent may be nil.
func New(pc *Context, stages []Stage, onEvent EventFunc) *Pipeline {
	pc.emit = onEvent
	return &Pipeline{
		pc:     pc,
		stages: append([]Stage(nil), stages...),
		state:  StatePending,
	}
}

// Context returns the job context.
func (p *Pipeline) Context() *Context { return p.pc }

// State returns the lifecycle state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// CurrentStage returns the running stage name, or "" outside a stage.
func (p *Pipeline) CurrentStage() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Err returns the error the pipeline finished with.
func (p *Pipeline) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// InsertStage adds s at position (0 = first). Only pending pipelines can
// be changed.
func (p *Pipeline) InsertStage(s Stage, position int) error {
	const op = "pipeline.InsertStage"
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePending {
		return renderr.Validation(op, "pipeline %s is %s and can no longer be changed", p.pc.JobID, p.state)
	}
	if position < 0 || position > len(p.stages) {
		return renderr.Validation(op, "position %d out of range [0,%d]", position, len(p.stages))
	}
	for _, existing := range p.stages {
		if existing.Name() == s.Name() {
			return renderr.Validation(op, "stage %q already present", s.Name())
		}
	}
	p.stages = append(p.stages, nil)
	copy(p.stages[position+1:], p.stages[position:])
	p.stages[position] = s
	return nil
}

// RemoveStage drops the named stage. Unknown names are an error.
func (p *Pipeline) RemoveStage(name string) error {
	const op = "pipeline.RemoveStage"
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePending {
		return renderr.Validation(op, "pipeline %s is %s and can no longer be changed", p.pc.JobID, p.state)
	}
	for i, s := range p.stages {
		if s.Name() == name {
			p.stages = append(p.stages[:i], p.stages[i+1:]...)
			return nil
		}
	}
	return renderr.Validation(op, "unknown stage %q", name)
}

// Execute runs every stage in order. Cancellation is checked before each
// stage. The temp directory is removed on every exit path, and a panic in
// a stage becomes an InternalError for this job only.
func (p *Pipeline) Execute(ctx context.Context) (err error) {
	const op = "pipeline.Execute"
	pc := p.pc

	p.mu.Lock()
	if p.state != StatePending {
		state := p.state
		p.mu.Unlock()
		return renderr.Validation(op, "pipeline %s already %s", pc.JobID, state)
	}
	p.state = StateRunning
	stages := append([]Stage(nil), p.stages...)
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	pc.setCancelFunc(cancel)
	if pc.IsCancelled() {
		cancel()
	}

	start := time.Now()
	pc.updateStats(func(s *Statistics) { s.StartTime = start })
	metrics.PipelineJobsActive.Inc()
	defer metrics.PipelineJobsActive.Dec()

	logging.Info("Job %s: starting %d stage(s)", pc.JobID, len(stages))

	defer func() {
		if r := recover(); r != nil {
			metrics.PipelinePanicsRecovered.Inc()
			stage := p.CurrentStage()
			logging.Error("Job %s: stage %s panicked: %v\n%s", pc.JobID, stage, r, debug.Stack())
			err = renderr.Internal(op, "stage %s panicked: %v", stage, r).WithJob(pc.JobID)
			pc.endStage(stage, time.Now(), err)
		}
		if cerr := pc.Cleanup(); cerr != nil {
			logging.Warn("Job %s: %v", pc.JobID, cerr)
			pc.AddWarning()
		}
		p.finish(err, start)
	}()

	for _, s := range stages {
		name := s.Name()
		if pc.IsCancelled() || ctx.Err() != nil {
			return renderr.Cancelled(op, pc.JobID)
		}

		p.setCurrent(name)
		pc.beginStage(name, time.Now())
		pc.Publish(Event{Type: EventStageStarted, Stage: name})

		begin := time.Now()
		serr := s.Process(ctx, pc)
		elapsed := time.Since(begin)
		pc.endStage(name, time.Now(), serr)
		metrics.PipelineStageDuration.WithLabelValues(name).Observe(elapsed.Seconds())

		if budget := s.EstimatedDuration(); budget > 0 && elapsed > budget {
			metrics.PipelineStageOverruns.WithLabelValues(name).Inc()
			pc.AddWarning()
			logging.Warn("Job %s: %v", pc.JobID, renderr.Timeout(op, "stage %s took %s, budget %s", name, elapsed.Round(time.Millisecond), budget))
		}

		if serr != nil {
			if pc.IsCancelled() || errors.Is(serr, renderr.ErrCancelled) {
				return renderr.Cancelled(op, pc.JobID)
			}
			metrics.PipelineStageErrors.WithLabelValues(name, renderr.KindOf(serr).String()).Inc()
			return withJob(serr, name, pc.JobID)
		}

		logging.Debug("Job %s: stage %s completed in %s", pc.JobID, name, elapsed.Round(time.Millisecond))
		pc.Publish(Event{Type: EventStageCompleted, Stage: name})
	}
	p.setCurrent("")
	return nil
}

// withJob annotates engine errors with the job id and wraps foreign
// errors from custom stages as internal errors.
func withJob(err error, stage, jobID string) error {
	var re *renderr.Error
	if errors.As(err, &re) {
		if re.JobID != "" {
			return err
		}
		return re.WithJob(jobID)
	}
	wrapped := renderr.Internal("pipeline."+stage, "stage failed").WithJob(jobID)
	wrapped.Err = err
	return wrapped
}

func (p *Pipeline) setCurrent(name string) {
	p.mu.Lock()
	p.current = name
	p.mu.Unlock()
}

func (p *Pipeline) finish(err error, start time.Time) {
	pc := p.pc
	end := time.Now()

	state := StateCompleted
	switch {
	case errors.Is(err, renderr.ErrCancelled):
		state = StateCancelled
	case err != nil:
		state = StateFailed
	}

	pc.updateStats(func(s *Statistics) {
		s.EndTime = end
		if state == StateFailed {
			s.Errors++
		}
	})

	p.mu.Lock()
	p.state = state
	p.current = ""
	p.err = err
	p.mu.Unlock()

	metrics.PipelineJobsTotal.WithLabelValues(string(state)).Inc()
	metrics.PipelineJobDuration.Observe(end.Sub(start).Seconds())

	switch state {
	case StateCompleted:
		logging.Info("Job %s: completed in %s", pc.JobID, end.Sub(start).Round(time.Millisecond))
		pc.Publish(Event{Type: EventCompleted, Percent: 100})
	case StateCancelled:
		logging.Info("Job %s: cancelled", pc.JobID)
		pc.Publish(Event{Type: EventCancelled, Err: err, Error: err.Error()})
	default:
		logging.Error("Job %s: failed: %v", pc.JobID, err)
		pc.Publish(Event{Type: EventFailed, Err: err, Error: err.Error()})
	}
}

func (c *Context) beginStage(name string, at time.Time) {
	c.updateStats(func(s *Statistics) {
		s.Stages = append(s.Stages, StageTiming{Name: name, Start: at})
	})
}

func (c *Context) endStage(name string, at time.Time, err error) {
	c.updateStats(func(s *Statistics) {
		for i := len(s.Stages) - 1; i >= 0; i-- {
			st := &s.Stages[i]
			if st.Name != name || !st.End.IsZero() {
				continue
			}
			st.End = at
			st.Duration = at.Sub(st.Start)
			if err != nil {
				st.Error = err.Error()
			}
			return
		}
	})
}

// String describes the pipeline for logs.
func (p *Pipeline) String() string {
	return fmt.Sprintf("pipeline %s %v (%s)", p.pc.JobID, p.Stages(), p.State())
}
