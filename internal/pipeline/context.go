package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"render-engine/internal/ffmpeg"
	"render-engine/internal/logging"
	"render-engine/internal/project"
)

// StageTiming records one stage run.
type StageTiming struct {
	Name     string        `json:"name"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Statistics accumulates over a job's lifetime. Counters are recorded on
// every exit path, including failures and cancellation.
type Statistics struct {
	StartTime        time.Time     `json:"startTime"`
	EndTime          time.Time     `json:"endTime"`
	Stages           []StageTiming `json:"stages"`
	FramesProcessed  int64         `json:"framesProcessed"`
	TotalFrames      int64         `json:"totalFrames"`
	Errors           int           `json:"errors"`
	Warnings         int           `json:"warnings"`
	ValidationIssues int           `json:"validationIssues"`
	InputsTranscoded int           `json:"inputsTranscoded"`
	OutputSize       int64         `json:"outputSize"`
}

// Duration is the wall time of the job so far.
func (s Statistics) Duration() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Context is the mutable unit of work shared by the stages of one job.
type Context struct {
	JobID      string
	Project    *project.Project
	OutputPath string

	tempRoot string

	mu        sync.Mutex
	tempDir   string
	cleaned   bool
	data      map[string]any
	stats     Statistics
	command   *ffmpeg.Command
	overrides map[string]string
	media     map[string]*ffmpeg.MediaInfo
	progress  ffmpeg.Progress
	percent   float64

	cancelled  atomic.Bool
	cancelMu   sync.Mutex
	cancelFunc context.CancelFunc

	emit EventFunc
}

// NewContext creates a job context. Temp directories are created under
// tempRoot, or the system temp dir when empty.
func NewContext(jobID string, p *project.Project, outputPath, tempRoot string) *Context {
	return &Context{
		JobID:      jobID,
		Project:    p,
		OutputPath: outputPath,
		tempRoot:   tempRoot,
		data:       make(map[string]any),
		overrides:  make(map[string]string),
		media:      make(map[string]*ffmpeg.MediaInfo),
	}
}

// EnsureTempDir creates the job's temp directory on first use and returns
// its path.
func (c *Context) EnsureTempDir() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tempDir != "" {
		return c.tempDir, nil
	}
	if c.tempRoot != "" {
		if err := os.MkdirAll(c.tempRoot, 0o755); err != nil {
			return "", fmt.Errorf("failed to create temp root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(c.tempRoot, "render-"+c.JobID+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	c.tempDir = dir
	c.cleaned = false
	logging.Debug("Job %s: temp directory %s", c.JobID, dir)
	return dir, nil
}

// TempDir returns the temp directory, or "" if none was created.
func (c *Context) TempDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tempDir
}

// Cleanup removes the temp directory. Safe to call more than once.
func (c *Context) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cleaned || c.tempDir == "" {
		c.cleaned = true
		return nil
	}
	if err := os.RemoveAll(c.tempDir); err != nil {
		return fmt.Errorf("failed to remove temp directory %s: %w", c.tempDir, err)
	}
	logging.Debug("Job %s: removed temp directory %s", c.JobID, c.tempDir)
	c.tempDir = ""
	c.cleaned = true
	return nil
}

// Cancel requests cooperative cancellation. The flag is checked between
// stages and per progress update; a running subprocess is killed through
// the job's context.
func (c *Context) Cancel() {
	c.cancelled.Store(true)
	c.cancelMu.Lock()
	cancel := c.cancelFunc
	c.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// IsCancelled reports whether Cancel was called.
func (c *Context) IsCancelled() bool {
	return c.cancelled.Load()
}

func (c *Context) setCancelFunc(cancel context.CancelFunc) {
	c.cancelMu.Lock()
	c.cancelFunc = cancel
	c.cancelMu.Unlock()
}

// Set stores a scratch value for later stages.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	c.data[key] = value
	c.mu.Unlock()
}

// Get returns a scratch value.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

// Statistics returns a snapshot.
func (c *Context) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Stages = append([]StageTiming(nil), c.stats.Stages...)
	return s
}

func (c *Context) updateStats(fn func(*Statistics)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

// AddWarning counts a non-fatal problem.
func (c *Context) AddWarning() {
	c.updateStats(func(s *Statistics) { s.Warnings++ })
}

// SetCommand stores the compiled render command.
func (c *Context) SetCommand(cmd *ffmpeg.Command) {
	c.mu.Lock()
	c.command = cmd
	c.mu.Unlock()
}

// Command returns the compiled render command, or nil before composition.
func (c *Context) Command() *ffmpeg.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.command
}

// SetInputOverride replaces source path with an intermediate for compilation.
func (c *Context) SetInputOverride(source, replacement string) {
	c.mu.Lock()
	c.overrides[source] = replacement
	c.mu.Unlock()
}

// InputOverrides returns a copy of the source replacements.
func (c *Context) InputOverrides() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.overrides))
	for k, v := range c.overrides {
		out[k] = v
	}
	return out
}

// SetMediaInfo records the probe result of a source.
func (c *Context) SetMediaInfo(path string, info *ffmpeg.MediaInfo) {
	c.mu.Lock()
	c.media[path] = info
	c.mu.Unlock()
}

// MediaInfo returns a copy of the probe results keyed by source path.
func (c *Context) MediaInfo() map[string]*ffmpeg.MediaInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*ffmpeg.MediaInfo, len(c.media))
	for k, v := range c.media {
		out[k] = v
	}
	return out
}

// Progress returns the last encoder progress and its percentage of the
// expected output duration.
func (c *Context) Progress() (ffmpeg.Progress, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress, c.percent
}

func (c *Context) updateProgress(p ffmpeg.Progress, total float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = p
	c.percent = p.Percent(total)
	if p.Frame > c.stats.FramesProcessed {
		c.stats.FramesProcessed = p.Frame
	}
	return c.percent
}

// Publish sends an event to the job's listener, if any.
func (c *Context) Publish(e Event) {
	if c.emit == nil {
		return
	}
	if e.JobID == "" {
		e.JobID = c.JobID
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	c.emit(e)
}
