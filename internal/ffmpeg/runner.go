package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"render-engine/internal/logging"
	"render-engine/internal/metrics"
	"render-engine/internal/renderr"
)

const (
	// DefaultFFmpegPath and DefaultFFprobePath are resolved through PATH.
	DefaultFFmpegPath  = "ffmpeg"
	DefaultFFprobePath = "ffprobe"

	stderrTailLines = 30

	// waitDelay bounds how long Wait blocks on stderr after a kill.
	waitDelay = 5 * time.Second
)

// Executor runs ffmpeg and ffprobe. *Runner is the production
// implementation; tests substitute fakes.
type Executor interface {
	Run(ctx context.Context, id string, cmd *Command, onProgress ProgressFunc) error
	Output(ctx context.Context, args ...string) ([]byte, error)
	Probe(ctx context.Context, path string) (*MediaInfo, error)
}

// Runner executes ffmpeg subprocesses and tracks the ones in flight so they
// can be killed on cancellation or shutdown.
type Runner struct {
	ffmpegPath  string
	ffprobePath string

	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// NewRunner creates a Runner. Empty paths fall back to PATH lookup.
func NewRunner(ffmpegPath, ffprobePath string) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = DefaultFFmpegPath
	}
	if ffprobePath == "" {
		ffprobePath = DefaultFFprobePath
	}
	return &Runner{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		processes:   make(map[string]*exec.Cmd),
	}
}

// FFmpegPath returns the configured ffmpeg executable.
func (r *Runner) FFmpegPath() string { return r.ffmpegPath }

// CheckAvailable verifies both executables can be found.
func (r *Runner) CheckAvailable() error {
	for _, exe := range []string{r.ffmpegPath, r.ffprobePath} {
		if _, err := exec.LookPath(exe); err != nil {
			return renderr.DependencyMissing("ffmpeg.CheckAvailable", exe, err)
		}
	}
	return nil
}

// Version returns the first line of `ffmpeg -version`.
func (r *Runner) Version(ctx context.Context) (string, error) {
	out, err := r.Output(ctx, "-version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// Run executes cmd, parsing -progress output from stderr and handing each
// block to onProgress. id registers the process for Kill and Cleanup; it
// defaults to cmd.Output.
func (r *Runner) Run(ctx context.Context, id string, cmd *Command, onProgress ProgressFunc) error {
	if id == "" {
		id = cmd.Output
	}
	op := "ffmpeg." + cmd.Kind

	proc := exec.CommandContext(ctx, r.ffmpegPath, cmd.Args...)
	proc.WaitDelay = waitDelay
	stderr, err := proc.StderrPipe()
	if err != nil {
		return renderr.Internal(op, "failed to create stderr pipe: %v", err)
	}

	logging.Debug("Running %s", cmd.String())
	start := time.Now()

	if err := proc.Start(); err != nil {
		metrics.FFmpegRunsTotal.WithLabelValues(cmd.Kind, "error").Inc()
		if isNotFound(err) {
			return renderr.DependencyMissing(op, r.ffmpegPath, err)
		}
		return renderr.Transcode(op, -1, "", fmt.Errorf("failed to start ffmpeg: %w", err))
	}

	r.track(id, proc)
	defer r.untrack(id)
	metrics.FFmpegProcessesActive.Inc()
	defer metrics.FFmpegProcessesActive.Dec()

	tail := newTailBuffer(stderrTailLines)
	streamErr := StreamProgress(stderr, onProgress, tail.add)
	if streamErr != nil {
		// Aborted by the callback; kill and drain so Wait can return.
		if proc.Process != nil {
			_ = proc.Process.Kill()
		}
		_, _ = io.Copy(io.Discard, stderr)
	}
	waitErr := proc.Wait()

	metrics.FFmpegRunDuration.WithLabelValues(cmd.Kind).Observe(time.Since(start).Seconds())

	switch {
	case streamErr != nil:
		metrics.FFmpegRunsTotal.WithLabelValues(cmd.Kind, "cancelled").Inc()
		return streamErr
	case ctx.Err() != nil:
		metrics.FFmpegRunsTotal.WithLabelValues(cmd.Kind, "cancelled").Inc()
		return renderr.Cancelled(op, id)
	case waitErr != nil:
		metrics.FFmpegRunsTotal.WithLabelValues(cmd.Kind, "error").Inc()
		return classify(op, cmd, waitErr, tail.String())
	}

	metrics.FFmpegRunsTotal.WithLabelValues(cmd.Kind, "success").Inc()
	return nil
}

// classify turns a failed invocation into a Transcode error, or a Hardware
// error when a hardware encoder was selected and stderr blames the device.
func classify(op string, cmd *Command, err error, stderr string) error {
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	if cmd.Hardware && (IsHardwareFailure(stderr) || missingEncoder(cmd, stderr)) {
		logging.Warn("Hardware encoder %s failed (exit %d)", cmd.VideoEncoder, exitCode)
		return renderr.Hardware(op, cmd.VideoEncoder, exitCode, stderr, err)
	}

	logging.Error("FFmpeg %s failed (exit %d): %s", cmd.Kind, exitCode, lastLine(stderr))
	return renderr.Transcode(op, exitCode, stderr, err)
}

// missingEncoder reports whether this ffmpeg build lacks the command's
// hardware encoder.
func missingEncoder(cmd *Command, stderr string) bool {
	name, ok := UnknownEncoder(stderr)
	return ok && (cmd.VideoEncoder == "" || name == cmd.VideoEncoder)
}

// Output runs ffmpeg with args and returns stdout.
func (r *Runner) Output(ctx context.Context, args ...string) ([]byte, error) {
	return r.output(ctx, r.ffmpegPath, "ffmpeg.Output", args)
}

// Probe runs ffprobe on path.
func (r *Runner) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	start := time.Now()
	out, err := r.output(ctx, r.ffprobePath, "ffmpeg.Probe", []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	})
	metrics.FFprobeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		var re *renderr.Error
		if errors.As(err, &re) && re.Kind == renderr.KindTranscode {
			// ffprobe exits non-zero for unreadable media
			return nil, renderr.MediaFile("ffmpeg.Probe", path, err)
		}
		return nil, err
	}

	info, err := ParseProbeJSON(out)
	if err != nil {
		return nil, renderr.MediaFile("ffmpeg.Probe", path, err)
	}
	if info.Path == "" {
		info.Path = path
	}
	return info, nil
}

func (r *Runner) output(ctx context.Context, exe, op string, args []string) ([]byte, error) {
	proc := exec.CommandContext(ctx, exe, args...)
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	if err := proc.Run(); err != nil {
		if isNotFound(err) {
			return nil, renderr.DependencyMissing(op, exe, err)
		}
		if ctx.Err() != nil {
			return nil, renderr.Cancelled(op, "")
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, renderr.Transcode(op, exitCode, stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

// Kill stops the process registered under id. It reports whether one was
// running.
func (r *Runner) Kill(id string) bool {
	r.processMu.Lock()
	defer r.processMu.Unlock()

	cmd, ok := r.processes[id]
	if !ok || cmd.Process == nil {
		return false
	}
	if err := cmd.Process.Kill(); err != nil {
		logging.Warn("failed to kill ffmpeg process %s: %v", id, err)
	}
	return true
}

// Active returns the ids of running processes in sorted order.
func (r *Runner) Active() []string {
	r.processMu.Lock()
	defer r.processMu.Unlock()

	ids := make([]string, 0, len(r.processes))
	for id := range r.processes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cleanup stops all active ffmpeg processes.
func (r *Runner) Cleanup() {
	r.processMu.Lock()
	defer r.processMu.Unlock()

	for id, cmd := range r.processes {
		if cmd.Process != nil {
			logging.Info("Killing ffmpeg process: %s", id)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill ffmpeg process %s: %v", id, err)
			}
		}
	}
}

func (r *Runner) track(id string, cmd *exec.Cmd) {
	r.processMu.Lock()
	r.processes[id] = cmd
	r.processMu.Unlock()
}

func (r *Runner) untrack(id string) {
	r.processMu.Lock()
	delete(r.processes, id)
	r.processMu.Unlock()
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
