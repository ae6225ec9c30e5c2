package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"render-engine/internal/ffmpeg"
	"render-engine/internal/project"
	"render-engine/internal/renderr"
)

// fakeRunner stands in for ffmpeg. Run replays progress and writes a small
// file to the command's output.
type fakeRunner struct {
	mu       sync.Mutex
	commands []*ffmpeg.Command
	probes   int

	media    *ffmpeg.MediaInfo
	progress []ffmpeg.Progress
	failKind string
	failErr  error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		media: &ffmpeg.MediaInfo{
			HasVideo:   true,
			VideoCodec: "h264",
			HasAudio:   true,
			AudioCodec: "aac",
			Duration:   10,
		},
	}
}

func (f *fakeRunner) Run(ctx context.Context, id string, cmd *ffmpeg.Command, onProgress ffmpeg.ProgressFunc) error {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if f.failErr != nil && cmd.Kind == f.failKind {
		return f.failErr
	}
	if onProgress != nil {
		for _, p := range f.progress {
			if err := onProgress(p); err != nil {
				return err
			}
		}
	}
	if ctx.Err() != nil {
		return renderr.Cancelled("fake.Run", id)
	}
	return os.WriteFile(cmd.Output, []byte("rendered"), 0o644)
}

func (f *fakeRunner) Output(context.Context, ...string) ([]byte, error) {
	return nil, nil
}

func (f *fakeRunner) Probe(_ context.Context, path string) (*ffmpeg.MediaInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	info := *f.media
	info.Path = path
	return &info, nil
}

func (f *fakeRunner) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.commands))
	for i, c := range f.commands {
		out[i] = c.Kind
	}
	return out
}

func (f *fakeRunner) command(kind string) *ffmpeg.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commands {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// mediaFile creates a placeholder source file.
func mediaFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func singleClipProject(path string) *project.Project {
	p := &project.Project{
		Tracks: []project.Track{{
			ID:   "v1",
			Type: project.TrackVideo,
			Clips: []project.Clip{{
				ID:     "c1",
				Source: project.Source{Kind: project.SourceFile, Path: path},
				Start:  0,
				End:    4,
			}},
		}},
	}
	p.ApplyDefaults()
	return p
}

// assertEmptyDir fails if dir holds any entry. A missing dir counts as empty.
func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected %s to be empty, found %d entries", dir, len(entries))
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func noop(context.Context, *Context) error { return nil }

func TestExecuteRunsStagesInOrder(t *testing.T) {
	var order []string
	stage := func(name string) Stage {
		return NewStage(name, time.Second, func(context.Context, *Context) error {
			order = append(order, name)
			return nil
		})
	}

	var log eventLog
	pc := NewContext("job-1", &project.Project{}, "out.mp4", t.TempDir())
	p := New(pc, []Stage{stage("a"), stage("b")}, log.record)

	if err := p.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Errorf("order = %v", order)
	}
	if p.State() != StateCompleted {
		t.Errorf("state = %s, want completed", p.State())
	}

	want := []EventType{EventStageStarted, EventStageCompleted, EventStageStarted, EventStageCompleted, EventCompleted}
	if got := log.types(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	for _, e := range log.events {
		if e.JobID != "job-1" {
			t.Errorf("event %s has job id %q", e.Type, e.JobID)
		}
	}

	stats := pc.Statistics()
	if len(stats.Stages) != 2 || stats.Stages[0].Name != "a" || stats.Stages[1].End.IsZero() {
		t.Errorf("stage timings = %+v", stats.Stages)
	}
	if stats.EndTime.Before(stats.StartTime) {
		t.Error("end time before start time")
	}
}

func TestExecuteTwiceFails(t *testing.T) {
	p := New(NewContext("j", &project.Project{}, "o", t.TempDir()), []Stage{NewStage("a", 0, noop)}, nil)
	if err := p.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.Execute(context.Background()); !errors.Is(err, renderr.ErrValidation) {
		t.Errorf("second Execute = %v, want ValidationError", err)
	}
}

func TestStageErrorStopsPipeline(t *testing.T) {
	ran := false
	root := t.TempDir()
	pc := NewContext("job-2", &project.Project{}, "out.mp4", root)

	stages := []Stage{
		NewStage("make", 0, func(_ context.Context, pc *Context) error {
			_, err := pc.EnsureTempDir()
			return err
		}),
		NewStage("fail", 0, func(context.Context, *Context) error {
			return renderr.MediaFile("test", "/missing.mp4", os.ErrNotExist)
		}),
		NewStage("after", 0, func(context.Context, *Context) error {
			ran = true
			return nil
		}),
	}

	var log eventLog
	p := New(pc, stages, log.record)
	err := p.Execute(context.Background())

	if !errors.Is(err, renderr.ErrMediaFile) {
		t.Fatalf("err = %v, want MediaFileError", err)
	}
	var re *renderr.Error
	if !errors.As(err, &re) || re.JobID != "job-2" {
		t.Errorf("error should carry the job id: %v", err)
	}
	if ran {
		t.Error("stage after the failure ran")
	}
	if p.State() != StateFailed {
		t.Errorf("state = %s, want failed", p.State())
	}
	if pc.TempDir() != "" {
		t.Errorf("temp dir %s still recorded", pc.TempDir())
	}
	assertEmptyDir(t, root)

	stats := pc.Statistics()
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if last := stats.Stages[len(stats.Stages)-1]; last.Name != "fail" || last.Error == "" {
		t.Errorf("failing stage timing = %+v", last)
	}
	types := log.types()
	if types[len(types)-1] != EventFailed {
		t.Errorf("last event = %s, want failed", types[len(types)-1])
	}
}

func TestForeignStageErrorIsInternal(t *testing.T) {
	boom := errors.New("boom")
	p := New(NewContext("j", &project.Project{}, "o", t.TempDir()),
		[]Stage{NewStage("custom", 0, func(context.Context, *Context) error { return boom })}, nil)

	err := p.Execute(context.Background())
	if !errors.Is(err, renderr.ErrInternal) {
		t.Errorf("err = %v, want InternalError", err)
	}
	if !errors.Is(err, boom) {
		t.Error("original error should stay in the chain")
	}
}

func TestPanicIsRecovered(t *testing.T) {
	root := t.TempDir()
	pc := NewContext("job-3", &project.Project{}, "out.mp4", root)
	p := New(pc, []Stage{
		NewStage("explode", 0, func(_ context.Context, pc *Context) error {
			if _, err := pc.EnsureTempDir(); err != nil {
				return err
			}
			panic("stage bug")
		}),
	}, nil)

	err := p.Execute(context.Background())
	if !errors.Is(err, renderr.ErrInternal) {
		t.Fatalf("err = %v, want InternalError", err)
	}
	var re *renderr.Error
	if !errors.As(err, &re) || re.JobID != "job-3" {
		t.Errorf("panic error should carry the job id: %v", err)
	}
	if p.State() != StateFailed {
		t.Errorf("state = %s, want failed", p.State())
	}
	assertEmptyDir(t, root)
}

func TestCancelBeforeFirstStage(t *testing.T) {
	ran := false
	root := t.TempDir()
	pc := NewContext("job-4", &project.Project{}, "out.mp4", root)
	p := New(pc, []Stage{
		NewStage("first", 0, func(_ context.Context, pc *Context) error {
			ran = true
			_, err := pc.EnsureTempDir()
			return err
		}),
	}, nil)

	pc.Cancel()
	err := p.Execute(context.Background())

	if !errors.Is(err, renderr.ErrCancelled) {
		t.Fatalf("err = %v, want CancelledError", err)
	}
	if ran {
		t.Error("stage ran after cancellation")
	}
	if p.State() != StateCancelled {
		t.Errorf("state = %s, want cancelled", p.State())
	}
	assertEmptyDir(t, root)
}

func TestCancelBetweenStages(t *testing.T) {
	ran := false
	pc := NewContext("job-5", &project.Project{}, "out.mp4", t.TempDir())
	p := New(pc, []Stage{
		NewStage("first", 0, func(_ context.Context, pc *Context) error {
			pc.Cancel()
			return nil
		}),
		NewStage("second", 0, func(context.Context, *Context) error {
			ran = true
			return nil
		}),
	}, nil)

	if err := p.Execute(context.Background()); !errors.Is(err, renderr.ErrCancelled) {
		t.Errorf("err = %v, want CancelledError", err)
	}
	if ran {
		t.Error("second stage ran after cancellation")
	}
}

func TestBudgetOverrunIsOnlyAWarning(t *testing.T) {
	pc := NewContext("j", &project.Project{}, "o", t.TempDir())
	p := New(pc, []Stage{
		NewStage("slow", time.Nanosecond, func(context.Context, *Context) error {
			time.Sleep(2 * time.Millisecond)
			return nil
		}),
	}, nil)

	if err := p.Execute(context.Background()); err != nil {
		t.Fatalf("overrun should not fail the job: %v", err)
	}
	if w := pc.Statistics().Warnings; w != 1 {
		t.Errorf("Warnings = %d, want 1", w)
	}
}

func TestInsertAndRemoveStage(t *testing.T) {
	p := New(NewContext("j", &project.Project{}, "o", t.TempDir()),
		[]Stage{NewStage("a", 0, noop), NewStage("c", 0, noop)}, nil)

	if err := p.InsertStage(NewStage("b", 0, noop), 1); err != nil {
		t.Fatal(err)
	}
	if got := p.Stages(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("stages = %v", got)
	}

	tests := []struct {
		name string
		err  error
	}{
		{"duplicate", p.InsertStage(NewStage("a", 0, noop), 0)},
		{"out of range", p.InsertStage(NewStage("d", 0, noop), 9)},
		{"negative", p.InsertStage(NewStage("d", 0, noop), -1)},
		{"remove unknown", p.RemoveStage("zzz")},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, renderr.ErrValidation) {
			t.Errorf("%s: err = %v, want ValidationError", tt.name, tt.err)
		}
	}

	if err := p.RemoveStage("a"); err != nil {
		t.Fatal(err)
	}
	if got := p.Stages(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("stages = %v", got)
	}

	if err := p.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.RemoveStage("b"); !errors.Is(err, renderr.ErrValidation) {
		t.Errorf("changing a finished pipeline should fail, got %v", err)
	}
}
