package filtergraph

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"render-engine/internal/ffmpeg"
	"render-engine/internal/gpu"
	"render-engine/internal/project"
	"render-engine/internal/renderr"
)

func argsCommand(args []string) *ffmpeg.Command {
	return &ffmpeg.Command{Args: args}
}

func hasArg(cmd *ffmpeg.Command, flag string) bool {
	return slices.Contains(cmd.Args, flag)
}

func argValue(cmd *ffmpeg.Command, flag string) string {
	if i := slices.Index(cmd.Args, flag); i >= 0 && i+1 < len(cmd.Args) {
		return cmd.Args[i+1]
	}
	return ""
}

func lastArgValue(cmd *ffmpeg.Command, flag string) string {
	for i := len(cmd.Args) - 2; i >= 0; i-- {
		if cmd.Args[i] == flag {
			return cmd.Args[i+1]
		}
	}
	return ""
}

func indexFromEnd(cmd *ffmpeg.Command, flag string) int {
	for i := len(cmd.Args) - 1; i >= 0; i-- {
		if cmd.Args[i] == flag {
			return len(cmd.Args) - 1 - i
		}
	}
	return len(cmd.Args)
}

func argIndex(cmd *ffmpeg.Command, flag string) int {
	for i, a := range cmd.Args {
		if a == flag {
			return i
		}
	}
	return -1
}

func fileClip(id, path string, start, end float64) project.Clip {
	return project.Clip{ID: id, Source: project.Source{Kind: project.SourceFile, Path: path}, Start: start, End: end}
}

func newProject(tracks ...project.Track) *project.Project {
	p := &project.Project{Tracks: tracks}
	p.ApplyDefaults()
	return p
}

func videoTrack(id string, clips ...project.Clip) project.Track {
	return project.Track{ID: id, Type: project.TrackVideo, Clips: clips}
}

func audioTrack(id string, clips ...project.Clip) project.Track {
	return project.Track{ID: id, Type: project.TrackAudio, Clips: clips}
}

// compileGraph compiles p and checks that the only unconsumed labels are
// the ones mapped to the output.
func compileGraph(t *testing.T, c *Compiler) *compiled {
	t.Helper()
	comp, err := c.compile(context.Background())
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if err := comp.checkGraph(); err != nil {
		t.Fatalf("graph check failed: %v\n%s", err, comp.graph)
	}
	unconsumed, _ := comp.graph.Check()
	want := map[string]bool{comp.video: true}
	if comp.audio != "" {
		want[comp.audio] = true
	}
	if len(unconsumed) != len(want) {
		t.Fatalf("unconsumed labels = %v, want only %v\n%s", unconsumed, want, comp.graph)
	}
	for _, l := range unconsumed {
		if !want[l] {
			t.Fatalf("label %q left dangling\n%s", l, comp.graph)
		}
	}
	return comp
}

func TestInputSourcesOrder(t *testing.T) {
	off := false
	p := newProject(
		videoTrack("v1",
			fileClip("a", "/m/a.mp4", 0, 5),
			project.Clip{ID: "g", Source: project.Source{Kind: project.SourceGenerated, Generator: "color"}, Start: 5, End: 6},
			fileClip("b", "/m/b.mp4", 6, 9),
		),
		project.Track{ID: "v2", Type: project.TrackVideo, Enabled: &off, Clips: []project.Clip{fileClip("x", "/m/x.mp4", 0, 1)}},
		audioTrack("a1", fileClip("m", "/m/m.mp3", 0, 9)),
	)

	sources := New(p).InputSources()
	var paths []string
	for i, s := range sources {
		if s.Index != i {
			t.Errorf("source %d has index %d", i, s.Index)
		}
		paths = append(paths, s.Path)
	}
	want := []string{"/m/a.mp4", "/m/b.mp4", "/m/m.mp3"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestInputSourceOverrides(t *testing.T) {
	p := newProject(videoTrack("v", fileClip("a", "/m/a.mkv", 0, 5)))
	sources := New(p, WithInputOverrides(map[string]string{"/m/a.mkv": "/tmp/a.mp4"})).InputSources()
	if sources[0].Path != "/tmp/a.mp4" {
		t.Errorf("override not applied: %s", sources[0].Path)
	}
	if sources[0].Clip().Source.Path != "/m/a.mkv" {
		t.Error("clip should keep its original path")
	}
}

func TestInputSourceArgs(t *testing.T) {
	trimmed := fileClip("t", "/m/t.mp4", 0, 10)
	trimmed.SourceStart, trimmed.SourceEnd = 5, 15

	fast := fileClip("f", "/m/f.mp4", 0, 5)
	fast.SourceEnd, fast.Speed = 10, 2

	tests := []struct {
		name     string
		source   InputSource
		want     []string
		duration float64
	}{
		{
			name:     "trim at speed 1",
			source:   newInputSource(0, videoTrack("v"), trimmed, nil),
			want:     []string{"-ss", "5", "-t", "10", "-i", "/m/t.mp4"},
			duration: 10,
		},
		{
			name:     "double speed halves timeline duration",
			source:   newInputSource(0, videoTrack("v"), fast, nil),
			want:     []string{"-t", "10", "-i", "/m/f.mp4"},
			duration: 5,
		},
		{
			name:     "zero duration omits -t",
			source:   newInputSource(0, videoTrack("v"), fileClip("z", "/m/z.mp4", 3, 3), nil),
			want:     []string{"-i", "/m/z.mp4"},
			duration: 0,
		},
		{
			name:     "negative start omits -ss",
			source:   InputSource{Path: "/m/n.mp4", StartTime: -2, Duration: 4, Speed: 1},
			want:     []string{"-t", "4", "-i", "/m/n.mp4"},
			duration: 4,
		},
		{
			name:     "still image loops",
			source:   newInputSource(0, videoTrack("v"), fileClip("s", "/m/s.png", 0, 4), nil),
			want:     []string{"-loop", "1", "-t", "4", "-i", "/m/s.png"},
			duration: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.source.Args(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
			if tt.source.Duration != tt.duration {
				t.Errorf("Duration = %v, want %v", tt.source.Duration, tt.duration)
			}
		})
	}
}

func TestBuildRenderCommand(t *testing.T) {
	vol := 0.5
	music := fileClip("m", "/m/music.mp3", 0, 10)
	p := newProject(
		videoTrack("v", fileClip("a", "/m/a.mp4", 0, 5), fileClip("b", "/m/b.mp4", 5, 10)),
		project.Track{ID: "music", Type: project.TrackAudio, Volume: &vol, Clips: []project.Clip{music}},
	)
	c := New(p, WithMediaInfo(map[string]*ffmpeg.MediaInfo{
		"/m/a.mp4": {HasVideo: true, HasAudio: true},
		"/m/b.mp4": {HasVideo: true},
	}))

	comp := compileGraph(t, c)
	graph := comp.graph.String()
	for _, want := range []string{
		"[0:v]",
		"[0:a]",
		"[1:v]",
		"[2:a]",
		"concat=n=2:v=1:a=0",
		"volume=volume=0.5",
		"amix=inputs=2:duration=longest",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q:\n%s", want, graph)
		}
	}
	if strings.Contains(graph, "[1:a]") {
		t.Error("clip without an audio stream must not be mapped for audio")
	}

	cmd, err := c.BuildRenderCommand(context.Background(), "/out/final.mp4")
	if err != nil {
		t.Fatalf("BuildRenderCommand failed: %v", err)
	}
	if cmd.Kind != "render" || cmd.Output != "/out/final.mp4" || cmd.Duration != 10 {
		t.Errorf("unexpected command metadata: %+v", cmd)
	}
	if got := argValue(cmd, "-c:v"); got != "libx264" {
		t.Errorf("-c:v = %q, want libx264", got)
	}
	if got := argValue(cmd, "-crf"); got != "13" {
		t.Errorf("-crf = %q, want 13 for default quality", got)
	}
	if got := lastArgValue(cmd, "-t"); got != "10" {
		t.Errorf("output -t = %q, want 10", got)
	}
	if got := argValue(cmd, "-c:a"); got != "aac" {
		t.Errorf("-c:a = %q, want aac", got)
	}
	if cmd.Args[len(cmd.Args)-1] != "/out/final.mp4" {
		t.Error("output path must be the last argument")
	}
	if argIndex(cmd, "-progress") > argIndex(cmd, "-i") {
		t.Error("global options must precede inputs")
	}
}

func TestTransitionUsesXfade(t *testing.T) {
	b := fileClip("b", "/m/b.mp4", 5, 10)
	b.TransitionIn = "dissolve"
	p := newProject(videoTrack("v", fileClip("a", "/m/a.mp4", 0, 5), b))
	p.Transitions = []project.Transition{{ID: "dissolve", Type: "fade", Duration: 1}}

	comp := compileGraph(t, New(p))
	if want := "xfade=transition=fade:duration=1:offset=4"; !strings.Contains(comp.graph.String(), want) {
		t.Errorf("graph missing %q:\n%s", want, comp.graph)
	}
}

func TestTransitionTemplate(t *testing.T) {
	b := fileClip("b", "/m/b.mp4", 4, 8)
	b.TransitionIn = "swirl"
	p := newProject(videoTrack("v", fileClip("a", "/m/a.mp4", 0, 4), b))
	p.Transitions = []project.Transition{{ID: "swirl", Type: "custom", Duration: 2, Template: "xfade=transition=radial:duration={duration}:offset={offset}"}}

	comp := compileGraph(t, New(p))
	if want := "xfade=transition=radial:duration=2:offset=2"; !strings.Contains(comp.graph.String(), want) {
		t.Errorf("graph missing %q:\n%s", want, comp.graph)
	}
}

func TestUnknownTransitionType(t *testing.T) {
	b := fileClip("b", "/m/b.mp4", 4, 8)
	b.TransitionIn = "x"
	p := newProject(videoTrack("v", fileClip("a", "/m/a.mp4", 0, 4), b))
	p.Transitions = []project.Transition{{ID: "x", Type: "spin"}}

	if _, err := New(p).BuildRenderCommand(context.Background(), "/o.mp4"); !errors.Is(err, renderr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGapIsPadded(t *testing.T) {
	p := newProject(videoTrack("v", fileClip("a", "/m/a.mp4", 2, 5)))
	comp := compileGraph(t, New(p))
	if want := "tpad=start_duration=2:color=black"; !strings.Contains(comp.graph.String(), want) {
		t.Errorf("graph missing %q:\n%s", want, comp.graph)
	}
}

func TestOverlayTracks(t *testing.T) {
	p := newProject(
		videoTrack("base", fileClip("a", "/m/a.mp4", 0, 5)),
		videoTrack("top", fileClip("logo", "/m/logo.png", 1, 3)),
	)
	comp := compileGraph(t, New(p))
	graph := comp.graph.String()
	for _, want := range []string{"overlay=x=0:y=0:eof_action=pass", "yuva420p", "color=black@0"} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q:\n%s", want, graph)
		}
	}
}

func TestSpeedChangesVideoAndAudio(t *testing.T) {
	v := fileClip("v", "/m/v.mp4", 0, 5)
	v.Speed = 2
	a := fileClip("a", "/m/a.wav", 0, 5)
	a.Speed = 2
	p := newProject(videoTrack("v", v), audioTrack("a", a))

	comp := compileGraph(t, New(p))
	graph := comp.graph.String()
	for _, want := range []string{"setpts=0.5*PTS", "atempo=2"} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q:\n%s", want, graph)
		}
	}
}

func TestAtempoChain(t *testing.T) {
	tests := []struct {
		speed float64
		want  []string
	}{
		{1, nil},
		{1.5, []string{"atempo=1.5"}},
		{4, []string{"atempo=2", "atempo=2"}},
		{3, []string{"atempo=2", "atempo=1.5"}},
		{0.25, []string{"atempo=0.5", "atempo=0.5"}},
	}
	for _, tt := range tests {
		var got []string
		for _, f := range atempoChain(tt.speed) {
			got = append(got, f.String())
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("atempoChain(%v) = %v, want %v", tt.speed, got, tt.want)
		}
	}
}

func TestAudioDelayAndMute(t *testing.T) {
	late := fileClip("late", "/m/late.wav", 2.5, 6)
	muted := fileClip("muted", "/m/muted.wav", 0, 6)
	zero := 0.0
	muted.Volume = &zero

	p := newProject(
		project.Track{ID: "v", Type: project.TrackVideo, Clips: []project.Clip{
			{ID: "bg", Source: project.Source{Kind: project.SourceGenerated}, Start: 0, End: 6},
		}},
		audioTrack("a", late, muted),
	)
	comp := compileGraph(t, New(p))
	graph := comp.graph.String()
	if !strings.Contains(graph, "adelay=delays=2500:all=1") {
		t.Errorf("graph missing delay:\n%s", graph)
	}
	if strings.Contains(graph, "[1:a]") {
		t.Error("zero-volume clip must be omitted")
	}
	if strings.Contains(graph, "amix") {
		t.Error("a single audible stream needs no mix")
	}
}

func TestNoAudioDisablesAudio(t *testing.T) {
	p := newProject(videoTrack("v", fileClip("a", "/m/a.mp4", 0, 5)))
	cmd, err := New(p).BuildRenderCommand(context.Background(), "/o.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if !hasArg(cmd, "-an") || hasArg(cmd, "-c:a") {
		t.Errorf("expected -an without audio codec: %v", cmd.Args)
	}
}

func TestGeneratedSource(t *testing.T) {
	p := newProject(videoTrack("v", project.Clip{
		ID:     "red",
		Source: project.Source{Kind: project.SourceGenerated, Generator: "color", Color: &project.Color{R: 255}},
		End:    3,
	}))
	c := New(p)
	comp := compileGraph(t, c)
	if want := "color=c=#FF0000:s=1920x1080:r=30:d=3"; !strings.Contains(comp.graph.String(), want) {
		t.Errorf("graph missing %q:\n%s", want, comp.graph)
	}

	cmd, err := c.BuildRenderCommand(context.Background(), "/o.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if hasArg(cmd, "-i") {
		t.Error("generated sources must not add inputs")
	}

	p.Tracks[0].Clips[0].Source.Generator = "plasma"
	if _, err := New(p).BuildRenderCommand(context.Background(), "/o.mp4"); !errors.Is(err, renderr.ErrValidation) {
		t.Errorf("unknown generator should fail validation, got %v", err)
	}
}

func TestEffectsAndFilters(t *testing.T) {
	clip := fileClip("a", "/m/a.mp4", 0, 10)
	clip.Effects = []string{"out", "warm"}
	clip.Filters = []string{"sharp", "tpl"}

	p := newProject(videoTrack("v", clip))
	p.Effects = []project.Effect{
		{ID: "out", Type: project.EffectFadeOut, Params: project.Params{"duration": project.Float(2)}},
		{ID: "warm", Type: project.EffectCustom, Template: "hue=h={deg}", Params: project.Params{"deg": project.Float(90)}},
	}
	p.Filters = []project.Filter{
		{ID: "sharp", FilterName: "unsharp", Params: project.Params{"lx": project.Int(5), "la": project.Float(1.5)}},
		{ID: "tpl", Template: "curves=preset={preset}", Params: project.Params{"preset": project.String("vintage")}},
	}

	comp := compileGraph(t, New(p))
	graph := comp.graph.String()
	for _, want := range []string{
		"fade=t=out:st=8:d=2",
		"hue=h=90",
		"unsharp=la=1.5:lx=5",
		"curves=preset=vintage",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q:\n%s", want, graph)
		}
	}
	if strings.Index(graph, "fade=t=out") > strings.Index(graph, "unsharp") {
		t.Error("effects must run before pool filters")
	}
}

func TestEffectWithoutMappingOrTemplate(t *testing.T) {
	clip := fileClip("a", "/m/a.mp4", 0, 10)
	clip.Effects = []string{"mystery"}
	p := newProject(videoTrack("v", clip))
	p.Effects = []project.Effect{{ID: "mystery", Type: project.EffectCustom}}

	if _, err := New(p).BuildRenderCommand(context.Background(), "/o.mp4"); !errors.Is(err, renderr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestTemplateBinding(t *testing.T) {
	tests := []struct {
		name    string
		binding *project.TemplateBinding
		want    string
		wantErr error
	}{
		{"template default", &project.TemplateBinding{ID: "look"}, "eq=saturation=1.2", nil},
		{"binding override", &project.TemplateBinding{ID: "look", Params: project.Params{"sat": project.Float(1.5)}}, "eq=saturation=1.5", nil},
		{"template not found", &project.TemplateBinding{ID: "ghost"}, "", renderr.ErrTemplateNotFound},
		{"unresolved placeholder", &project.TemplateBinding{ID: "gamma"}, "", renderr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip := fileClip("a", "/m/a.mp4", 0, 5)
			clip.Template = tt.binding
			p := newProject(videoTrack("v", clip))
			p.Templates = []project.Template{
				{ID: "look", Kind: project.TemplateStyle, Filter: "eq=saturation={sat}", Params: project.Params{"sat": project.Float(1.2)}},
				{ID: "gamma", Kind: project.TemplateStyle, Filter: "eq=gamma={gamma}"},
			}

			cmd, err := New(p).BuildRenderCommand(context.Background(), "/o.mp4")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildRenderCommand failed: %v", err)
			}
			if graph := argValue(cmd, "-filter_complex"); !strings.Contains(graph, tt.want) {
				t.Errorf("graph missing %q:\n%s", tt.want, graph)
			}
		})
	}
}

func TestSubtitlesBurnedIn(t *testing.T) {
	p := newProject(videoTrack("v", fileClip("a", "/m/a.mp4", 0, 5)))
	p.Subtitles = []project.Subtitle{
		{Start: 1, End: 3, Text: "Hello there"},
		{Start: 3, End: 4, Text: "Top", Position: "top", FontSize: 24},
	}
	comp := compileGraph(t, New(p))
	graph := comp.graph.String()
	for _, want := range []string{
		"drawtext=text='Hello there'",
		"enable='between(t,1,3)'",
		"fontsize=24",
		"y=40",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q:\n%s", want, graph)
		}
	}
}

func TestSubtitleTrackMapped(t *testing.T) {
	p := newProject(
		videoTrack("v", fileClip("a", "/m/a.mp4", 0, 5)),
		project.Track{ID: "s", Type: project.TrackSubtitle, Clips: []project.Clip{fileClip("srt", "/m/a.srt", 0, 5)}},
	)
	cmd, err := New(p).BuildRenderCommand(context.Background(), "/o.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if lastArgValue(cmd, "-map") != "1:s?" {
		t.Errorf("subtitle stream not mapped: %v", cmd.Args)
	}
	if argValue(cmd, "-c:s") != "mov_text" {
		t.Errorf("-c:s = %q, want mov_text", argValue(cmd, "-c:s"))
	}
}

func TestGIFUsesPalette(t *testing.T) {
	p := newProject(videoTrack("v", fileClip("a", "/m/a.mp4", 0, 5)))
	p.Export.Format = project.FormatGIF

	c := New(p)
	comp := compileGraph(t, c)
	graph := comp.graph.String()
	if !strings.Contains(graph, "palettegen") || !strings.Contains(graph, "paletteuse") {
		t.Errorf("gif graph should generate a palette:\n%s", graph)
	}

	cmd, err := c.BuildRenderCommand(context.Background(), "/o.gif")
	if err != nil {
		t.Fatal(err)
	}
	if !hasArg(cmd, "-an") || argValue(cmd, "-f") != "gif" {
		t.Errorf("unexpected gif args: %v", cmd.Args)
	}
}

func TestHardwareEncoding(t *testing.T) {
	p := newProject(videoTrack("v", fileClip("a", "/m/a.mp4", 0, 5)))
	p.Export.HardwareAcceleration = true

	t.Run("vaapi uploads frames", func(t *testing.T) {
		rec := &fakeRecommender{enc: &gpu.Encoder{Name: "h264_vaapi", Family: gpu.FamilyVAAPI, Codec: "h264"}}
		cmd, err := New(p, WithRecommender(rec)).BuildRenderCommand(context.Background(), "/o.mp4")
		if err != nil {
			t.Fatal(err)
		}
		if rec.codec != "h264" {
			t.Errorf("recommender asked for %q, want h264", rec.codec)
		}
		if !cmd.Hardware || cmd.VideoEncoder != "h264_vaapi" {
			t.Errorf("command not marked hardware: %+v", cmd)
		}
		if i := argIndex(cmd, "-vaapi_device"); i < 0 || i > argIndex(cmd, "-i") {
			t.Error("-vaapi_device must precede the inputs")
		}
		if !strings.Contains(argValue(cmd, "-filter_complex"), "format=nv12,hwupload") {
			t.Error("vaapi graph must upload frames")
		}
	})

	t.Run("nvenc", func(t *testing.T) {
		rec := &fakeRecommender{enc: &gpu.Encoder{Name: "h264_nvenc", Family: gpu.FamilyNVENC, Codec: "h264"}}
		cmd, err := New(p, WithRecommender(rec)).BuildRenderCommand(context.Background(), "/o.mp4")
		if err != nil {
			t.Fatal(err)
		}
		if argValue(cmd, "-c:v") != "h264_nvenc" || !hasArg(cmd, "-cq") {
			t.Errorf("unexpected nvenc args: %v", cmd.Args)
		}
		if hasArg(cmd, "-vaapi_device") {
			t.Error("nvenc must not set a vaapi device")
		}
	})

	t.Run("fallback to software", func(t *testing.T) {
		cmd, err := New(p, WithRecommender(&fakeRecommender{})).BuildRenderCommand(context.Background(), "/o.mp4")
		if err != nil {
			t.Fatal(err)
		}
		if cmd.Hardware || argValue(cmd, "-c:v") != "libx264" {
			t.Errorf("expected software fallback: %+v", cmd)
		}
	})
}

func TestBuildSegmentCommand(t *testing.T) {
	p := newProject(videoTrack("v", fileClip("a", "/m/a.mp4", 0, 5), fileClip("b", "/m/b.mp4", 5, 10)))
	c := New(p)

	tests := []struct {
		name       string
		start, end float64
		wantErr    bool
		wantSS     string
		wantT      string
	}{
		{"negative start", -1, 5, true, "", ""},
		{"empty", 5, 5, true, "", ""},
		{"past the end", 12, 20, true, "", ""},
		{"inside", 2, 6, false, "2", "4"},
		{"clamped", 8, 20, false, "8", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := c.BuildSegmentCommand(context.Background(), tt.start, tt.end, "/seg.mp4")
			if tt.wantErr {
				if !errors.Is(err, renderr.ErrValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildSegmentCommand failed: %v", err)
			}
			if cmd.Kind != "segment" {
				t.Errorf("Kind = %q", cmd.Kind)
			}
			if got := lastArgValue(cmd, "-ss"); got != tt.wantSS {
				t.Errorf("output -ss = %q, want %q", got, tt.wantSS)
			}
			if got := lastArgValue(cmd, "-t"); got != tt.wantT {
				t.Errorf("output -t = %q, want %q", got, tt.wantT)
			}
			if argIndex(cmd, "-filter_complex") > len(cmd.Args)-1-indexFromEnd(cmd, "-ss") {
				t.Error("segment window must be applied on the output side")
			}
		})
	}
}

func TestBuildPrerenderCommand(t *testing.T) {
	b := fileClip("b", "/m/b.mp4", 5, 12)
	b.TransitionIn = "fade"
	p := newProject(videoTrack("v", fileClip("a", "/m/a.mp4", 0, 5), b))
	p.Transitions = []project.Transition{{ID: "fade", Type: "fade", Duration: 1}}
	p.Subtitles = []project.Subtitle{{Start: 0, End: 12, Text: "ignored"}}

	cmd, err := New(p).BuildPrerenderCommand(context.Background(), "b", "/pre/b.mp4")
	if err != nil {
		t.Fatalf("BuildPrerenderCommand failed: %v", err)
	}
	if cmd.Kind != "prerender" || cmd.Duration != 7 {
		t.Errorf("unexpected command: kind=%s duration=%v", cmd.Kind, cmd.Duration)
	}
	inputs := 0
	for _, a := range cmd.Args {
		if a == "-i" {
			inputs++
		}
	}
	if inputs != 1 || argValue(cmd, "-i") != "/m/b.mp4" {
		t.Errorf("expected only the clip's input: %v", cmd.Args)
	}
	graph := argValue(cmd, "-filter_complex")
	if strings.Contains(graph, "tpad") || strings.Contains(graph, "xfade") || strings.Contains(graph, "drawtext") {
		t.Errorf("pre-render must start at zero without transitions or subtitles:\n%s", graph)
	}
	if p.Tracks[0].Clips[1].Start != 5 {
		t.Error("pre-render must not modify the project")
	}

	if _, err := New(p).BuildPrerenderCommand(context.Background(), "nope", "/x.mp4"); !errors.Is(err, renderr.ErrValidation) {
		t.Errorf("unknown clip should be a validation error, got %v", err)
	}
}
