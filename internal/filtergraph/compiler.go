package filtergraph

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"render-engine/internal/ffmpeg"
	"render-engine/internal/gpu"
	"render-engine/internal/logging"
	"render-engine/internal/project"
	"render-engine/internal/renderr"
)

const (
	defaultTransitionDuration = 1.0
	defaultSubtitleFontSize   = 48
	subtitleMargin            = 40
)

// Compiler turns a project into ffmpeg commands. It does not run anything.
type Compiler struct {
	project     *project.Project
	recommender EncoderRecommender
	overrides   map[string]string
	media       map[string]*ffmpeg.MediaInfo
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRecommender supplies hardware encoders when the export requests
// hardware acceleration.
func WithRecommender(r EncoderRecommender) Option {
	return func(c *Compiler) { c.recommender = r }
}

// WithInputOverrides substitutes source paths, keyed by the original path.
func WithInputOverrides(m map[string]string) Option {
	return func(c *Compiler) { c.overrides = m }
}

// WithMediaInfo supplies probe results keyed by original source path. Clips
// on video tracks contribute audio only when their probe shows an audio
// stream.
func WithMediaInfo(m map[string]*ffmpeg.MediaInfo) Option {
	return func(c *Compiler) { c.media = m }
}

// New creates a Compiler for p.
func New(p *project.Project, opts ...Option) *Compiler {
	c := &Compiler{project: p}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InputSources returns the inputs in the order they are passed to ffmpeg.
func (c *Compiler) InputSources() []InputSource {
	return CollectInputSources(c.project, c.overrides)
}

// BuildRenderCommand compiles the full timeline into output.
func (c *Compiler) BuildRenderCommand(ctx context.Context, output string) (*ffmpeg.Command, error) {
	return c.build(ctx, "render", output, nil)
}

// BuildSegmentCommand compiles the timeline range [start,end) into output.
// end is clamped to the timeline duration.
func (c *Compiler) BuildSegmentCommand(ctx context.Context, start, end float64, output string) (*ffmpeg.Command, error) {
	const op = "filtergraph.BuildSegmentCommand"
	duration := c.project.Timeline.Duration
	if start < 0 {
		return nil, renderr.Validation(op, "segment start must not be negative").AtTimestamp(start)
	}
	if end > duration {
		end = duration
	}
	if end <= start {
		return nil, renderr.Validation(op, "empty segment [%v,%v) on a %vs timeline", start, end, duration)
	}
	return c.build(ctx, "segment", output, &window{start: start, end: end})
}

// BuildPrerenderCommand renders one clip, with its effects, filters and
// template, on its own timeline starting at zero.
func (c *Compiler) BuildPrerenderCommand(ctx context.Context, clipID, output string) (*ffmpeg.Command, error) {
	track, clip, ok := c.project.Clip(clipID)
	if !ok {
		return nil, renderr.Validation("filtergraph.BuildPrerenderCommand", "clip %q not found", clipID)
	}

	single := *clip
	single.Start = 0
	single.End = clip.TimelineDuration()
	single.TransitionIn = ""

	enabled := true
	t := *track
	t.Enabled = &enabled
	t.Clips = []project.Clip{single}

	sub := *c.project
	sub.Tracks = []project.Track{t}
	sub.Subtitles = nil
	sub.Timeline.Duration = single.End

	inner := &Compiler{project: &sub, recommender: c.recommender, overrides: c.overrides, media: c.media}
	return inner.build(ctx, "prerender", output, nil)
}

type window struct {
	start, end float64
}

// compiled is the graph plus everything needed to turn it into arguments.
type compiled struct {
	spec      FormatSpec
	encoder   encoderChoice
	inputs    []InputSource
	graph     *Graph
	video     string
	audio     string
	subtitles []InputSource
}

// clipStream is a normalized video clip ready to be joined.
type clipStream struct {
	label    string
	clip     project.Clip
	duration float64
}

// checkGraph verifies the graph's labels. Only the mapped video and audio
// labels may be left unconsumed.
func (comp *compiled) checkGraph() error {
	unconsumed, err := comp.graph.Check()
	if err != nil {
		return renderr.Internal("filtergraph.compile", "malformed filter graph: %v", err)
	}
	for _, l := range unconsumed {
		if l != comp.video && l != comp.audio {
			return renderr.Internal("filtergraph.compile", "filter graph label %q is never consumed", l)
		}
	}
	return nil
}

func (c *Compiler) build(ctx context.Context, kind, output string, win *window) (*ffmpeg.Command, error) {
	comp, err := c.compile(ctx)
	if err != nil {
		return nil, err
	}
	if err := comp.checkGraph(); err != nil {
		return nil, err
	}

	p := c.project
	args := globalArgs()
	if comp.encoder.Family == gpu.FamilyVAAPI {
		args = append(args, "-vaapi_device", gpu.DefaultVAAPIDevice)
	}
	for _, in := range comp.inputs {
		args = append(args, in.Args()...)
	}
	if !comp.graph.Empty() {
		args = append(args, "-filter_complex", comp.graph.String())
	}

	args = append(args, "-map", "["+comp.video+"]")
	if comp.audio != "" && comp.spec.AudioCodec != "" {
		args = append(args, "-map", "["+comp.audio+"]")
		args = append(args, audioCodecArgs(comp.spec, p.Export, p.Timeline.SampleRate)...)
	} else {
		args = append(args, "-an")
	}

	if len(comp.subtitles) > 0 {
		if comp.spec.SubtitleCodec == "" {
			logging.Warn("Format %s cannot carry subtitle streams, dropping %d subtitle input(s)", comp.spec.Format, len(comp.subtitles))
		} else {
			for _, s := range comp.subtitles {
				args = append(args, "-map", InputPad(s.Index, "s")+"?")
			}
			args = append(args, "-c:s", comp.spec.SubtitleCodec)
		}
	}

	args = append(args, videoCodecArgs(comp.spec, p.Export, comp.encoder, p.OutputFPS())...)
	args = append(args, comp.spec.Flags...)

	duration := p.Timeline.Duration
	if win != nil {
		duration = win.end - win.start
		args = append(args, "-ss", formatFloat(win.start))
	}
	if duration > 0 {
		args = append(args, "-t", formatFloat(duration))
	}
	args = append(args, "-f", comp.spec.Muxer, output)

	return &ffmpeg.Command{
		Kind:         kind,
		Args:         args,
		Output:       output,
		VideoEncoder: comp.encoder.Name,
		Hardware:     comp.encoder.Hardware,
		Duration:     duration,
	}, nil
}

func (c *Compiler) compile(ctx context.Context) (*compiled, error) {
	p := c.project
	spec, err := SpecFor(p.Export.Format)
	if err != nil {
		return nil, err
	}

	comp := &compiled{
		spec:    spec,
		encoder: chooseEncoder(ctx, spec, p.Export, c.recommender),
		inputs:  c.InputSources(),
		graph:   NewGraph(),
	}
	g := comp.graph

	var videoTracks []string
	var audioStreams []string
	next := 0

	for _, track := range p.Tracks {
		if !track.IsEnabled() {
			continue
		}
		layer := len(videoTracks)
		var streams []clipStream

		for _, clip := range track.Clips {
			var src *InputSource
			if clip.Source.IsFile() {
				if next >= len(comp.inputs) {
					return nil, renderr.Internal("filtergraph.compile", "input index %d out of range", next)
				}
				src = &comp.inputs[next]
				next++
			}

			switch track.Type {
			case project.TrackVideo:
				cs, err := c.videoClip(g, src, clip, layer)
				if err != nil {
					return nil, err
				}
				streams = append(streams, cs)
				if src != nil && c.hasAudio(src) {
					if a, ok := c.audioClip(g, src, clip, track); ok {
						audioStreams = append(audioStreams, a)
					}
				}
			case project.TrackAudio:
				if src == nil {
					continue
				}
				if a, ok := c.audioClip(g, src, clip, track); ok {
					audioStreams = append(audioStreams, a)
				}
			case project.TrackSubtitle:
				if src != nil {
					comp.subtitles = append(comp.subtitles, *src)
				}
			}
		}

		if track.Type == project.TrackVideo && len(streams) > 0 {
			label, err := c.joinTrack(g, streams, layer)
			if err != nil {
				return nil, err
			}
			videoTracks = append(videoTracks, label)
		}
	}

	comp.video = c.composeVideo(g, videoTracks, comp.encoder, spec)
	comp.audio = mixAudio(g, audioStreams)
	return comp, nil
}

// videoClip builds one clip's chain: source, trim, speed, effects, filters,
// template, then normalization to the output geometry.
func (c *Compiler) videoClip(g *Graph, src *InputSource, clip project.Clip, layer int) (clipStream, error) {
	p := c.project
	w, h := p.OutputSize()
	fps := p.OutputFPS()

	var input string
	var filters []Filter
	duration := clip.TimelineDuration()

	if src == nil {
		gen, err := generatorFilter(clip.Source, w, h, fps, duration)
		if err != nil {
			return clipStream{}, err
		}
		filters = append(filters, gen)
	} else {
		input = InputPad(src.Index, "v")
		duration = src.Duration
		if clip.HasTrim() {
			filters = append(filters, F("trim", "duration", formatFloat(src.SourceSpan())))
		}
		filters = append(filters, Positional("setpts", "PTS-STARTPTS"))
		if src.Speed != 1 {
			filters = append(filters, Positional("setpts", formatFloat(1/src.Speed)+"*PTS"))
		}
	}

	for _, id := range clip.Effects {
		e, ok := p.Effect(id)
		if !ok {
			return clipStream{}, renderr.Validation("filtergraph.compile", "clip %q references unknown effect %q", clip.ID, id)
		}
		f, err := effectFilter(e, duration)
		if err != nil {
			return clipStream{}, err
		}
		filters = append(filters, f)
	}

	for _, id := range clip.Filters {
		pf, ok := p.Filter(id)
		if !ok {
			return clipStream{}, renderr.Validation("filtergraph.compile", "clip %q references unknown filter %q", clip.ID, id)
		}
		f, err := poolFilter(pf)
		if err != nil {
			return clipStream{}, err
		}
		filters = append(filters, f)
	}

	if clip.Template != nil {
		f, err := c.templateFilter(clip.Template)
		if err != nil {
			return clipStream{}, err
		}
		filters = append(filters, f)
	}

	filters = append(filters, normalize(w, h, fps, layer > 0)...)
	return clipStream{label: g.Pipe(input, "v", filters...), clip: clip, duration: duration}, nil
}

// normalize fits any clip into the output frame so clips can be joined.
// Overlay layers keep an alpha channel so padding stays transparent.
func normalize(w, h int, fps float64, alpha bool) []Filter {
	pixFmt, padColor := "yuv420p", "black"
	if alpha {
		pixFmt, padColor = "yuva420p", "black@0"
	}
	ws, hs := strconv.Itoa(w), strconv.Itoa(h)
	return []Filter{
		F("scale", "w", ws, "h", hs, "force_original_aspect_ratio", "decrease"),
		F("format", "pix_fmts", pixFmt),
		F("pad", "w", ws, "h", hs, "x", "(ow-iw)/2", "y", "(oh-ih)/2", "color", padColor),
		Positional("setsar", "1"),
		F("fps", "fps", formatFloat(fps)),
	}
}

func generatorFilter(src project.Source, w, h int, fps, duration float64) (Filter, error) {
	size := fmt.Sprintf("%dx%d", w, h)
	rate := formatFloat(fps)
	d := formatFloat(duration)

	switch src.Generator {
	case "", "color", "solid", "black":
		color := "black"
		if src.Color != nil {
			color = src.Color.String()
		}
		return F("color", "c", color, "s", size, "r", rate, "d", d), nil
	case "testsrc", "testsrc2", "smptebars", "smptehdbars", "rgbtestsrc":
		return F(src.Generator, "s", size, "r", rate, "d", d), nil
	}
	return Filter{}, renderr.Validation("filtergraph.compile", "unknown generator %q", src.Generator)
}

func effectFilter(e *project.Effect, clipDuration float64) (Filter, error) {
	params := e.Params.Merge(project.Params{ParamClipDuration: project.Float(clipDuration)})
	if f, ok := EffectFilter(e.Type, params); ok {
		return f, nil
	}
	if e.Template == "" {
		return Filter{}, renderr.Validation("filtergraph.compile", "effect %q of type %q has no built-in mapping and no template", e.ID, e.Type)
	}
	text, err := SubstituteTemplate(e.Template, params)
	if err != nil {
		return Filter{}, err
	}
	return Raw(text), nil
}

func poolFilter(pf *project.Filter) (Filter, error) {
	if pf.FilterName != "" {
		f := Filter{Name: pf.FilterName}
		for _, k := range pf.Params.Keys() {
			f.Args = append(f.Args, Arg{Key: k, Value: pf.Params[k].String()})
		}
		return f, nil
	}
	if pf.Template == "" {
		return Filter{}, renderr.Validation("filtergraph.compile", "filter %q has neither a filter name nor a template", pf.ID)
	}
	text, err := SubstituteTemplate(pf.Template, pf.Params)
	if err != nil {
		return Filter{}, err
	}
	return Raw(text), nil
}

func (c *Compiler) templateFilter(b *project.TemplateBinding) (Filter, error) {
	tpl, ok := c.project.Template(b.ID)
	if !ok {
		return Filter{}, renderr.TemplateNotFound("filtergraph.compile", b.ID)
	}
	text, err := SubstituteTemplate(tpl.Filter, tpl.Params.Merge(b.Params))
	if err != nil {
		return Filter{}, err
	}
	return Raw(text), nil
}

// joinTrack orders a track's clips by start time, pads gaps, and joins
// them with concat or xfade.
func (c *Compiler) joinTrack(g *Graph, streams []clipStream, layer int) (string, error) {
	sort.SliceStable(streams, func(i, j int) bool { return streams[i].clip.Start < streams[j].clip.Start })

	padColor := "black"
	if layer > 0 {
		padColor = "black@0"
	}

	var end float64
	for i := range streams {
		s := &streams[i]
		clipEnd := s.clip.Start + s.duration
		if gap := s.clip.Start - end; gap > 0 && (i == 0 || s.clip.TransitionIn == "") {
			s.label = g.Pipe(s.label, "v", F("tpad", "start_duration", formatFloat(gap), "color", padColor))
			s.duration += gap
		}
		end = math.Max(end, clipEnd)
	}

	if len(streams) == 1 {
		return streams[0].label, nil
	}

	acc, accDur := streams[0].label, streams[0].duration
	for _, s := range streams[1:] {
		if s.clip.TransitionIn == "" {
			out := g.Label("v")
			g.Add([]string{acc, s.label}, []Filter{F("concat", "n", "2", "v", "1", "a", "0")}, out)
			acc, accDur = out, accDur+s.duration
			continue
		}

		tr, ok := c.project.Transition(s.clip.TransitionIn)
		if !ok {
			return "", renderr.Validation("filtergraph.compile", "clip %q references unknown transition %q", s.clip.ID, s.clip.TransitionIn)
		}
		d := tr.Duration
		if d <= 0 {
			d = defaultTransitionDuration
		}
		d = math.Min(d, math.Min(accDur, s.duration))
		offset := accDur - d

		f, err := transitionFilter(tr, d, offset)
		if err != nil {
			return "", err
		}
		out := g.Label("v")
		g.Add([]string{acc, s.label}, []Filter{f}, out)
		acc, accDur = out, accDur+s.duration-d
	}
	return acc, nil
}

var xfadeTypes = map[string]string{
	"fade": "fade", "crossfade": "fade", "dissolve": "dissolve", "cross_dissolve": "dissolve",
	"fadeblack": "fadeblack", "fadewhite": "fadewhite", "wipe": "wipeleft",
	"wipeleft": "wipeleft", "wiperight": "wiperight", "wipeup": "wipeup", "wipedown": "wipedown",
	"slide": "slideleft", "slideleft": "slideleft", "slideright": "slideright",
	"slideup": "slideup", "slidedown": "slidedown", "circleopen": "circleopen",
	"circleclose": "circleclose", "circlecrop": "circlecrop", "radial": "radial",
	"pixelize": "pixelize", "zoomin": "zoomin", "hblur": "hblur",
}

func transitionFilter(tr *project.Transition, duration, offset float64) (Filter, error) {
	if tr.Template != "" {
		params := tr.Params.Merge(project.Params{
			"duration": project.Float(duration),
			"offset":   project.Float(offset),
		})
		text, err := SubstituteTemplate(tr.Template, params)
		if err != nil {
			return Filter{}, err
		}
		return Raw(text), nil
	}
	name, ok := xfadeTypes[tr.Type]
	if !ok {
		return Filter{}, renderr.Validation("filtergraph.compile", "transition %q has unknown type %q and no template", tr.ID, tr.Type)
	}
	return F("xfade", "transition", name, "duration", formatFloat(duration), "offset", formatFloat(offset)), nil
}

// composeVideo overlays video tracks in order, burns in subtitle cues and
// applies format-specific tails. It returns the label to map.
func (c *Compiler) composeVideo(g *Graph, tracks []string, enc encoderChoice, spec FormatSpec) string {
	p := c.project
	w, h := p.OutputSize()

	var base string
	if len(tracks) == 0 {
		base = g.Pipe("", "v", F("color", "c", "black", "s", fmt.Sprintf("%dx%d", w, h),
			"r", formatFloat(p.OutputFPS()), "d", formatFloat(p.Timeline.Duration)))
	} else {
		base = tracks[0]
		for _, t := range tracks[1:] {
			out := g.Label("ov")
			g.Add([]string{base, t}, []Filter{F("overlay", "x", "0", "y", "0", "eof_action", "pass")}, out)
			base = out
		}
	}

	if len(p.Subtitles) > 0 {
		filters := make([]Filter, 0, len(p.Subtitles))
		for _, s := range p.Subtitles {
			filters = append(filters, drawtext(s))
		}
		base = g.Pipe(base, "sub", filters...)
	}

	switch {
	case spec.Format == project.FormatGIF:
		s0, s1 := g.Label("gif"), g.Label("gif")
		g.Add([]string{base}, []Filter{F("split")}, s0, s1)
		pal := g.Pipe(s0, "pal", F("palettegen"))
		out := g.Label("vout")
		g.Add([]string{s1, pal}, []Filter{F("paletteuse")}, out)
		base = out
	case enc.Family == gpu.FamilyVAAPI:
		base = g.Pipe(base, "vout", F("format", "nv12"), F("hwupload"))
	}
	return base
}

func drawtext(s project.Subtitle) Filter {
	size := s.FontSize
	if size <= 0 {
		size = defaultSubtitleFontSize
	}
	color := "#FFFFFF"
	if s.Color != nil {
		color = s.Color.String()
	}
	y := "h-text_h-" + strconv.Itoa(subtitleMargin)
	switch s.Position {
	case "top":
		y = strconv.Itoa(subtitleMargin)
	case "center", "middle":
		y = "(h-text_h)/2"
	}
	return F("drawtext",
		"text", s.Text,
		"fontsize", strconv.Itoa(size),
		"fontcolor", color,
		"borderw", "2",
		"bordercolor", "black",
		"x", "(w-text_w)/2",
		"y", y,
		"enable", fmt.Sprintf("between(t,%s,%s)", formatFloat(s.Start), formatFloat(s.End)))
}

func (c *Compiler) hasAudio(src *InputSource) bool {
	if src.Still {
		return false
	}
	info, ok := c.media[src.clip.Source.Path]
	return ok && info != nil && info.HasAudio
}

// audioClip builds one audio stream. Streams at or below zero volume are
// omitted and ok is false.
func (c *Compiler) audioClip(g *Graph, src *InputSource, clip project.Clip, track project.Track) (string, bool) {
	vol := track.EffectiveVolume() * clip.EffectiveVolume()
	if vol <= 0 || src.Still {
		return "", false
	}

	var filters []Filter
	if clip.HasTrim() {
		filters = append(filters, F("atrim", "duration", formatFloat(src.SourceSpan())))
	}
	filters = append(filters, Positional("asetpts", "PTS-STARTPTS"))
	filters = append(filters, atempoChain(src.Speed)...)
	if vol != 1 {
		filters = append(filters, F("volume", "volume", formatFloat(vol)))
	}
	filters = append(filters, F("aformat",
		"sample_rates", strconv.Itoa(c.project.Timeline.SampleRate),
		"channel_layouts", "stereo"))
	if clip.Start > 0 {
		ms := strconv.FormatInt(int64(math.Round(clip.Start*1000)), 10)
		filters = append(filters, F("adelay", "delays", ms, "all", "1"))
	}
	return g.Pipe(InputPad(src.Index, "a"), "a", filters...), true
}

// atempoChain expresses speed as atempo filters, each within 0.5-2.
func atempoChain(speed float64) []Filter {
	if speed <= 0 || speed == 1 {
		return nil
	}
	var out []Filter
	for speed > 2 {
		out = append(out, Positional("atempo", "2"))
		speed /= 2
	}
	for speed < 0.5 {
		out = append(out, Positional("atempo", "0.5"))
		speed /= 0.5
	}
	if speed != 1 {
		out = append(out, Positional("atempo", formatFloat(speed)))
	}
	return out
}

func mixAudio(g *Graph, streams []string) string {
	switch len(streams) {
	case 0:
		return ""
	case 1:
		return streams[0]
	}
	out := g.Label("aout")
	g.Add(streams, []Filter{F("amix",
		"inputs", strconv.Itoa(len(streams)),
		"duration", "longest",
		"dropout_transition", "0",
		"normalize", "0")}, out)
	return out
}
