package project

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left empty by a project document.
const (
	DefaultFPS        = 30.0
	DefaultWidth      = 1920
	DefaultHeight     = 1080
	DefaultSampleRate = 48000
	DefaultQuality    = 75
	CurrentVersion    = "1.0"
)

// TrackType is the media type of a track.
type TrackType string

const (
	TrackVideo    TrackType = "video"
	TrackAudio    TrackType = "audio"
	TrackSubtitle TrackType = "subtitle"
)

// SourceKind says where a clip's media comes from.
type SourceKind string

const (
	// SourceFile is a media file on disk.
	SourceFile SourceKind = "file"
	// SourceGenerated is synthesized inside the filter graph (solid color, silence).
	SourceGenerated SourceKind = "generated"
)

// Source references a clip's media.
type Source struct {
	Kind      SourceKind `yaml:"kind" json:"kind"`
	Path      string     `yaml:"path,omitempty" json:"path,omitempty"`
	Generator string     `yaml:"generator,omitempty" json:"generator,omitempty"`
	Color     *Color     `yaml:"color,omitempty" json:"color,omitempty"`
}

// IsFile reports whether the source is file-backed.
func (s Source) IsFile() bool {
	return s.Kind == SourceFile || (s.Kind == "" && s.Path != "")
}

// TemplateBinding applies a template to a clip with parameter overrides.
type TemplateBinding struct {
	ID     string `yaml:"id" json:"id"`
	Params Params `yaml:"params,omitempty" json:"params,omitempty"`
}

// Clip is one placement of media on a track.
type Clip struct {
	ID           string           `yaml:"id" json:"id"`
	Source       Source           `yaml:"source" json:"source"`
	Start        float64          `yaml:"start" json:"start"`
	End          float64          `yaml:"end" json:"end"`
	SourceStart  float64          `yaml:"source_start,omitempty" json:"source_start,omitempty"`
	SourceEnd    float64          `yaml:"source_end,omitempty" json:"source_end,omitempty"`
	Speed        float64          `yaml:"speed,omitempty" json:"speed,omitempty"`
	Volume       *float64         `yaml:"volume,omitempty" json:"volume,omitempty"`
	Effects      []string         `yaml:"effects,omitempty" json:"effects,omitempty"`
	Filters      []string         `yaml:"filters,omitempty" json:"filters,omitempty"`
	TransitionIn string           `yaml:"transition_in,omitempty" json:"transition_in,omitempty"`
	Template     *TemplateBinding `yaml:"template,omitempty" json:"template,omitempty"`
}

// TimelineDuration is the clip's length on the timeline.
func (c Clip) TimelineDuration() float64 {
	return c.End - c.Start
}

// EffectiveSpeed returns the speed multiplier, treating 0 as 1.
func (c Clip) EffectiveSpeed() float64 {
	if c.Speed <= 0 {
		return 1
	}
	return c.Speed
}

// EffectiveVolume returns the clip volume, defaulting to 1.
func (c Clip) EffectiveVolume() float64 {
	if c.Volume == nil {
		return 1
	}
	return *c.Volume
}

// HasTrim reports whether a non-default source trim is set.
func (c Clip) HasTrim() bool {
	return c.SourceStart != 0 || c.SourceEnd != 0
}

// Track is an ordered lane of clips.
type Track struct {
	ID      string    `yaml:"id" json:"id"`
	Name    string    `yaml:"name,omitempty" json:"name,omitempty"`
	Type    TrackType `yaml:"type" json:"type"`
	Clips   []Clip    `yaml:"clips" json:"clips"`
	Enabled *bool     `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Volume  *float64  `yaml:"volume,omitempty" json:"volume,omitempty"`
}

// IsEnabled defaults to true when unset.
func (t Track) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// EffectiveVolume defaults to 1 when unset.
func (t Track) EffectiveVolume() float64 {
	if t.Volume == nil {
		return 1
	}
	return *t.Volume
}

// EffectType names a built-in effect.
type EffectType string

const (
	EffectBlur       EffectType = "blur"
	EffectBrightness EffectType = "brightness"
	EffectContrast   EffectType = "contrast"
	EffectSaturation EffectType = "saturation"
	EffectGrayscale  EffectType = "grayscale"
	EffectSepia      EffectType = "sepia"
	EffectFadeIn     EffectType = "fade_in"
	EffectFadeOut    EffectType = "fade_out"
	EffectRotate     EffectType = "rotate"
	EffectFlipH      EffectType = "flip_horizontal"
	EffectFlipV      EffectType = "flip_vertical"
	EffectScale      EffectType = "scale"
	EffectCrop       EffectType = "crop"
	EffectSharpen    EffectType = "sharpen"
	EffectVignette   EffectType = "vignette"
	EffectNoise      EffectType = "noise"
	EffectCustom     EffectType = "custom"
)

// Effect is a named, parameterized visual effect.
type Effect struct {
	ID       string     `yaml:"id" json:"id"`
	Name     string     `yaml:"name,omitempty" json:"name,omitempty"`
	Type     EffectType `yaml:"type" json:"type"`
	Params   Params     `yaml:"params,omitempty" json:"params,omitempty"`
	Template string     `yaml:"template,omitempty" json:"template,omitempty"`
}

// Filter is a raw ffmpeg filter with parameters, or a command template.
type Filter struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name,omitempty" json:"name,omitempty"`
	FilterName string `yaml:"filter,omitempty" json:"filter,omitempty"`
	Params     Params `yaml:"params,omitempty" json:"params,omitempty"`
	Template   string `yaml:"template,omitempty" json:"template,omitempty"`
}

// Transition joins a clip to the one before it.
type Transition struct {
	ID       string  `yaml:"id" json:"id"`
	Name     string  `yaml:"name,omitempty" json:"name,omitempty"`
	Type     string  `yaml:"type" json:"type"`
	Duration float64 `yaml:"duration" json:"duration"`
	Params   Params  `yaml:"params,omitempty" json:"params,omitempty"`
	Template string  `yaml:"template,omitempty" json:"template,omitempty"`
}

// TemplateKind distinguishes template pools.
type TemplateKind string

const (
	TemplateMultiCam TemplateKind = "multicam"
	TemplateStyle    TemplateKind = "style"
)

// Template is a reusable filter fragment with default parameters.
type Template struct {
	ID     string       `yaml:"id" json:"id"`
	Name   string       `yaml:"name,omitempty" json:"name,omitempty"`
	Kind   TemplateKind `yaml:"kind" json:"kind"`
	Params Params       `yaml:"params,omitempty" json:"params,omitempty"`
	Filter string       `yaml:"filter" json:"filter"`
}

// Subtitle is a text cue burned into the video.
type Subtitle struct {
	Start    float64 `yaml:"start" json:"start"`
	End      float64 `yaml:"end" json:"end"`
	Text     string  `yaml:"text" json:"text"`
	FontSize int     `yaml:"font_size,omitempty" json:"font_size,omitempty"`
	Color    *Color  `yaml:"color,omitempty" json:"color,omitempty"`
	Position string  `yaml:"position,omitempty" json:"position,omitempty"`
}

// Timeline holds global output geometry.
type Timeline struct {
	Duration    float64 `yaml:"duration" json:"duration"`
	FPS         float64 `yaml:"fps" json:"fps"`
	Width       int     `yaml:"width" json:"width"`
	Height      int     `yaml:"height" json:"height"`
	SampleRate  int     `yaml:"sample_rate" json:"sample_rate"`
	AspectRatio string  `yaml:"aspect_ratio,omitempty" json:"aspect_ratio,omitempty"`
}

// OutputFormat is the requested container.
type OutputFormat string

const (
	FormatMP4  OutputFormat = "mp4"
	FormatWebM OutputFormat = "webm"
	FormatMKV  OutputFormat = "mkv"
	FormatMOV  OutputFormat = "mov"
	FormatAVI  OutputFormat = "avi"
	FormatGIF  OutputFormat = "gif"
)

// ExportSettings control the output stage.
type ExportSettings struct {
	Format               OutputFormat `yaml:"format" json:"format"`
	Quality              *int         `yaml:"quality,omitempty" json:"quality,omitempty"`
	Bitrate              int          `yaml:"bitrate,omitempty" json:"bitrate,omitempty"`
	AudioBitrate         int          `yaml:"audio_bitrate,omitempty" json:"audio_bitrate,omitempty"`
	Preset               string       `yaml:"preset,omitempty" json:"preset,omitempty"`
	PixelFormat          string       `yaml:"pixel_format,omitempty" json:"pixel_format,omitempty"`
	BFrames              *int         `yaml:"b_frames,omitempty" json:"b_frames,omitempty"`
	HardwareAcceleration bool         `yaml:"hardware_acceleration,omitempty" json:"hardware_acceleration,omitempty"`
	Width                int          `yaml:"width,omitempty" json:"width,omitempty"`
	Height               int          `yaml:"height,omitempty" json:"height,omitempty"`
	FPS                  float64      `yaml:"fps,omitempty" json:"fps,omitempty"`
}

// QualityLevel returns the requested quality, or DefaultQuality when the
// document leaves it out. An explicit 0 is the lowest quality.
func (e ExportSettings) QualityLevel() int {
	if e.Quality == nil {
		return DefaultQuality
	}
	return *e.Quality
}

// Metadata describes the project.
type Metadata struct {
	Title       string    `yaml:"title,omitempty" json:"title,omitempty"`
	Author      string    `yaml:"author,omitempty" json:"author,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
}

// Project is the versioned editing document handed to a render.
// The engine never mutates it.
type Project struct {
	Version     string         `yaml:"version" json:"version"`
	Metadata    Metadata       `yaml:"metadata" json:"metadata"`
	Timeline    Timeline       `yaml:"timeline" json:"timeline"`
	Tracks      []Track        `yaml:"tracks" json:"tracks"`
	Effects     []Effect       `yaml:"effects,omitempty" json:"effects,omitempty"`
	Filters     []Filter       `yaml:"filters,omitempty" json:"filters,omitempty"`
	Transitions []Transition   `yaml:"transitions,omitempty" json:"transitions,omitempty"`
	Templates   []Template     `yaml:"templates,omitempty" json:"templates,omitempty"`
	Subtitles   []Subtitle     `yaml:"subtitles,omitempty" json:"subtitles,omitempty"`
	Export      ExportSettings `yaml:"export" json:"export"`
}

// Load reads a YAML or JSON project document from disk.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse project file %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML or JSON project document and applies defaults.
func Parse(data []byte) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	p.ApplyDefaults()
	return &p, nil
}

// ApplyDefaults fills zero-valued fields with engine defaults.
func (p *Project) ApplyDefaults() {
	if p.Version == "" {
		p.Version = CurrentVersion
	}
	if p.Timeline.FPS <= 0 {
		p.Timeline.FPS = DefaultFPS
	}
	if p.Timeline.Width <= 0 {
		p.Timeline.Width = DefaultWidth
	}
	if p.Timeline.Height <= 0 {
		p.Timeline.Height = DefaultHeight
	}
	if p.Timeline.SampleRate <= 0 {
		p.Timeline.SampleRate = DefaultSampleRate
	}
	if p.Export.Format == "" {
		p.Export.Format = FormatMP4
	}
	if p.Export.Quality == nil {
		q := DefaultQuality
		p.Export.Quality = &q
	}
	if p.Timeline.Duration <= 0 {
		p.Timeline.Duration = p.ContentDuration()
	}
}

// ContentDuration is the end of the last clip on any enabled track.
func (p *Project) ContentDuration() float64 {
	var end float64
	for _, t := range p.Tracks {
		if !t.IsEnabled() {
			continue
		}
		for _, c := range t.Clips {
			if c.End > end {
				end = c.End
			}
		}
	}
	return end
}

// OutputSize returns the export resolution, falling back to the timeline's.
func (p *Project) OutputSize() (int, int) {
	w, h := p.Timeline.Width, p.Timeline.Height
	if p.Export.Width > 0 && p.Export.Height > 0 {
		w, h = p.Export.Width, p.Export.Height
	}
	return w, h
}

// OutputFPS returns the export frame rate, falling back to the timeline's.
func (p *Project) OutputFPS() float64 {
	if p.Export.FPS > 0 {
		return p.Export.FPS
	}
	return p.Timeline.FPS
}

// Effect looks up an effect by ID.
func (p *Project) Effect(id string) (*Effect, bool) {
	for i := range p.Effects {
		if p.Effects[i].ID == id {
			return &p.Effects[i], true
		}
	}
	return nil, false
}

// Filter looks up a filter by ID.
func (p *Project) Filter(id string) (*Filter, bool) {
	for i := range p.Filters {
		if p.Filters[i].ID == id {
			return &p.Filters[i], true
		}
	}
	return nil, false
}

// Transition looks up a transition by ID.
func (p *Project) Transition(id string) (*Transition, bool) {
	for i := range p.Transitions {
		if p.Transitions[i].ID == id {
			return &p.Transitions[i], true
		}
	}
	return nil, false
}

// Template looks up a template by ID, searching multi-camera templates
// before style templates.
func (p *Project) Template(id string) (*Template, bool) {
	for _, kind := range []TemplateKind{TemplateMultiCam, TemplateStyle} {
		for i := range p.Templates {
			if p.Templates[i].Kind == kind && p.Templates[i].ID == id {
				return &p.Templates[i], true
			}
		}
	}
	return nil, false
}

// Clip finds a clip by ID and returns it with its track.
func (p *Project) Clip(id string) (*Track, *Clip, bool) {
	for ti := range p.Tracks {
		for ci := range p.Tracks[ti].Clips {
			if p.Tracks[ti].Clips[ci].ID == id {
				return &p.Tracks[ti], &p.Tracks[ti].Clips[ci], true
			}
		}
	}
	return nil, nil, false
}

// Hash returns a stable content hash of the document.
func (p *Project) Hash() string {
	data, err := yaml.Marshal(p)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FilePaths returns every file-backed source path on enabled tracks.
func (p *Project) FilePaths() []string {
	var paths []string
	for _, t := range p.Tracks {
		if !t.IsEnabled() {
			continue
		}
		for _, c := range t.Clips {
			if c.Source.IsFile() {
				paths = append(paths, c.Source.Path)
			}
		}
	}
	return paths
}
