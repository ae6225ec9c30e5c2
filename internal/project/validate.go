package project

import (
	"fmt"
	"sort"
	"strings"

	"render-engine/internal/renderr"
)

// Issue is one validation finding.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Field + ": " + i.Message
}

// Issues is the result of Validate.
type Issues []Issue

// Err returns nil when there are no issues, otherwise a ValidationError
// listing every finding.
func (is Issues) Err(op string) error {
	if len(is) == 0 {
		return nil
	}
	msgs := make([]string, len(is))
	for i, issue := range is {
		msgs[i] = issue.String()
	}
	return renderr.Validation(op, "%d issue(s): %s", len(is), strings.Join(msgs, "; "))
}

var knownFormats = map[OutputFormat]bool{
	FormatMP4: true, FormatWebM: true, FormatMKV: true,
	FormatMOV: true, FormatAVI: true, FormatGIF: true,
}

// Validate checks structural invariants: non-overlapping clips per track,
// volumes within [0,1], resolvable pool references, and sane timeline and
// export settings. It never modifies p.
func (p *Project) Validate() Issues {
	var issues Issues
	add := func(field, format string, args ...interface{}) {
		issues = append(issues, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if p.Timeline.FPS <= 0 {
		add("timeline.fps", "must be positive, got %v", p.Timeline.FPS)
	}
	if p.Timeline.Width <= 0 || p.Timeline.Height <= 0 {
		add("timeline", "resolution must be positive, got %dx%d", p.Timeline.Width, p.Timeline.Height)
	}
	if p.Timeline.SampleRate <= 0 {
		add("timeline.sample_rate", "must be positive, got %d", p.Timeline.SampleRate)
	}

	if !knownFormats[p.Export.Format] {
		add("export.format", "unsupported format %q", p.Export.Format)
	}
	if q := p.Export.QualityLevel(); q < 0 || q > 100 {
		add("export.quality", "must be within [0,100], got %d", q)
	}
	if p.Export.Bitrate < 0 {
		add("export.bitrate", "must not be negative, got %d", p.Export.Bitrate)
	}

	for i, t := range p.Templates {
		switch t.Kind {
		case TemplateMultiCam, TemplateStyle:
		default:
			add(fmt.Sprintf("templates[%d].kind", i), "unknown template kind %q", t.Kind)
		}
	}

	for ti, track := range p.Tracks {
		tfield := fmt.Sprintf("tracks[%d]", ti)
		switch track.Type {
		case TrackVideo, TrackAudio, TrackSubtitle:
		default:
			add(tfield+".type", "unknown track type %q", track.Type)
		}
		if v := track.EffectiveVolume(); !inUnitRange(v) {
			add(tfield+".volume", "must be within [0,1], got %v", v)
		}

		for ci, clip := range track.Clips {
			cfield := fmt.Sprintf("%s.clips[%d]", tfield, ci)
			if clip.Start < 0 {
				add(cfield+".start", "must not be negative, got %v", clip.Start)
			}
			if clip.End < clip.Start {
				add(cfield, "end %v before start %v", clip.End, clip.Start)
			}
			if clip.Speed < 0 {
				add(cfield+".speed", "must not be negative, got %v", clip.Speed)
			}
			if clip.HasTrim() && clip.SourceEnd <= clip.SourceStart {
				add(cfield, "source_end %v must be after source_start %v", clip.SourceEnd, clip.SourceStart)
			}
			if v := clip.EffectiveVolume(); !inUnitRange(v) {
				add(cfield+".volume", "must be within [0,1], got %v", v)
			}
			switch {
			case clip.Source.IsFile():
				if clip.Source.Path == "" {
					add(cfield+".source.path", "file source without path")
				}
			case clip.Source.Kind == SourceGenerated:
			default:
				add(cfield+".source.kind", "unknown source kind %q", clip.Source.Kind)
			}
			for _, id := range clip.Effects {
				if _, ok := p.Effect(id); !ok {
					add(cfield+".effects", "unknown effect %q", id)
				}
			}
			for _, id := range clip.Filters {
				if _, ok := p.Filter(id); !ok {
					add(cfield+".filters", "unknown filter %q", id)
				}
			}
			if clip.TransitionIn != "" {
				if _, ok := p.Transition(clip.TransitionIn); !ok {
					add(cfield+".transition_in", "unknown transition %q", clip.TransitionIn)
				}
			}
			if clip.Template != nil {
				if _, ok := p.Template(clip.Template.ID); !ok {
					add(cfield+".template", "unknown template %q", clip.Template.ID)
				}
			}
		}

		for _, pair := range Overlaps(track.Clips) {
			add(tfield, "clips %q and %q overlap", pair[0], pair[1])
		}
	}

	for si, s := range p.Subtitles {
		if s.End < s.Start || s.Start < 0 {
			add(fmt.Sprintf("subtitles[%d]", si), "invalid interval [%v,%v]", s.Start, s.End)
		}
	}

	return issues
}

// inUnitRange reports whether v is within [0,1]. NaN is not.
func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

// Overlaps returns the ID pairs of clips whose [start,end) intervals
// intersect. Touching clips do not overlap.
func Overlaps(clips []Clip) [][2]string {
	sorted := make([]Clip, len(clips))
	copy(sorted, clips)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var out [][2]string
	for i := 1; i < len(sorted); i++ {
		// compare against every earlier clip still running, not just the previous one
		for j := i - 1; j >= 0; j-- {
			if sorted[j].End > sorted[i].Start {
				out = append(out, [2]string{sorted[j].ID, sorted[i].ID})
			}
		}
	}
	return out
}
