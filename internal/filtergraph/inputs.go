package filtergraph

import (
	"render-engine/internal/mediatypes"
	"render-engine/internal/project"
)

// InputSource is one file fed to ffmpeg with -i. Index is its position in
// the enabled-track walk and the only way the graph addresses it.
type InputSource struct {
	Index     int
	TrackID   string
	TrackType project.TrackType
	Path      string
	// StartTime is the seek into the source in seconds.
	StartTime float64
	// Duration is the clip's length on the timeline in seconds.
	Duration float64
	Speed    float64
	Still    bool

	clip  project.Clip
	track project.Track
}

// Clip returns the clip this input belongs to.
func (s InputSource) Clip() project.Clip { return s.clip }

// SourceSpan is how many seconds of source material the clip consumes.
func (s InputSource) SourceSpan() float64 {
	return s.Duration * s.Speed
}

// Args returns the per-input arguments ending with -i. Seeks at or before
// zero and empty durations are omitted.
func (s InputSource) Args() []string {
	var args []string
	if s.Still {
		args = append(args, "-loop", "1")
	}
	if s.StartTime > 0 && !s.Still {
		args = append(args, "-ss", formatFloat(s.StartTime))
	}
	if span := s.SourceSpan(); span > 0 {
		args = append(args, "-t", formatFloat(span))
	}
	return append(args, "-i", s.Path)
}

// CollectInputSources walks enabled tracks and their clips in order and
// returns one source per file-backed clip. overrides replaces source paths,
// e.g. with intermediates produced during preprocessing.
func CollectInputSources(p *project.Project, overrides map[string]string) []InputSource {
	var sources []InputSource
	for _, track := range p.Tracks {
		if !track.IsEnabled() {
			continue
		}
		for _, clip := range track.Clips {
			if !clip.Source.IsFile() {
				continue
			}
			sources = append(sources, newInputSource(len(sources), track, clip, overrides))
		}
	}
	return sources
}

func newInputSource(index int, track project.Track, clip project.Clip, overrides map[string]string) InputSource {
	path := clip.Source.Path
	if o, ok := overrides[path]; ok && o != "" {
		path = o
	}

	speed := clip.EffectiveSpeed()
	duration := clip.TimelineDuration()
	if clip.SourceEnd > clip.SourceStart {
		duration = (clip.SourceEnd - clip.SourceStart) / speed
	}
	if duration < 0 {
		duration = 0
	}

	return InputSource{
		Index:     index,
		TrackID:   track.ID,
		TrackType: track.Type,
		Path:      path,
		StartTime: clip.SourceStart,
		Duration:  duration,
		Speed:     speed,
		Still:     mediatypes.FileTypeOf(clip.Source.Path) == mediatypes.FileTypeImage,
		clip:      clip,
		track:     track,
	}
}
