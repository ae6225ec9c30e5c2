package preview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"render-engine/internal/cache"
	"render-engine/internal/ffmpeg"
	"render-engine/internal/filtergraph"
	"render-engine/internal/logging"
	"render-engine/internal/metrics"
	"render-engine/internal/project"
	"render-engine/internal/renderr"
)

// DefaultWaveformColor is the foreground of waveform images.
var DefaultWaveformColor = project.Color{R: 0x4a, G: 0x90, B: 0xd9}

// Waveform renders the audio of path as a width x height PNG.
func (s *Service) Waveform(ctx context.Context, path string, width, height int, fg *project.Color) (*cache.PreviewImage, error) {
	const op = "preview.Waveform"
	if width <= 0 || height <= 0 {
		return nil, renderr.Validation(op, "waveform size must be positive, got %dx%d", width, height).AtPath(path)
	}
	if err := checkSource(op, path); err != nil {
		return nil, err
	}
	c := DefaultWaveformColor
	if fg != nil {
		c = *fg
	}

	key := cache.NewPreviewKey(cache.PreviewWaveform, path, 0, width, height, 0)
	key.Layout = c.String()
	return s.cachedPreview("waveform", key, func() (*cache.PreviewImage, error) {
		out, err := s.tempFile("waveform-*.png")
		if err != nil {
			return nil, renderr.Internal(op, "%v", err)
		}
		defer removeQuietly(out)

		cmd, err := filtergraph.BuildWaveformCommand(path, out, width, height, c)
		if err != nil {
			return nil, err
		}
		if err := s.runner.Run(ctx, "waveform-"+uuid.NewString(), cmd, nil); err != nil {
			return nil, annotate(err, path, -1)
		}
		data, err := os.ReadFile(out)
		if err != nil || len(data) == 0 {
			return nil, renderr.MediaFile(op, path, fmt.Errorf("waveform produced no image"))
		}
		img, err := decodePreview(data, "image/png")
		if err != nil {
			return nil, renderr.MediaFile(op, path, err)
		}
		return img, nil
	})
}

// RenderSegment renders [start,end) of p through the same compiler as a
// full render. With a cache the segment file is owned by the cache and
// reused for identical requests; without one the caller owns it.
func (s *Service) RenderSegment(ctx context.Context, p *project.Project, start, end float64) (*cache.RenderedSegment, error) {
	const op = "preview.RenderSegment"
	if p == nil {
		return nil, renderr.Validation(op, "project is required")
	}
	if start < 0 {
		return nil, renderr.Validation(op, "segment start must not be negative").AtTimestamp(start)
	}
	// Ranges past the end render the same file, so they share a key.
	if d := p.Timeline.Duration; d > 0 && end > d {
		end = d
	}
	if end <= start {
		return nil, renderr.Validation(op, "segment end %v must be after start %v", end, start).AtTimestamp(end)
	}
	spec, err := filtergraph.SpecFor(p.Export.Format)
	if err != nil {
		return nil, err
	}

	key := cache.NewSegmentKey(p.Hash(), start, end, string(p.Export.Format), p.Export.QualityLevel())
	render := func() (*cache.RenderedSegment, error) {
		return s.renderSegment(ctx, p, start, end, filepath.Join(s.cfg.TempDir, "segments", key.Hash()+spec.Extension))
	}

	begin := time.Now()
	defer func() { metrics.PreviewDuration.WithLabelValues("segment").Observe(time.Since(begin).Seconds()) }()

	if s.cache == nil {
		seg, err := render()
		recordOutcome("segment", err)
		return seg, err
	}
	rendered := false
	seg, err := s.cache.GetOrCreateSegment(key, func() (*cache.RenderedSegment, error) {
		rendered = true
		return render()
	})
	if err == nil && !rendered {
		metrics.PreviewRequestsTotal.WithLabelValues("segment", "cache_hit").Inc()
		return seg, nil
	}
	recordOutcome("segment", err)
	return seg, err
}

func (s *Service) renderSegment(ctx context.Context, p *project.Project, start, end float64, out string) (*cache.RenderedSegment, error) {
	const op = "preview.RenderSegment"
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, renderr.Internal(op, "failed to create segment dir: %v", err)
	}

	media := make(map[string]*ffmpeg.MediaInfo)
	for _, path := range p.FilePaths() {
		if _, done := media[path]; done {
			continue
		}
		info, err := s.probe(ctx, path)
		if err != nil {
			return nil, err
		}
		media[path] = info
	}

	opts := []filtergraph.Option{filtergraph.WithMediaInfo(media)}
	if s.cfg.GPU != nil {
		opts = append(opts, filtergraph.WithRecommender(s.cfg.GPU))
	}
	cmd, err := filtergraph.New(p, opts...).BuildSegmentCommand(ctx, start, end, out)
	if err != nil {
		return nil, err
	}

	logging.Debug("Rendering segment [%v,%v) to %s", start, end, out)
	if err := s.runner.Run(ctx, "segment-"+uuid.NewString(), cmd, nil); err != nil {
		removeQuietly(out)
		return nil, err
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		removeQuietly(out)
		return nil, renderr.MediaFile(op, out, fmt.Errorf("encoder produced no segment"))
	}
	return &cache.RenderedSegment{Path: out, Size: info.Size(), Duration: cmd.Duration}, nil
}

// probe reads stream info through the metadata cache when there is one.
func (s *Service) probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error) {
	run := func() (*ffmpeg.MediaInfo, error) { return s.runner.Probe(ctx, path) }
	if s.cache == nil {
		return run()
	}
	key, err := cache.MetadataKeyFor(path)
	if err != nil {
		return nil, renderr.MediaFile("preview.probe", path, err)
	}
	return s.cache.GetOrCreateMetadata(key, run)
}
