package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"render-engine/internal/cache"
	"render-engine/internal/filtergraph"
	"render-engine/internal/logging"
	"render-engine/internal/metrics"
	"render-engine/internal/renderr"
)

// Storyboard defaults.
const (
	DefaultStoryboardFrames  = 9
	DefaultStoryboardColumns = 3
	DefaultTileWidth         = 160
	DefaultTileHeight        = 90
)

// StoryboardOptions shape a storyboard. Zero values pick defaults; a zero
// Duration is probed from the source.
type StoryboardOptions struct {
	Frames   int
	Columns  int
	Tile     filtergraph.Resolution
	Duration float64
}

func (o StoryboardOptions) withDefaults() StoryboardOptions {
	if o.Frames <= 0 {
		o.Frames = DefaultStoryboardFrames
	}
	if o.Columns <= 0 {
		o.Columns = DefaultStoryboardColumns
	}
	o.Columns = min(o.Columns, o.Frames)
	if o.Tile.Width <= 0 {
		o.Tile.Width = DefaultTileWidth
	}
	if o.Tile.Height <= 0 {
		o.Tile.Height = DefaultTileHeight
	}
	return o
}

// storyboardTimestamps samples the middle of n equal slices of duration.
func storyboardTimestamps(duration float64, n int) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = duration * (float64(i) + 0.5) / float64(n)
	}
	return ts
}

// Storyboard returns evenly spaced frames of path tiled into a grid. When
// the grid cannot be produced it returns a single representative thumbnail
// instead, which is not cached as a storyboard.
func (s *Service) Storyboard(ctx context.Context, path string, opts StoryboardOptions) (*cache.PreviewImage, error) {
	const op = "preview.Storyboard"
	if err := checkSource(op, path); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	if opts.Duration <= 0 {
		info, err := s.probe(ctx, path)
		if err != nil {
			return nil, err
		}
		opts.Duration = info.Duration
	}
	if opts.Duration <= 0 {
		return nil, renderr.Validation(op, "source has no duration").AtPath(path)
	}

	timestamps := storyboardTimestamps(opts.Duration, opts.Frames)
	key := cache.NewStoryboardKey(path, opts.Duration, opts.Frames, opts.Columns, opts.Tile.Width, opts.Tile.Height, s.cfg.Quality)

	img, err := s.cachedPreview("storyboard", key, func() (*cache.PreviewImage, error) {
		return s.composeStoryboard(ctx, path, timestamps, opts)
	})
	if err == nil {
		return img, nil
	}
	if errors.Is(err, renderr.ErrCancelled) || ctx.Err() != nil {
		return nil, err
	}

	logging.Warn("Storyboard for %s failed, using a single thumbnail: %v", path, err)
	metrics.PreviewStoryboardFallbacks.Inc()
	thumb, ferr := s.Frame(ctx, path, timestamps[len(timestamps)/2], opts.Tile)
	if ferr != nil {
		return nil, err
	}
	return thumb, nil
}

func (s *Service) composeStoryboard(ctx context.Context, path string, timestamps []float64, opts StoryboardOptions) (*cache.PreviewImage, error) {
	frames, err := s.Batch(ctx, path, timestamps, opts.Tile)
	if err != nil {
		return nil, err
	}
	if err := s.cfg.Monitor.Wait(ctx); err != nil {
		return nil, renderr.Cancelled("preview.Storyboard", "")
	}

	tw, th := opts.Tile.Width, opts.Tile.Height
	rows := (len(frames) + opts.Columns - 1) / opts.Columns
	grid := imaging.New(opts.Columns*tw, rows*th, color.Black)

	for i, f := range frames {
		tile, err := imaging.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		tile = imaging.Fit(tile, tw, th, imaging.Lanczos)
		b := tile.Bounds()
		x := (i%opts.Columns)*tw + (tw-b.Dx())/2
		y := (i/opts.Columns)*th + (th-b.Dy())/2
		grid = imaging.Paste(grid, tile, image.Pt(x, y))
	}
	return encodeJPEG(grid, s.cfg.Quality)
}
