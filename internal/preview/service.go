package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"render-engine/internal/cache"
	"render-engine/internal/ffmpeg"
	"render-engine/internal/filesystem"
	"render-engine/internal/filtergraph"
	"render-engine/internal/logging"
	"render-engine/internal/mediatypes"
	"render-engine/internal/memory"
	"render-engine/internal/metrics"
	"render-engine/internal/renderr"
	"render-engine/internal/workers"
)

// DefaultQuality is the JPEG quality of in-process previews.
const DefaultQuality = 80

// Config wires a Service. Zero values pick defaults.
type Config struct {
	// TempDir holds ffmpeg output while a preview is produced and rendered
	// segments owned by the cache. Defaults to the system temp dir.
	TempDir string
	// Workers bounds concurrent frame extraction in Batch.
	Workers int
	Quality int
	// GPU supplies hardware encoders for segment renders. May be nil.
	GPU filtergraph.EncoderRecommender
	// Monitor pauses in-process image work under memory pressure. May be nil.
	Monitor *memory.Monitor
}

// Service answers preview requests from the cache, falling back to ffmpeg
// and in-process image work. Results are cached only on success.
type Service struct {
	runner ffmpeg.Executor
	cache  *cache.Cache
	cfg    Config
}

// New creates a Service. c may be nil, in which case nothing is cached.
func New(runner ffmpeg.Executor, c *cache.Cache, cfg Config) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = workers.ForIO(8)
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultQuality
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "render-engine-preview")
	}
	logging.Debug("Preview service: %d worker(s), temp dir %s", cfg.Workers, cfg.TempDir)
	return &Service{runner: runner, cache: c, cfg: cfg}
}

func newPreviewImage(data []byte, contentType string, w, h int) *cache.PreviewImage {
	return &cache.PreviewImage{
		Data:        data,
		ContentType: contentType,
		Width:       w,
		Height:      h,
		CreatedAt:   time.Now(),
	}
}

// cachedPreview serves key from the cache or renders it, recording the
// request outcome under kind.
func (s *Service) cachedPreview(kind string, key cache.PreviewKey, render func() (*cache.PreviewImage, error)) (*cache.PreviewImage, error) {
	start := time.Now()
	defer func() { metrics.PreviewDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds()) }()

	if s.cache == nil {
		img, err := render()
		recordOutcome(kind, err)
		return img, err
	}
	rendered := false
	img, err := s.cache.GetOrCreatePreview(key, func() (*cache.PreviewImage, error) {
		rendered = true
		return render()
	})
	if err == nil && !rendered {
		metrics.PreviewRequestsTotal.WithLabelValues(kind, "cache_hit").Inc()
		return img, nil
	}
	recordOutcome(kind, err)
	return img, err
}

func recordOutcome(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.PreviewRequestsTotal.WithLabelValues(kind, status).Inc()
}

// checkSource validates a source path before any subprocess runs.
func checkSource(op, path string) error {
	if path == "" {
		return renderr.Validation(op, "source path is required")
	}
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return renderr.MediaFile(op, path, err)
	}
	if info.IsDir() {
		return renderr.MediaFile(op, path, errors.New("is a directory"))
	}
	return nil
}

// Frame returns the frame of path at ts seconds scaled to res. Still images
// are thumbnailed in-process and ignore ts.
func (s *Service) Frame(ctx context.Context, path string, ts float64, res filtergraph.Resolution) (*cache.PreviewImage, error) {
	const op = "preview.Frame"
	if ts < 0 {
		return nil, renderr.Validation(op, "timestamp must not be negative").AtTimestamp(ts).AtPath(path)
	}
	if err := checkSource(op, path); err != nil {
		return nil, err
	}

	if mediatypes.FileTypeOf(path) == mediatypes.FileTypeImage {
		key := cache.NewPreviewKey(cache.PreviewThumbnail, path, 0, res.Width, res.Height, s.cfg.Quality)
		return s.cachedPreview("frame", key, func() (*cache.PreviewImage, error) {
			return s.stillThumbnail(ctx, path, res)
		})
	}

	key := cache.NewPreviewKey(cache.PreviewFrame, path, ts, res.Width, res.Height, s.cfg.Quality)
	return s.cachedPreview("frame", key, func() (*cache.PreviewImage, error) {
		return s.extractFrame(ctx, path, ts, res)
	})
}

func (s *Service) extractFrame(ctx context.Context, path string, ts float64, res filtergraph.Resolution) (*cache.PreviewImage, error) {
	const op = "preview.Frame"
	out, err := s.tempFile("frame-*.jpg")
	if err != nil {
		return nil, renderr.Internal(op, "%v", err)
	}
	defer removeQuietly(out)

	cmd, err := filtergraph.BuildPreviewCommand(path, ts, out, res)
	if err != nil {
		return nil, err
	}
	if err := s.runner.Run(ctx, "preview-"+uuid.NewString(), cmd, nil); err != nil {
		return nil, annotate(err, path, ts)
	}

	data, err := os.ReadFile(out)
	if err != nil || len(data) == 0 {
		return nil, renderr.MediaFile(op, path, fmt.Errorf("no frame at %.3fs", ts)).AtTimestamp(ts)
	}
	img, err := decodePreview(data, "image/jpeg")
	if err != nil {
		return nil, renderr.MediaFile(op, path, err).AtTimestamp(ts)
	}
	return img, nil
}

func (s *Service) stillThumbnail(ctx context.Context, path string, res filtergraph.Resolution) (*cache.PreviewImage, error) {
	const op = "preview.Frame"
	if err := s.cfg.Monitor.Wait(ctx); err != nil {
		return nil, renderr.Cancelled(op, "")
	}

	w, h := res.Width, res.Height
	if w <= 0 {
		w = h
	}
	if h <= 0 {
		h = w
	}

	var (
		img image.Image
		err error
	)
	if w > 0 && IsVipsAvailable() {
		if img, err = thumbnailWithVips(path, w, h); err != nil {
			logging.Debug("vips failed for %s, falling back to imaging: %v", path, err)
		}
	}
	if img == nil {
		if img, err = loadStill(path); err != nil {
			return nil, renderr.MediaFile(op, path, err)
		}
	}
	if w > 0 {
		img = imaging.Fit(img, w, h, imaging.Lanczos)
	}
	return encodeJPEG(img, s.cfg.Quality)
}

// Batch extracts one frame per timestamp, in the order given. Every
// timestamp is validated before any work starts; the first failure cancels
// the rest.
func (s *Service) Batch(ctx context.Context, path string, timestamps []float64, res filtergraph.Resolution) ([]*cache.PreviewImage, error) {
	const op = "preview.Batch"
	for _, ts := range timestamps {
		if ts < 0 {
			return nil, renderr.Validation(op, "timestamp must not be negative").AtTimestamp(ts).AtPath(path)
		}
	}
	if err := checkSource(op, path); err != nil {
		return nil, err
	}

	out := make([]*cache.PreviewImage, len(timestamps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, ts := range timestamps {
		g.Go(func() error {
			if err := s.cfg.Monitor.Wait(gctx); err != nil {
				return renderr.Cancelled(op, "")
			}
			img, err := s.Frame(gctx, path, ts, res)
			if err != nil {
				return err
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) tempFile(pattern string) (string, error) {
	if err := os.MkdirAll(s.cfg.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create preview temp dir: %w", err)
	}
	f, err := os.CreateTemp(s.cfg.TempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create preview temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("preview: failed to remove %s: %v", path, err)
	}
}

// annotate adds the source path and timestamp to engine errors.
func annotate(err error, path string, ts float64) error {
	var re *renderr.Error
	if !errors.As(err, &re) {
		return err
	}
	re = re.AtPath(path)
	if ts >= 0 {
		re = re.AtTimestamp(ts)
	}
	return re
}
