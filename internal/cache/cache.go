package cache

import (
	"context"
	"errors"
	"os"
	"time"

	"render-engine/internal/ffmpeg"
	"render-engine/internal/logging"
	"render-engine/internal/metrics"
)

// metadataEntrySize is the accounted size of one probe result.
const metadataEntrySize = 512

// Config bounds each namespace. Zero means unbounded.
type Config struct {
	MaxMetadataEntries int
	MaxPreviewEntries  int
	MaxPreviewBytes    int64
	MaxSegmentEntries  int
	MaxSegmentBytes    int64
}

// DefaultConfig returns limits suited to a single render host.
func DefaultConfig() Config {
	return Config{
		MaxMetadataEntries: 10000,
		MaxPreviewEntries:  2000,
		MaxPreviewBytes:    256 << 20,
		MaxSegmentEntries:  500,
		MaxSegmentBytes:    10 << 30,
	}
}

// PreviewImage is an encoded preview held in memory.
type PreviewImage struct {
	Data        []byte    `json:"-"`
	ContentType string    `json:"contentType"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RenderedSegment is a rendered time range on disk. The cache owns the
// file: it is deleted when the entry is evicted, cleared or replaced.
type RenderedSegment struct {
	Path     string  `json:"path"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration"`
}

// NamespaceUsage is the occupancy of one namespace.
type NamespaceUsage struct {
	Entries    int   `json:"entries"`
	Bytes      int64 `json:"bytes"`
	MaxEntries int   `json:"maxEntries"`
	MaxBytes   int64 `json:"maxBytes"`
}

// Usage is the occupancy of every namespace plus totals.
type Usage struct {
	Namespaces   map[Namespace]NamespaceUsage `json:"namespaces"`
	TotalEntries int                          `json:"totalEntries"`
	TotalBytes   int64                        `json:"totalBytes"`
}

// NamespaceStats holds lifetime lookup counters.
type NamespaceStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hitRatio"`
}

// Cache holds probe results, preview images and rendered segments in
// independently locked namespaces. It is safe for concurrent use.
type Cache struct {
	metadata *namespace[*ffmpeg.MediaInfo]
	previews *namespace[*PreviewImage]
	segments *namespace[*RenderedSegment]
}

// New creates a Cache with the given limits.
func New(cfg Config) *Cache {
	segments := newNamespace(NamespaceSegments, cfg.MaxSegmentEntries, cfg.MaxSegmentBytes,
		func(s *RenderedSegment) int64 { return s.Size })
	segments.release = removeSegmentFile
	segments.same = func(a, b *RenderedSegment) bool { return a.Path == b.Path }

	return &Cache{
		metadata: newNamespace(NamespaceMetadata, cfg.MaxMetadataEntries, 0,
			func(*ffmpeg.MediaInfo) int64 { return metadataEntrySize }),
		previews: newNamespace(NamespacePreviews, cfg.MaxPreviewEntries, cfg.MaxPreviewBytes,
			func(p *PreviewImage) int64 { return int64(len(p.Data)) }),
		segments: segments,
	}
}

func removeSegmentFile(s *RenderedSegment) {
	if s == nil || s.Path == "" {
		return
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("cache: failed to remove segment %s: %v", s.Path, err)
	}
}

// GetMetadata returns cached probe results.
func (c *Cache) GetMetadata(key MetadataKey) (*ffmpeg.MediaInfo, bool) {
	return c.metadata.get(key.String())
}

// PutMetadata stores probe results, overwriting any previous entry.
func (c *Cache) PutMetadata(key MetadataKey, info *ffmpeg.MediaInfo) error {
	return c.metadata.put(key.String(), info)
}

// GetOrCreateMetadata returns cached probe results or runs probe once for
// all concurrent callers of the same key.
func (c *Cache) GetOrCreateMetadata(key MetadataKey, probe func() (*ffmpeg.MediaInfo, error)) (*ffmpeg.MediaInfo, error) {
	return c.metadata.getOrCreate(key.String(), probe)
}

// GetPreview returns a cached preview image.
func (c *Cache) GetPreview(key PreviewKey) (*PreviewImage, bool) {
	return c.previews.get(key.String())
}

// PutPreview stores a preview image. Images larger than the namespace
// budget are rejected with ErrTooLarge.
func (c *Cache) PutPreview(key PreviewKey, img *PreviewImage) error {
	return c.previews.put(key.String(), img)
}

// GetOrCreatePreview returns a cached preview or renders it once.
func (c *Cache) GetOrCreatePreview(key PreviewKey, render func() (*PreviewImage, error)) (*PreviewImage, error) {
	return c.previews.getOrCreate(key.String(), render)
}

// GetSegment returns a cached segment whose file still exists. An entry
// whose file has vanished is dropped and reported as a miss.
func (c *Cache) GetSegment(key SegmentKey) (*RenderedSegment, bool) {
	seg, ok := c.segments.get(key.String())
	if !ok {
		return nil, false
	}
	if _, err := os.Stat(seg.Path); err != nil {
		logging.Debug("cache: segment file %s gone, dropping entry", seg.Path)
		c.segments.remove(key.String())
		return nil, false
	}
	return seg, true
}

// PutSegment stores a rendered segment and takes ownership of its file. A
// segment rejected with ErrTooLarge has its file removed.
func (c *Cache) PutSegment(key SegmentKey, seg *RenderedSegment) error {
	return c.segments.put(key.String(), seg)
}

// GetOrCreateSegment returns a cached segment or renders it once. A render
// too large to cache is removed and reported as ErrTooLarge.
func (c *Cache) GetOrCreateSegment(key SegmentKey, render func() (*RenderedSegment, error)) (*RenderedSegment, error) {
	if seg, ok := c.GetSegment(key); ok {
		return seg, nil
	}
	return c.segments.getOrCreate(key.String(), render)
}

// Cleanup drops entries older than maxAge in every namespace and returns
// how many were removed.
func (c *Cache) Cleanup(maxAge time.Duration) int {
	n := c.metadata.cleanup(maxAge) + c.previews.cleanup(maxAge) + c.segments.cleanup(maxAge)
	if n > 0 {
		logging.Info("Cache cleanup removed %d entries older than %v", n, maxAge)
	}
	return n
}

// ClearAll empties every namespace.
func (c *Cache) ClearAll() {
	n := c.metadata.clear() + c.previews.clear() + c.segments.clear()
	logging.Info("Cache cleared (%d entries)", n)
}

// Usage reports per-namespace occupancy and totals.
func (c *Cache) Usage() Usage {
	u := Usage{Namespaces: map[Namespace]NamespaceUsage{
		NamespaceMetadata: c.metadata.usage(),
		NamespacePreviews: c.previews.usage(),
		NamespaceSegments: c.segments.usage(),
	}}
	for _, ns := range u.Namespaces {
		u.TotalEntries += ns.Entries
		u.TotalBytes += ns.Bytes
	}
	return u
}

// Stats reports lifetime hit ratios per namespace.
func (c *Cache) Stats() map[Namespace]NamespaceStats {
	return map[Namespace]NamespaceStats{
		NamespaceMetadata: c.metadata.stats(),
		NamespacePreviews: c.previews.stats(),
		NamespaceSegments: c.segments.stats(),
	}
}

// GetStats implements metrics.StatsProvider.
func (c *Cache) GetStats() metrics.Stats {
	usage := c.Usage()
	stats := c.Stats()
	out := metrics.Stats{Namespaces: make(map[string]metrics.NamespaceStats, len(Namespaces))}
	for _, ns := range Namespaces {
		out.Namespaces[string(ns)] = metrics.NamespaceStats{
			Entries:  usage.Namespaces[ns].Entries,
			Bytes:    usage.Namespaces[ns].Bytes,
			HitRatio: stats[ns].HitRatio,
		}
	}
	return out
}

// RunJanitor removes expired entries every interval until ctx is done.
func (c *Cache) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 || maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup(maxAge)
		case <-ctx.Done():
			return
		}
	}
}
