package cache

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"render-engine/internal/filesystem"
)

// Namespace names one of the independent cache partitions.
type Namespace string

const (
	NamespaceMetadata Namespace = "metadata"
	NamespacePreviews Namespace = "previews"
	NamespaceSegments Namespace = "segments"
)

// Namespaces lists every namespace in reporting order.
var Namespaces = []Namespace{NamespaceMetadata, NamespacePreviews, NamespaceSegments}

// MetadataKey identifies probe results for one version of a file. A change
// to the file's modification time or size yields a new key.
type MetadataKey struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// MetadataKeyFor stats path and builds its key.
func MetadataKeyFor(path string) (MetadataKey, error) {
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return MetadataKey{}, err
	}
	return MetadataKeyFromInfo(path, info), nil
}

// MetadataKeyFromInfo builds a key from an existing stat result.
func MetadataKeyFromInfo(path string, info os.FileInfo) MetadataKey {
	return MetadataKey{Path: path, ModTime: info.ModTime(), Size: info.Size()}
}

func (k MetadataKey) String() string {
	return joinKey(k.Path, strconv.FormatInt(k.ModTime.UnixNano(), 10), strconv.FormatInt(k.Size, 10))
}

// PreviewKind distinguishes preview artifacts of the same source.
type PreviewKind string

const (
	PreviewFrame      PreviewKind = "frame"
	PreviewStoryboard PreviewKind = "storyboard"
	PreviewWaveform   PreviewKind = "waveform"
	PreviewThumbnail  PreviewKind = "thumbnail"
)

// PreviewKey identifies one rendered preview image. Timestamps are kept in
// whole milliseconds so float noise maps to the same entry.
type PreviewKey struct {
	Kind        PreviewKind
	Path        string
	TimestampMs int64
	Width       int
	Height      int
	Quality     int
	// Layout distinguishes composite previews of the same size, such as
	// storyboards with different tile counts. Empty for single frames.
	Layout string
}

// NewPreviewKey builds a key, rounding timestamp seconds to milliseconds.
func NewPreviewKey(kind PreviewKind, path string, timestamp float64, width, height, quality int) PreviewKey {
	return PreviewKey{
		Kind:        kind,
		Path:        path,
		TimestampMs: secondsToMs(timestamp),
		Width:       width,
		Height:      height,
		Quality:     quality,
	}
}

// NewStoryboardKey builds the key of a count-frame storyboard laid out in
// columns, covering duration seconds of path.
func NewStoryboardKey(path string, duration float64, count, columns, tileWidth, tileHeight, quality int) PreviewKey {
	k := NewPreviewKey(PreviewStoryboard, path, duration, tileWidth, tileHeight, quality)
	k.Layout = strconv.Itoa(count) + "/" + strconv.Itoa(columns)
	return k
}

func (k PreviewKey) String() string {
	return joinKey(string(k.Kind), k.Path,
		strconv.FormatInt(k.TimestampMs, 10),
		strconv.Itoa(k.Width)+"x"+strconv.Itoa(k.Height),
		strconv.Itoa(k.Quality),
		k.Layout)
}

// Hash returns a short stable digest usable as a file name.
func (k PreviewKey) Hash() string {
	return strconv.FormatUint(xxhash.Sum64String(k.String()), 16)
}

// SegmentKey identifies a rendered time range of one project version.
type SegmentKey struct {
	ProjectHash string
	StartMs     int64
	EndMs       int64
	Format      string
	Quality     int
}

// NewSegmentKey builds a key, rounding the range to milliseconds.
func NewSegmentKey(projectHash string, start, end float64, format string, quality int) SegmentKey {
	return SegmentKey{
		ProjectHash: projectHash,
		StartMs:     secondsToMs(start),
		EndMs:       secondsToMs(end),
		Format:      format,
		Quality:     quality,
	}
}

func (k SegmentKey) String() string {
	return joinKey(k.ProjectHash,
		strconv.FormatInt(k.StartMs, 10),
		strconv.FormatInt(k.EndMs, 10),
		k.Format,
		strconv.Itoa(k.Quality))
}

// Hash returns a short stable digest usable as a file name.
func (k SegmentKey) Hash() string {
	return strconv.FormatUint(xxhash.Sum64String(k.String()), 16)
}

func secondsToMs(s float64) int64 {
	return int64(math.Round(s * 1000))
}

func joinKey(parts ...string) string {
	return strings.Join(parts, "|")
}
