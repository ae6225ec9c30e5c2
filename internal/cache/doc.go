// Package cache keeps expensive intermediate artifacts of the render
// engine in memory: ffprobe results, preview images and rendered segments.
//
// Each namespace has its own lock, LRU order and limits, so a storm of
// preview lookups never blocks metadata reads. Keys are typed:
//
//   - [MetadataKey] is path, modification time and size, so an edited file
//     misses automatically
//   - [PreviewKey] rounds timestamps to whole milliseconds
//   - [SegmentKey] includes the project content hash, so any edit to the
//     project invalidates its segments
//
// Rendered segments live on disk. The cache owns those files and removes
// them when an entry leaves the cache.
//
// GetOrCreate* methods collapse concurrent misses for the same key into a
// single computation with singleflight. A value that cannot be stored
// (for example one larger than the namespace budget) is still returned to
// the caller; the failed store is only logged and counted.
//
// [Cache] implements metrics.StatsProvider for the periodic cache gauges.
package cache
