package metrics

import (
	"sync"
	"time"

	"render-engine/internal/logging"
)

// NamespaceStats is the point-in-time state of one cache namespace.
type NamespaceStats struct {
	Entries  int
	Bytes    int64
	HitRatio float64
}

// Stats is a snapshot of the engine cache keyed by namespace name
// ("metadata", "previews", "segments").
type Stats struct {
	Namespaces map[string]NamespaceStats
}

// StatsProvider reports cache occupancy. *cache.Cache implements it.
type StatsProvider interface {
	GetStats() Stats
}

// Collector samples cache occupancy into the entries, bytes and hit ratio
// gauges.
type Collector struct {
	source   StatsProvider
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewCollector samples source every interval once started.
func NewCollector(source StatsProvider, interval time.Duration) *Collector {
	return &Collector{source: source, interval: interval, stop: make(chan struct{})}
}

// Start samples immediately and then on every tick until Stop.
func (c *Collector) Start() {
	go func() {
		c.collect()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop ends sampling. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Collector) collect() {
	if c.source == nil {
		return
	}
	stats := c.source.GetStats()
	var entries int
	var bytes int64
	for ns, s := range stats.Namespaces {
		CacheEntries.WithLabelValues(ns).Set(float64(s.Entries))
		CacheBytes.WithLabelValues(ns).Set(float64(s.Bytes))
		CacheHitRatio.WithLabelValues(ns).Set(s.HitRatio)
		entries += s.Entries
		bytes += s.Bytes
	}
	logging.Debug("Cache sampled: %d entries, %d bytes across %d namespaces", entries, bytes, len(stats.Namespaces))
}
