package cache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"render-engine/internal/logging"
	"render-engine/internal/metrics"
)

// ErrTooLarge is returned by Put for values larger than the namespace's
// byte budget. Callers treat it as non-fatal.
var ErrTooLarge = errors.New("value exceeds cache namespace capacity")

// Eviction reasons, used as metric labels.
const (
	reasonSize  = "size"
	reasonCount = "count"
	reasonAge   = "age"
	reasonClear = "clear"
)

type entry[V any] struct {
	key      string
	value    V
	size     int64
	created  time.Time
	accessed time.Time
}

// namespace is an LRU map bounded by entry count and accounted bytes.
// Zero limits mean unbounded.
type namespace[V any] struct {
	name       Namespace
	maxEntries int
	maxBytes   int64
	sizeOf     func(V) int64
	// release is called outside the lock for every value that leaves the
	// namespace, including values replaced by a Put with a different one
	// and values rejected as too large. A namespace with release owns what
	// it is given.
	release func(V)
	same    func(a, b V) bool
	now     func() time.Time

	mu    sync.RWMutex
	items map[string]*list.Element
	order *list.List // front is most recently used
	bytes int64

	hits   atomic.Int64
	misses atomic.Int64
	flight singleflight.Group
}

func newNamespace[V any](name Namespace, maxEntries int, maxBytes int64, sizeOf func(V) int64) *namespace[V] {
	return &namespace[V]{
		name:       name,
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		sizeOf:     sizeOf,
		now:        time.Now,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (n *namespace[V]) get(key string) (V, bool) {
	n.mu.Lock()
	el, ok := n.items[key]
	if !ok {
		n.mu.Unlock()
		n.misses.Add(1)
		metrics.CacheMisses.WithLabelValues(string(n.name)).Inc()
		var zero V
		return zero, false
	}
	e := el.Value.(*entry[V])
	e.accessed = n.now()
	n.order.MoveToFront(el)
	v := e.value
	n.mu.Unlock()

	n.hits.Add(1)
	metrics.CacheHits.WithLabelValues(string(n.name)).Inc()
	return v, true
}

// peek looks up key without touching recency or hit counters.
func (n *namespace[V]) peek(key string) (V, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if el, ok := n.items[key]; ok {
		return el.Value.(*entry[V]).value, true
	}
	var zero V
	return zero, false
}

func (n *namespace[V]) put(key string, v V) error {
	size := n.sizeOf(v)
	if n.maxBytes > 0 && size > n.maxBytes {
		metrics.CacheStoreErrors.WithLabelValues(string(n.name)).Inc()
		n.releaseAll([]V{v})
		return fmt.Errorf("%w: %s entry of %d bytes, limit %d", ErrTooLarge, n.name, size, n.maxBytes)
	}

	now := n.now()
	var dropped []V

	n.mu.Lock()
	if el, ok := n.items[key]; ok {
		e := el.Value.(*entry[V])
		if n.same == nil || !n.same(e.value, v) {
			dropped = append(dropped, e.value)
		}
		n.bytes += size - e.size
		e.value, e.size, e.created, e.accessed = v, size, now, now
		n.order.MoveToFront(el)
	} else {
		e := &entry[V]{key: key, value: v, size: size, created: now, accessed: now}
		n.items[key] = n.order.PushFront(e)
		n.bytes += size
	}
	dropped = append(dropped, n.evictLocked()...)
	n.mu.Unlock()

	n.releaseAll(dropped)
	return nil
}

// evictLocked removes least recently used entries until both limits hold.
func (n *namespace[V]) evictLocked() []V {
	var out []V
	for {
		var reason string
		switch {
		case n.maxEntries > 0 && n.order.Len() > n.maxEntries:
			reason = reasonCount
		case n.maxBytes > 0 && n.bytes > n.maxBytes:
			reason = reasonSize
		default:
			return out
		}
		back := n.order.Back()
		if back == nil {
			return out
		}
		out = append(out, n.removeLocked(back).value)
		metrics.CacheEvictions.WithLabelValues(string(n.name), reason).Inc()
	}
}

func (n *namespace[V]) removeLocked(el *list.Element) *entry[V] {
	e := n.order.Remove(el).(*entry[V])
	delete(n.items, e.key)
	n.bytes -= e.size
	return e
}

// remove drops key without calling release.
func (n *namespace[V]) remove(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	el, ok := n.items[key]
	if ok {
		n.removeLocked(el)
	}
	return ok
}

// cleanup drops entries created before now-maxAge.
func (n *namespace[V]) cleanup(maxAge time.Duration) int {
	cutoff := n.now().Add(-maxAge)
	var dropped []V

	n.mu.Lock()
	for el := n.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*entry[V]).created.Before(cutoff) {
			dropped = append(dropped, n.removeLocked(el).value)
		}
		el = prev
	}
	n.mu.Unlock()

	if len(dropped) > 0 {
		metrics.CacheEvictions.WithLabelValues(string(n.name), reasonAge).Add(float64(len(dropped)))
	}
	n.releaseAll(dropped)
	return len(dropped)
}

func (n *namespace[V]) clear() int {
	n.mu.Lock()
	dropped := make([]V, 0, len(n.items))
	for el := n.order.Front(); el != nil; el = el.Next() {
		dropped = append(dropped, el.Value.(*entry[V]).value)
	}
	n.items = make(map[string]*list.Element)
	n.order.Init()
	n.bytes = 0
	n.mu.Unlock()

	if len(dropped) > 0 {
		metrics.CacheEvictions.WithLabelValues(string(n.name), reasonClear).Add(float64(len(dropped)))
	}
	n.releaseAll(dropped)
	return len(dropped)
}

// getOrCreate returns the cached value or computes it once per key, however
// many callers miss concurrently. A failed store is logged, not returned,
// unless the namespace owns its values: the rejected value has been
// released by then and is no longer usable.
func (n *namespace[V]) getOrCreate(key string, create func() (V, error)) (V, error) {
	if v, ok := n.get(key); ok {
		return v, nil
	}

	res, err, shared := n.flight.Do(key, func() (interface{}, error) {
		if v, ok := n.peek(key); ok {
			return v, nil
		}
		v, err := create()
		if err != nil {
			return nil, err
		}
		if perr := n.put(key, v); perr != nil {
			if n.release != nil {
				return nil, perr
			}
			logging.Warn("cache %s: store failed: %v", n.name, perr)
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	if shared {
		logging.Debug("cache %s: joined in-flight computation for %s", n.name, key)
	}
	return res.(V), nil
}

func (n *namespace[V]) releaseAll(values []V) {
	if n.release == nil {
		return
	}
	for _, v := range values {
		n.release(v)
	}
}

func (n *namespace[V]) usage() NamespaceUsage {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return NamespaceUsage{
		Entries:    n.order.Len(),
		Bytes:      n.bytes,
		MaxEntries: n.maxEntries,
		MaxBytes:   n.maxBytes,
	}
}

func (n *namespace[V]) stats() NamespaceStats {
	hits, misses := n.hits.Load(), n.misses.Load()
	s := NamespaceStats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRatio = float64(hits) / float64(total)
	}
	return s
}
