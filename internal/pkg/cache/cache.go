package cache

import (
	"container/list"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultNamespaceBudget bounds one namespace to 1 MiB of serialized
	// entries.
	DefaultNamespaceBudget = 1 << 20
	// DefaultMaxEntryAge is the hard staleness bound enforced by the sweep
	// regardless of LRU order.
	DefaultMaxEntryAge = time.Hour
	// DefaultSweepInterval is how often the background sweep runs.
	DefaultSweepInterval = 5 * time.Minute
)

type cacheEntry struct {
	namespace string
	key       string
	value     any
	sizeBytes int64
	written   time.Time
	ttl       time.Duration
}

func (e *cacheEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.written) > e.ttl
}

type namespace struct {
	ll        *list.List
	elems     map[string]*list.Element
	sizeBytes int64
}

// Cache is a namespaced, size- and TTL-bounded key/value store with LRU
// eviction. When a Set would push a namespace past its byte budget, the
// least-recently-used entries are evicted until the new entry fits. A
// background sweep additionally removes entries older than a hard absolute
// age, bounding worst-case staleness. The cache is advisory: a miss or
// eviction only forces a refetch, never a correctness failure.
type Cache struct {
	mu         sync.Mutex
	namespaces map[string]*namespace
	budget     int64
	maxAge     time.Duration
	logger     port.Logger
	done       chan struct{}
	closeOnce  sync.Once
	now        func() time.Time
}

// Options tune a Cache; zero values fall back to the package defaults.
type Options struct {
	NamespaceBudgetBytes int64
	MaxEntryAge          time.Duration
	SweepInterval        time.Duration
}

// New creates a Cache and starts its background sweep.
func New(opts Options, logger port.Logger) *Cache {
	if opts.NamespaceBudgetBytes <= 0 {
		opts.NamespaceBudgetBytes = DefaultNamespaceBudget
	}
	if opts.MaxEntryAge <= 0 {
		opts.MaxEntryAge = DefaultMaxEntryAge
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	c := &Cache{
		namespaces: make(map[string]*namespace),
		budget:     opts.NamespaceBudgetBytes,
		maxAge:     opts.MaxEntryAge,
		logger:     logger,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	go c.sweepLoop(opts.SweepInterval)
	return c
}

// Get returns the cached value and its write timestamp, refreshing the
// entry's recency. An expired entry is removed and reported as a miss.
func (c *Cache) Get(ns, key string) (any, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.namespaces[ns]
	if !ok {
		metrics.CacheMisses.WithLabelValues(ns).Inc()
		return nil, time.Time{}, false
	}
	elem, ok := n.elems[key]
	if !ok {
		metrics.CacheMisses.WithLabelValues(ns).Inc()
		return nil, time.Time{}, false
	}

	e := elem.Value.(*cacheEntry)
	if e.expired(c.now()) {
		c.removeLocked(n, elem)
		metrics.CacheMisses.WithLabelValues(ns).Inc()
		return nil, time.Time{}, false
	}

	n.ll.MoveToFront(elem)
	metrics.CacheHits.WithLabelValues(ns).Inc()
	return e.value, e.written, true
}

// Set stores the value under namespace:key with the given TTL, evicting
// least-recently-used entries until the namespace fits its byte budget.
// An entry larger than the whole budget is not stored at all.
func (c *Cache) Set(ns, key string, value any, ttl time.Duration) {
	size := serializedSize(value)
	if size > c.budget {
		if c.logger != nil {
			c.logger.Warn("Cache entry exceeds namespace budget, not storing",
				"namespace", ns, "key", key, "size_bytes", size, "budget_bytes", c.budget)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.namespaces[ns]
	if !ok {
		n = &namespace{ll: list.New(), elems: make(map[string]*list.Element)}
		c.namespaces[ns] = n
	}

	if elem, ok := n.elems[key]; ok {
		c.removeLocked(n, elem)
	}

	for n.sizeBytes+size > c.budget {
		oldest := n.ll.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(n, oldest)
		metrics.CacheEvictions.WithLabelValues(ns).Inc()
	}

	e := &cacheEntry{
		namespace: ns,
		key:       key,
		value:     value,
		sizeBytes: size,
		written:   c.now(),
		ttl:       ttl,
	}
	n.elems[key] = n.ll.PushFront(e)
	n.sizeBytes += size
}

// Delete drops one entry, if present.
func (c *Cache) Delete(ns, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.namespaces[ns]; ok {
		if elem, ok := n.elems[key]; ok {
			c.removeLocked(n, elem)
		}
	}
}

// SizeBytes returns the accounted serialized size of one namespace.
func (c *Cache) SizeBytes(ns string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.namespaces[ns]; ok {
		return n.sizeBytes
	}
	return 0
}

// Len returns the number of live entries in one namespace.
func (c *Cache) Len(ns string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.namespaces[ns]; ok {
		return len(n.elems)
	}
	return 0
}

// Close stops the background sweep.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Sweep removes entries older than the hard max age regardless of LRU order.
// Exported so tests and the shutdown path can force a pass.
func (c *Cache) Sweep() {
	cutoff := c.now().Add(-c.maxAge)

	c.mu.Lock()
	defer c.mu.Unlock()
	for ns, n := range c.namespaces {
		for elem := n.ll.Back(); elem != nil; {
			prev := elem.Prev()
			e := elem.Value.(*cacheEntry)
			if e.written.Before(cutoff) || e.expired(c.now()) {
				c.removeLocked(n, elem)
				metrics.CacheEvictions.WithLabelValues(ns).Inc()
			}
			elem = prev
		}
	}
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *Cache) removeLocked(n *namespace, elem *list.Element) {
	e := elem.Value.(*cacheEntry)
	n.ll.Remove(elem)
	delete(n.elems, e.key)
	n.sizeBytes -= e.sizeBytes
}

func serializedSize(value any) int64 {
	b, err := json.Marshal(value)
	if err != nil {
		// Unserializable values still occupy a slot; charge a nominal size.
		return 64
	}
	return int64(len(b))
}
