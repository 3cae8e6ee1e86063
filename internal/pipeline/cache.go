package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
	"github.com/couchcryptid/launch-monitor-etl/internal/observability"
)

// Fingerprinter identifies the current content of a source.
type Fingerprinter interface {
	Fingerprint(ctx context.Context) (string, error)
}

// Cleaner produces the cleaned shot set. *Pipeline implements it.
type Cleaner interface {
	Clean(ctx context.Context) ([]domain.Shot, Report, error)
}

// Dataset is one cleaned snapshot of the session directory. Shots must be
// treated as read-only; it is shared between callers.
type Dataset struct {
	Fingerprint string
	Shots       []domain.Shot
	Report      Report
}

// CachedDataset memoizes Clean by source fingerprint in an LRU, so an
// unchanged directory is parsed once no matter how often it is queried.
type CachedDataset struct {
	cleaner Cleaner
	source  Fingerprinter
	cache   *lruCache
	metrics *observability.Metrics

	// loadMu serializes misses so concurrent requests clean at most once.
	loadMu sync.Mutex
}

// NewCachedDataset creates a cache holding up to maxEntries snapshots.
func NewCachedDataset(cleaner Cleaner, source Fingerprinter, maxEntries int, metrics *observability.Metrics) *CachedDataset {
	return &CachedDataset{
		cleaner: cleaner,
		source:  source,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Load returns the snapshot for the source's current content.
func (c *CachedDataset) Load(ctx context.Context) (Dataset, error) {
	key, err := c.source.Fingerprint(ctx)
	if err != nil {
		return Dataset{}, fmt.Errorf("fingerprint sessions: %w", err)
	}
	if ds, ok := c.cache.get(key); ok {
		c.metrics.DatasetCache.WithLabelValues("hit").Inc()
		return ds, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if ds, ok := c.cache.get(key); ok {
		c.metrics.DatasetCache.WithLabelValues("hit").Inc()
		return ds, nil
	}
	c.metrics.DatasetCache.WithLabelValues("miss").Inc()

	shots, report, err := c.cleaner.Clean(ctx)
	if err != nil {
		return Dataset{}, err
	}
	ds := Dataset{Fingerprint: key, Shots: shots, Report: report}
	c.cache.put(key, ds)
	return ds, nil
}

// Shots returns the cleaned shots for the source's current content.
func (c *CachedDataset) Shots(ctx context.Context) ([]domain.Shot, error) {
	ds, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Shots, nil
}

// CheckReadiness returns nil when the source's current content cleans
// successfully, so readiness follows data that appears after startup.
func (c *CachedDataset) CheckReadiness(ctx context.Context) error {
	if _, err := c.Load(ctx); err != nil {
		return fmt.Errorf("dataset not available: %w", err)
	}
	return nil
}

// Refresh drops every cached snapshot.
func (c *CachedDataset) Refresh() {
	c.cache.purge()
}

// lruCache is a simple thread-safe LRU cache of datasets.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value Dataset
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Dataset{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.head, c.tail = nil, nil
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
