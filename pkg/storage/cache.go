package storage

import (
	"container/list"
	"context"
	"sync"

	"github.com/vjranagit/groundmotion/pkg/motion"
)

// RecordCache is an LRU cache of restored records keyed by name
type RecordCache struct {
	capacity int
	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lru      *list.List
}

// cacheEntry represents a cached record
type cacheEntry struct {
	name    string
	record  *motion.Record
	element *list.Element
}

// NewRecordCache creates a new record cache
func NewRecordCache(capacity int) *RecordCache {
	if capacity < 1 {
		capacity = 1
	}
	return &RecordCache{
		capacity: capacity,
		cache:    make(map[string]*cacheEntry),
		lru:      list.New(),
	}
}

// Get retrieves a cached record
func (rc *RecordCache) Get(name string) (*motion.Record, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	entry, exists := rc.cache[name]
	if !exists {
		return nil, false
	}

	// Move to front of LRU list (most recently used)
	rc.lru.MoveToFront(entry.element)

	return entry.record, true
}

// Put stores a record in the cache
func (rc *RecordCache) Put(name string, rec *motion.Record) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if entry, exists := rc.cache[name]; exists {
		entry.record = rec
		rc.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{
		name:   name,
		record: rec,
	}
	entry.element = rc.lru.PushFront(entry)
	rc.cache[name] = entry

	// Evict oldest entry if cache is full
	if rc.lru.Len() > rc.capacity {
		if oldest := rc.lru.Back(); oldest != nil {
			rc.removeLocked(oldest.Value.(*cacheEntry).name)
		}
	}
}

// Remove drops a record from the cache
func (rc *RecordCache) Remove(name string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.removeLocked(name)
}

// removeLocked removes an entry from the cache (must hold lock)
func (rc *RecordCache) removeLocked(name string) {
	if entry, exists := rc.cache[name]; exists {
		rc.lru.Remove(entry.element)
		delete(rc.cache, name)
	}
}

// Clear clears all cache entries
func (rc *RecordCache) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.cache = make(map[string]*cacheEntry)
	rc.lru = list.New()
}

// Size returns the current cache size
func (rc *RecordCache) Size() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.cache)
}

// CacheStats contains cache statistics
type CacheStats struct {
	Size     int
	Capacity int
	Hits     uint64
	Misses   uint64
}

// HitRate returns the fraction of loads served from the cache
func (cs CacheStats) HitRate() float64 {
	total := cs.Hits + cs.Misses
	if total == 0 {
		return 0.0
	}
	return float64(cs.Hits) / float64(total)
}

// CachedStore wraps a Store with a record cache.
//
// Cached records are shared between callers and a Record is not safe for
// concurrent use, so callers must serialize queries on them. Options passed
// to LoadRecord only apply when the record is restored from storage.
type CachedStore struct {
	Store
	cache  *RecordCache
	hits   uint64
	misses uint64
	mu     sync.Mutex
}

// NewCachedStore creates a cached storage wrapper
func NewCachedStore(store Store, capacity int) *CachedStore {
	return &CachedStore{
		Store: store,
		cache: NewRecordCache(capacity),
	}
}

// SaveRecord writes through and invalidates the cached copy
func (cs *CachedStore) SaveRecord(ctx context.Context, name string, labels map[string]string, rec *motion.Record) error {
	if err := cs.Store.SaveRecord(ctx, name, labels, rec); err != nil {
		return err
	}
	cs.cache.Remove(name)
	return nil
}

// LoadRecord checks the cache before restoring from storage
func (cs *CachedStore) LoadRecord(ctx context.Context, name string, opts ...motion.Option) (*motion.Record, error) {
	if rec, ok := cs.cache.Get(name); ok {
		cs.mu.Lock()
		cs.hits++
		cs.mu.Unlock()
		return rec, nil
	}

	cs.mu.Lock()
	cs.misses++
	cs.mu.Unlock()

	rec, err := cs.Store.LoadRecord(ctx, name, opts...)
	if err != nil {
		return nil, err
	}

	cs.cache.Put(name, rec)
	return rec, nil
}

// DeleteRecord invalidates the cached copy and deletes from storage
func (cs *CachedStore) DeleteRecord(ctx context.Context, name string) error {
	cs.cache.Remove(name)
	return cs.Store.DeleteRecord(ctx, name)
}

// Close drops every cached record and closes the underlying store
func (cs *CachedStore) Close() error {
	cs.cache.Clear()
	return cs.Store.Close()
}

// Stats returns cache statistics
func (cs *CachedStore) Stats() CacheStats {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	return CacheStats{
		Size:     cs.cache.Size(),
		Capacity: cs.cache.capacity,
		Hits:     cs.hits,
		Misses:   cs.misses,
	}
}
