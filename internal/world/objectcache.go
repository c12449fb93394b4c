package world

import "sync"

// CacheMissKind distinguishes why an object is being re-requested; the
// runtime only ever uses the Normal miss type.
type CacheMissKind uint8

const (
	CacheMissNormal CacheMissKind = iota
	CacheMissFull
)

// ObjectRequester posts a RequestMultipleObjects for objects missing from
// the local cache.
type ObjectRequester interface {
	RequestMultipleObjects(localIDs []uint32, kind CacheMissKind) error
}

// cachedObject is one locally cached object's checksum and decoded body.
type cachedObject struct {
	crc     uint32
	decoded any
}

// ObjectCache tracks which objects the local process already has a decoded
// copy of, keyed by local id, and requests full updates for cache misses.
type ObjectCache struct {
	mu        sync.Mutex
	objects   map[uint32]cachedObject
	requester ObjectRequester
}

// NewObjectCache constructs an ObjectCache that requests cache misses
// through requester.
func NewObjectCache(requester ObjectRequester) *ObjectCache {
	return &ObjectCache{
		objects:   make(map[uint32]cachedObject),
		requester: requester,
	}
}

// CachedEntry is one (local id, crc) pair from an ObjectUpdateCached block.
type CachedEntry struct {
	LocalID uint32
	CRC     uint32
}

// ReconcileCached compares a batch of ObjectUpdateCached entries against
// the local cache, requesting full updates for every miss.
func (c *ObjectCache) ReconcileCached(entries []CachedEntry) error {
	c.mu.Lock()
	var misses []uint32
	for _, e := range entries {
		cached, ok := c.objects[e.LocalID]
		if !ok || cached.crc != e.CRC {
			misses = append(misses, e.LocalID)
		}
	}
	c.mu.Unlock()

	if len(misses) == 0 {
		return nil
	}
	return c.requester.RequestMultipleObjects(misses, CacheMissNormal)
}

// Store records a fully decoded object under its local id and checksum,
// replacing any prior cache entry for that id.
func (c *ObjectCache) Store(localID uint32, crc uint32, decoded any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[localID] = cachedObject{crc: crc, decoded: decoded}
}

// Get returns the decoded object cached for localID, if any.
func (c *ObjectCache) Get(localID uint32) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.objects[localID]
	if !ok {
		return nil, false
	}
	return entry.decoded, true
}

// Len reports how many objects are currently cached, for tests.
func (c *ObjectCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects)
}
