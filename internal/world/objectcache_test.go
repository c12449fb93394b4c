package world

import "testing"

type recordingRequester struct {
	requested []uint32
	kind      CacheMissKind
}

func (r *recordingRequester) RequestMultipleObjects(localIDs []uint32, kind CacheMissKind) error {
	r.requested = append(r.requested, localIDs...)
	r.kind = kind
	return nil
}

func TestReconcileCachedRequestsMissesOnly(t *testing.T) {
	req := &recordingRequester{}
	cache := NewObjectCache(req)
	cache.Store(1, 0xAAAA, "cached-object-1")

	err := cache.ReconcileCached([]CachedEntry{
		{LocalID: 1, CRC: 0xAAAA}, // hit, same crc
		{LocalID: 2, CRC: 0xBBBB}, // miss, unseen id
	})
	if err != nil {
		t.Fatalf("ReconcileCached: %v", err)
	}
	if len(req.requested) != 1 || req.requested[0] != 2 {
		t.Fatalf("expected only id 2 requested, got %v", req.requested)
	}
}

func TestReconcileCachedRequestsOnCRCMismatch(t *testing.T) {
	req := &recordingRequester{}
	cache := NewObjectCache(req)
	cache.Store(1, 0xAAAA, "stale")

	err := cache.ReconcileCached([]CachedEntry{{LocalID: 1, CRC: 0xCCCC}})
	if err != nil {
		t.Fatalf("ReconcileCached: %v", err)
	}
	if len(req.requested) != 1 || req.requested[0] != 1 {
		t.Fatalf("expected id 1 requested due to crc mismatch, got %v", req.requested)
	}
}

func TestObjectCacheGetAndLen(t *testing.T) {
	cache := NewObjectCache(&recordingRequester{})
	if _, ok := cache.Get(5); ok {
		t.Fatal("expected miss on empty cache")
	}
	cache.Store(5, 1, "decoded")
	v, ok := cache.Get(5)
	if !ok || v != "decoded" {
		t.Fatalf("expected hit with decoded value, got %v, %v", v, ok)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected len 1, got %d", cache.Len())
	}
}
