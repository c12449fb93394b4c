package world

import "sync"

// PatchCoord identifies a terrain patch's position within a region's patch
// grid.
type PatchCoord struct {
	X, Y int32
}

// neighborOffsets names the three neighbors a patch needs present before it
// becomes emittable: east, north, and north-east.
var neighborOffsets = [3]PatchCoord{
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: 1, Y: 1},
}

// Patch is one decoded terrain patch awaiting or ready for display.
type Patch struct {
	Coord  PatchCoord
	Height []float32
}

// LayerObserver receives terrain patches once all required neighbors are
// present and the patch is released for display.
type LayerObserver interface {
	OnPatchReady(p Patch)
}

// TerrainCache holds decoded patches plus the queue of patches whose
// neighbors were missing at arrival time.
type TerrainCache struct {
	mu       sync.Mutex
	patches  map[PatchCoord]Patch
	pending  map[PatchCoord]struct{}
	emitted  map[PatchCoord]struct{}
	observer LayerObserver
}

// NewTerrainCache constructs an empty TerrainCache that notifies observer
// as patches are released.
func NewTerrainCache(observer LayerObserver) *TerrainCache {
	return &TerrainCache{
		patches:  make(map[PatchCoord]Patch),
		pending:  make(map[PatchCoord]struct{}),
		emitted:  make(map[PatchCoord]struct{}),
		observer: observer,
	}
}

// Insert records a newly decoded patch, then rescans the pending queue for
// any patch whose neighbors are now all present.
func (c *TerrainCache) Insert(p Patch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.patches[p.Coord] = p
	if c.hasAllNeighbors(p.Coord) {
		c.release(p.Coord)
	} else {
		c.pending[p.Coord] = struct{}{}
	}

	c.rescanPending()
}

func (c *TerrainCache) hasAllNeighbors(coord PatchCoord) bool {
	for _, off := range neighborOffsets {
		n := PatchCoord{X: coord.X + off.X, Y: coord.Y + off.Y}
		if _, ok := c.patches[n]; !ok {
			return false
		}
	}
	return true
}

// rescanPending releases every pending patch whose neighbors have since
// arrived. Must be called with c.mu held.
func (c *TerrainCache) rescanPending() {
	for coord := range c.pending {
		if c.hasAllNeighbors(coord) {
			delete(c.pending, coord)
			c.release(coord)
		}
	}
}

// release emits a patch at most once. Must be called with c.mu held.
func (c *TerrainCache) release(coord PatchCoord) {
	if _, done := c.emitted[coord]; done {
		return
	}
	c.emitted[coord] = struct{}{}
	p := c.patches[coord]
	if c.observer != nil {
		c.observer.OnPatchReady(p)
	}
}

// Pending reports how many patches are still awaiting neighbors, for
// diagnostics and tests.
func (c *TerrainCache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
