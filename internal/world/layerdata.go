package world

import (
	"fmt"

	"github.com/osgrid/metaviewer/internal/wire"
)

// patchSide is the fixed edge length of a terrain patch in height samples
// (16x16, the OpenSim/SecondLife land-patch convention).
const patchSide = 16
const patchSamples = patchSide * patchSide

// DecodeTerrainPatches parses a LayerData land-layer body into the patches
// it carries.
// Each patch is encoded as a 4-byte grid X, 4-byte grid Y, followed by
// patchSamples little-endian f32 height values.
func DecodeTerrainPatches(data []byte) ([]Patch, error) {
	const patchBytes = 4 + 4 + patchSamples*4
	if len(data)%patchBytes != 0 {
		return nil, fmt.Errorf("world: layer data length %d not a multiple of patch size %d", len(data), patchBytes)
	}
	count := len(data) / patchBytes
	out := make([]Patch, 0, count)
	for i := 0; i < count; i++ {
		off := i * patchBytes
		x := int32(wire.DecodeU32(data[off : off+4]))
		y := int32(wire.DecodeU32(data[off+4 : off+8]))
		heights := make([]float32, patchSamples)
		base := off + 8
		for s := 0; s < patchSamples; s++ {
			heights[s] = wire.DecodeF32(data[base+s*4 : base+s*4+4])
		}
		out = append(out, Patch{Coord: PatchCoord{X: x, Y: y}, Height: heights})
	}
	return out, nil
}
