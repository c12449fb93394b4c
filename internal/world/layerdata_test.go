package world

import (
	"testing"

	"github.com/osgrid/metaviewer/internal/wire"
)

func buildPatchBytes(x, y int32, fill float32) []byte {
	out := make([]byte, 0, 8+patchSamples*4)
	out = append(out, wire.EncodeU32(uint32(x))...)
	out = append(out, wire.EncodeU32(uint32(y))...)
	for i := 0; i < patchSamples; i++ {
		out = append(out, wire.EncodeF32(fill)...)
	}
	return out
}

func TestDecodeTerrainPatchesSinglePatch(t *testing.T) {
	data := buildPatchBytes(3, 4, 12.5)
	patches, err := DecodeTerrainPatches(data)
	if err != nil {
		t.Fatalf("DecodeTerrainPatches: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(patches))
	}
	if patches[0].Coord != (PatchCoord{X: 3, Y: 4}) {
		t.Fatalf("unexpected coord: %+v", patches[0].Coord)
	}
	if len(patches[0].Height) != patchSamples || patches[0].Height[0] != 12.5 {
		t.Fatalf("unexpected height data: len=%d first=%v", len(patches[0].Height), patches[0].Height[0])
	}
}

func TestDecodeTerrainPatchesMultiplePatches(t *testing.T) {
	data := append(buildPatchBytes(0, 0, 1), buildPatchBytes(1, 0, 2)...)
	patches, err := DecodeTerrainPatches(data)
	if err != nil {
		t.Fatalf("DecodeTerrainPatches: %v", err)
	}
	if len(patches) != 2 {
		t.Fatalf("expected 2 patches, got %d", len(patches))
	}
}

func TestDecodeTerrainPatchesRejectsMisalignedLength(t *testing.T) {
	if _, err := DecodeTerrainPatches([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for misaligned data")
	}
}
