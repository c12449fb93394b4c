package assets

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/osgrid/metaviewer/internal/wire/llsd"
)

// deflate compresses data with the default zlib header (0x78, 0x9C), the
// signature the mesh decoder scans for.
func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return buf.Bytes()
}

func realArray(vals ...float64) llsd.Value {
	arr := make([]llsd.Value, len(vals))
	for i, v := range vals {
		arr[i] = llsd.Value{Kind: llsd.KindReal, Real: v}
	}
	return llsd.Value{Kind: llsd.KindArray, Array: arr}
}

func domainMap(min, max llsd.Value) llsd.Value {
	return llsd.Value{Kind: llsd.KindMap, Map: map[string]llsd.Value{"Min": min, "Max": max}}
}

func buildGeometryLLSD(t *testing.T, positions [][3]uint16, indices []uint16) []byte {
	t.Helper()
	posBlob := make([]byte, 0, len(positions)*6)
	for _, p := range positions {
		posBlob = append(posBlob, byte(p[0]), byte(p[0]>>8), byte(p[1]), byte(p[1]>>8), byte(p[2]), byte(p[2]>>8))
	}
	idxBlob := make([]byte, 0, len(indices)*2)
	for _, idx := range indices {
		idxBlob = append(idxBlob, byte(idx), byte(idx>>8))
	}

	geom := llsd.Value{Kind: llsd.KindMap, Map: map[string]llsd.Value{
		"PositionDomain": domainMap(realArray(-1, -1, -1), realArray(1, 1, 1)),
		"Position":       {Kind: llsd.KindBinary, Binary: posBlob},
		"TriangleList":   {Kind: llsd.KindBinary, Binary: idxBlob},
	}}
	return llsd.Encode(geom)
}

func TestDecodeMeshHighLODRoundTrip(t *testing.T) {
	positions := [][3]uint16{{0, 0, 0}, {65535, 0, 0}, {0, 65535, 0}}
	indices := []uint16{0, 1, 2}
	highLOD := deflate(t, buildGeometryLLSD(t, positions, indices))

	header := llsd.Value{Kind: llsd.KindMap, Map: map[string]llsd.Value{
		"high_lod": {Kind: llsd.KindMap, Map: map[string]llsd.Value{
			"offset": {Kind: llsd.KindInt, Int: 0},
			"size":   {Kind: llsd.KindInt, Int: int32(len(highLOD))},
		}},
	}}
	headerBytes := llsd.Encode(header)

	body := append(append([]byte{}, headerBytes...), highLOD...)

	mesh, err := DecodeMesh(body)
	if err != nil {
		t.Fatalf("DecodeMesh: %v", err)
	}
	if mesh.HighLOD == nil {
		t.Fatal("expected high_lod geometry")
	}
	if len(mesh.HighLOD.Positions) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(mesh.HighLOD.Positions))
	}
	if got := mesh.HighLOD.Positions[1]; got[0] < 0.99 || got[0] > 1.01 {
		t.Fatalf("expected x~=1.0 for max u16, got %v", got)
	}
	if len(mesh.HighLOD.Indices) != 3 {
		t.Fatalf("expected 3 indices, got %d", len(mesh.HighLOD.Indices))
	}
}

func TestDecodeMeshRejectsBadIndex(t *testing.T) {
	positions := [][3]uint16{{0, 0, 0}, {1, 1, 1}}
	indices := []uint16{0, 1, 5} // 5 is out of range
	highLOD := deflate(t, buildGeometryLLSD(t, positions, indices))

	header := llsd.Value{Kind: llsd.KindMap, Map: map[string]llsd.Value{
		"high_lod": {Kind: llsd.KindMap, Map: map[string]llsd.Value{
			"offset": {Kind: llsd.KindInt, Int: 0},
			"size":   {Kind: llsd.KindInt, Int: int32(len(highLOD))},
		}},
	}}
	body := append(llsd.Encode(header), highLOD...)

	if _, err := DecodeMesh(body); err == nil {
		t.Fatal("expected error for out-of-range triangle index")
	}
}

func TestDecodeMeshMissingHighLODFails(t *testing.T) {
	header := llsd.Value{Kind: llsd.KindMap, Map: map[string]llsd.Value{}}
	headerBytes := llsd.Encode(header)
	body := append(headerBytes, 0x78, 0x9C) // bare signature, no real stream needed since no keys present
	if _, err := DecodeMesh(body); err == nil {
		t.Fatal("expected error when high_lod is missing")
	}
}

func TestDecodeWeightsNormalizesAndDefaults(t *testing.T) {
	// vertex 0: single joint, weight maxed -> normalizes to 1.0
	// vertex 1: terminator immediately -> falls back to 0.25 across all four
	blob := []byte{
		0x02, 0xFF, 0xFF, // joint 2, weight 65535
		0xFF, // terminator for vertex 0 (after the single entry)
		0xFF, // vertex 1: immediate terminator, zero entries
	}
	weights, err := decodeWeights(blob, 2)
	if err != nil {
		t.Fatalf("decodeWeights: %v", err)
	}
	if weights[0][0].JointIndex != 2 {
		t.Fatalf("expected joint 2, got %d", weights[0][0].JointIndex)
	}
	if w := weights[0][0].Weight; w < 0.99 || w > 1.01 {
		t.Fatalf("expected normalized weight ~1.0, got %v", w)
	}
	for _, jw := range weights[1] {
		if jw.Weight != 0.25 {
			t.Fatalf("expected fallback weight 0.25, got %v", jw.Weight)
		}
	}
}
