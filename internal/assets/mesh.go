// Package assets decodes the binary asset formats the runtime fetches
// through the HTTP capability client: mesh LOD geometry, skin blocks, and
// 2001-era scene-object XML.
package assets

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zlib"
	"github.com/osgrid/metaviewer/internal/wire/llsd"
)

// lodKeys lists the mesh LLSD header keys that carry geometry blobs, in the
// order a viewer prefers to decode them.
var lodKeys = []string{"high_lod", "medium_lod", "low_lod", "lowest_lod"}

// zlibSignatures are the two-byte headers zlib emits depending on its
// compression-level preset; the mesh decoder scans for the first one to
// find where the LLSD-binary header ends and the compressed region begins.
var zlibSignatures = [][2]byte{{0x78, 0x01}, {0x78, 0x5E}, {0x78, 0x9C}, {0x78, 0xDA}}

// Mesh is a decoded mesh asset: up to four LOD geometries, an optional skin
// descriptor, and the raw physics-convex blob.
type Mesh struct {
	HighLOD       *Geometry
	MediumLOD     *Geometry
	LowLOD        *Geometry
	LowestLOD     *Geometry
	PhysicsConvex []byte
	Skin          *Skin
}

// Geometry is one LOD level's vertex/index/weight data, already normalized
// out of its wire quantization.
type Geometry struct {
	Positions [][3]float32
	Indices   []uint16
	TexCoords [][2]float32
	Weights   [][4]JointWeight // one slot per vertex, up to 4 entries each
}

// JointWeight is one (joint, weight) pair contributing to a skinned
// vertex's blend.
type JointWeight struct {
	JointIndex uint8
	Weight     float32
}

// DecodeMesh parses a full mesh asset body: the uncompressed LLSD-binary
// header followed by a zlib-compressed region holding one deflate stream
// per present LOD/skin/physics key.
func DecodeMesh(body []byte) (*Mesh, error) {
	sigOffset := findZlibSignature(body)
	if sigOffset < 0 {
		return nil, fmt.Errorf("assets: no zlib signature found in mesh asset")
	}

	header, err := llsd.Decode(body[:sigOffset])
	if err != nil {
		return nil, fmt.Errorf("assets: decode mesh header: %w", err)
	}
	if header.Kind != llsd.KindMap {
		return nil, fmt.Errorf("assets: mesh header is not a map")
	}

	compressed := body[sigOffset:]
	m := &Mesh{}

	for _, key := range lodKeys {
		entry, ok := header.Map[key]
		if !ok {
			continue
		}
		blob, err := sliceAndInflate(compressed, entry)
		if err != nil {
			return nil, fmt.Errorf("assets: %s: %w", key, err)
		}
		geom, err := decodeGeometry(blob)
		if err != nil {
			return nil, fmt.Errorf("assets: %s geometry: %w", key, err)
		}
		switch key {
		case "high_lod":
			m.HighLOD = geom
		case "medium_lod":
			m.MediumLOD = geom
		case "low_lod":
			m.LowLOD = geom
		case "lowest_lod":
			m.LowestLOD = geom
		}
	}

	if m.HighLOD == nil {
		return nil, fmt.Errorf("assets: mesh missing required high_lod")
	}
	if len(m.HighLOD.Positions) == 0 || len(m.HighLOD.Indices) == 0 {
		return nil, fmt.Errorf("assets: high_lod must have non-empty vertices and indices")
	}
	if len(m.HighLOD.Indices)%3 != 0 {
		return nil, fmt.Errorf("assets: high_lod index count %d not a multiple of 3", len(m.HighLOD.Indices))
	}

	if entry, ok := header.Map["physics_convex"]; ok {
		blob, err := sliceAndInflate(compressed, entry)
		if err != nil {
			return nil, fmt.Errorf("assets: physics_convex: %w", err)
		}
		m.PhysicsConvex = blob
	}

	if entry, ok := header.Map["skin"]; ok {
		blob, err := sliceAndInflate(compressed, entry)
		if err != nil {
			return nil, fmt.Errorf("assets: skin: %w", err)
		}
		skin, err := decodeSkinBlock(blob)
		if err != nil {
			return nil, fmt.Errorf("assets: skin: %w", err)
		}
		m.Skin = skin

		if err := resolveWeightJoints(m, skin); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func findZlibSignature(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		for _, sig := range zlibSignatures {
			if b[i] == sig[0] && b[i+1] == sig[1] {
				return i
			}
		}
	}
	return -1
}

// sliceAndInflate slices [offset, offset+size) from compressed and inflates
// it with zlib. entry must be an LLSD map with integer "offset" and "size"
// fields.
func sliceAndInflate(compressed []byte, entry llsd.Value) ([]byte, error) {
	if entry.Kind != llsd.KindMap {
		return nil, fmt.Errorf("header entry is not a map")
	}
	offsetVal, ok := entry.Map["offset"]
	if !ok {
		return nil, fmt.Errorf("missing offset")
	}
	sizeVal, ok := entry.Map["size"]
	if !ok {
		return nil, fmt.Errorf("missing size")
	}
	offset := int(offsetVal.Int)
	size := int(sizeVal.Int)
	if offset < 0 || size < 0 || offset+size > len(compressed) {
		return nil, fmt.Errorf("offset/size %d/%d out of range (compressed region is %d bytes)", offset, size, len(compressed))
	}

	r, err := zlib.NewReader(bytes.NewReader(compressed[offset : offset+size]))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("zlib inflate: %w", err)
	}
	return out.Bytes(), nil
}

// decodeGeometry parses one inflated LOD blob's LLSD-binary map into a
// Geometry.
func decodeGeometry(blob []byte) (*Geometry, error) {
	v, err := llsd.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("decode geometry llsd: %w", err)
	}
	if v.Kind != llsd.KindMap {
		return nil, fmt.Errorf("geometry is not a map")
	}

	posMin, posMax, err := readDomain(v.Map, "PositionDomain")
	if err != nil {
		return nil, err
	}

	posBlob, err := readBinary(v.Map, "Position")
	if err != nil {
		return nil, err
	}
	positions, err := decodePositions(posBlob, posMin, posMax)
	if err != nil {
		return nil, err
	}

	idxBlob, err := readBinary(v.Map, "TriangleList")
	if err != nil {
		return nil, err
	}
	indices, err := decodeIndices(idxBlob, len(positions))
	if err != nil {
		return nil, err
	}

	geom := &Geometry{Positions: positions, Indices: indices}

	if texBlob, ok := v.Map["TexCoord0"]; ok {
		domMin, domMax, err := readDomain(v.Map, "TexCoord0Domain")
		if err != nil {
			return nil, err
		}
		coords, err := decodeTexCoords(texBlob.Binary, domMin, domMax)
		if err != nil {
			return nil, err
		}
		geom.TexCoords = coords
	}

	if wBlob, ok := v.Map["Weights"]; ok {
		weights, err := decodeWeights(wBlob.Binary, len(positions))
		if err != nil {
			return nil, err
		}
		geom.Weights = weights
	}

	return geom, nil
}

func readBinary(m map[string]llsd.Value, key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("missing %s", key)
	}
	if v.Kind != llsd.KindBinary {
		return nil, fmt.Errorf("%s is not binary", key)
	}
	return v.Binary, nil
}

// readDomain reads a {Min: [x,y], Max: [x,y]} (2 or 3 components) pair.
func readDomain(m map[string]llsd.Value, key string) ([]float64, []float64, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil, fmt.Errorf("missing %s", key)
	}
	if v.Kind != llsd.KindMap {
		return nil, nil, fmt.Errorf("%s is not a map", key)
	}
	min, err := readRealArray(v.Map, "Min")
	if err != nil {
		return nil, nil, fmt.Errorf("%s.Min: %w", key, err)
	}
	max, err := readRealArray(v.Map, "Max")
	if err != nil {
		return nil, nil, fmt.Errorf("%s.Max: %w", key, err)
	}
	return min, max, nil
}

func readRealArray(m map[string]llsd.Value, key string) ([]float64, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("missing %s", key)
	}
	if v.Kind != llsd.KindArray {
		return nil, fmt.Errorf("%s is not an array", key)
	}
	out := make([]float64, 0, len(v.Array))
	for _, e := range v.Array {
		if e.Kind != llsd.KindReal {
			return nil, fmt.Errorf("%s element is not a real", key)
		}
		out = append(out, e.Real)
	}
	return out, nil
}

// unpackAxis maps v in [0, 65535] onto [lo, hi].
func unpackAxis(v uint16, lo, hi float64) float32 {
	return float32(lo + (float64(v)/65535.0)*(hi-lo))
}

func decodePositions(blob []byte, min, max []float64) ([][3]float32, error) {
	if len(blob)%6 != 0 {
		return nil, fmt.Errorf("position blob length %d not a multiple of 6", len(blob))
	}
	if len(min) < 3 || len(max) < 3 {
		return nil, fmt.Errorf("position domain must have 3 components")
	}
	n := len(blob) / 6
	out := make([][3]float32, n)
	for i := 0; i < n; i++ {
		off := i * 6
		x := le16(blob[off:])
		y := le16(blob[off+2:])
		z := le16(blob[off+4:])
		out[i] = [3]float32{
			unpackAxis(x, min[0], max[0]),
			unpackAxis(y, min[1], max[1]),
			unpackAxis(z, min[2], max[2]),
		}
	}
	return out, nil
}

func decodeTexCoords(blob []byte, min, max []float64) ([][2]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("texcoord blob length %d not a multiple of 4", len(blob))
	}
	if len(min) < 2 || len(max) < 2 {
		return nil, fmt.Errorf("texcoord domain must have 2 components")
	}
	n := len(blob) / 4
	out := make([][2]float32, n)
	for i := 0; i < n; i++ {
		off := i * 4
		u := le16(blob[off:])
		v := le16(blob[off+2:])
		out[i] = [2]float32{unpackAxis(u, min[0], max[0]), unpackAxis(v, min[1], max[1])}
	}
	return out, nil
}

func decodeIndices(blob []byte, vertexCount int) ([]uint16, error) {
	if len(blob)%2 != 0 {
		return nil, fmt.Errorf("triangle list length %d not a multiple of 2", len(blob))
	}
	n := len(blob) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		idx := le16(blob[i*2:])
		if int(idx) >= vertexCount {
			return nil, fmt.Errorf("triangle index %d out of range (%d vertices)", idx, vertexCount)
		}
		out[i] = idx
	}
	if len(out)%3 != 0 {
		return nil, fmt.Errorf("triangle list count %d not a multiple of 3", len(out))
	}
	return out, nil
}

// decodeWeights parses the per-vertex variable-length (joint, weight)
// stream, up to 4 entries per vertex terminated early by a 0xFF joint byte,
// then normalizes each vertex's weights to sum to 1.0.
func decodeWeights(blob []byte, vertexCount int) ([][4]JointWeight, error) {
	out := make([][4]JointWeight, vertexCount)
	pos := 0
	for v := 0; v < vertexCount; v++ {
		var entries [4]JointWeight
		count := 0
		for count < 4 {
			if pos >= len(blob) {
				return nil, fmt.Errorf("weights stream truncated at vertex %d", v)
			}
			joint := blob[pos]
			pos++
			if joint == 0xFF {
				break
			}
			if pos+2 > len(blob) {
				return nil, fmt.Errorf("weights stream truncated reading weight for vertex %d", v)
			}
			weight := le16(blob[pos:])
			pos += 2
			entries[count] = JointWeight{JointIndex: joint, Weight: float32(weight) / 65535.0}
			count++
		}

		var sum float32
		for _, e := range entries[:count] {
			sum += e.Weight
		}
		if sum == 0 {
			for i := range entries {
				entries[i].Weight = 0.25
			}
		} else {
			for i := 0; i < count; i++ {
				entries[i].Weight /= sum
			}
		}
		out[v] = entries
	}
	return out, nil
}

func le16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

// resolveWeightJoints validates that every joint index a mesh's weights
// reference resolves against the skin's joint_names vocabulary, failing the
// asset on any out-of-range index.
func resolveWeightJoints(m *Mesh, skin *Skin) error {
	check := func(g *Geometry) error {
		if g == nil {
			return nil
		}
		for _, slots := range g.Weights {
			for _, jw := range slots {
				if jw.Weight == 0 {
					continue
				}
				if int(jw.JointIndex) >= len(skin.JointNames) {
					return fmt.Errorf("assets: weight references joint index %d beyond %d known joints", jw.JointIndex, len(skin.JointNames))
				}
			}
		}
		return nil
	}
	for _, g := range []*Geometry{m.HighLOD, m.MediumLOD, m.LowLOD, m.LowestLOD} {
		if err := check(g); err != nil {
			return err
		}
	}
	return nil
}
