// Package meshgen packages a finalized avatar's skinned meshes and global
// skeleton into a glTF-style binary container.
package meshgen

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

func floatBits(f float32) uint32  { return math.Float32bits(f) }
func doubleBits(f float64) uint64 { return math.Float64bits(f) }

// containerMagic identifies the container format; containerVersion allows
// the front-end to reject containers from an incompatible packager.
const (
	containerMagic   uint32 = 0x4D455348 // "MESH"
	containerVersion uint32 = 1
)

// SkinnedMeshPart is one avatar attachment's mesh geometry plus its
// per-vertex skinning data.
type SkinnedMeshPart struct {
	Name         string
	Positions    [][3]float32
	Indices      []uint16
	JointIndices [][4]uint8
	JointWeights [][4]float32
}

// LocalTransform is a joint's decomposed local transform, taken from the
// *last* frame of its transform stack.
type LocalTransform struct {
	Scale       [3]float32
	Rotation    quat.Number
	Translation [3]float32
}

// Joint is one node of the global skeleton.
type Joint struct {
	Name              string
	ParentIndex       int // -1 for a root joint
	Transform         LocalTransform
	InverseBindMatrix [16]float64 // column-major
}

// alignTo4 pads n up to the next multiple of 4.
func alignTo4(n int) int {
	if rem := n % 4; rem != 0 {
		return n + (4 - rem)
	}
	return n
}

// bufferView describes one byte range within the single concatenated
// binary buffer, in the same spirit as a glTF bufferView.
type bufferView struct {
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
}

// accessor describes the typed interpretation of a bufferView's bytes.
type accessor struct {
	BufferView    int       `json:"bufferView"`
	ComponentType string    `json:"componentType"`
	Count         int       `json:"count"`
	Type          string    `json:"type"`
	Min           []float64 `json:"min,omitempty"`
	Max           []float64 `json:"max,omitempty"`
}

// meshPrimitive ties a mesh part's accessors together.
type meshPrimitive struct {
	PositionAccessor int `json:"positionAccessor"`
	IndexAccessor    int `json:"indexAccessor"`
	JointAccessor    int `json:"jointAccessor"`
	WeightAccessor   int `json:"weightAccessor"`
}

type meshEntry struct {
	Name      string        `json:"name"`
	Primitive meshPrimitive `json:"primitive"`
}

type nodeEntry struct {
	Name        string     `json:"name"`
	Parent      int        `json:"parent"` // -1 for root
	Children    []int      `json:"children,omitempty"`
	Translation [3]float32 `json:"translation"`
	Rotation    [4]float64 `json:"rotation"` // x, y, z, w
	Scale       [3]float32 `json:"scale"`
	Mesh        *int       `json:"mesh,omitempty"`
	Skin        *int       `json:"skin,omitempty"`
}

type skinEntry struct {
	Joints              []int `json:"joints"`
	InverseBindAccessor int   `json:"inverseBindAccessor"`
}

// manifest is the JSON document stored ahead of the binary buffer.
type manifest struct {
	BufferByteLength int          `json:"bufferByteLength"`
	BufferViews      []bufferView `json:"bufferViews"`
	Accessors        []accessor   `json:"accessors"`
	Meshes           []meshEntry  `json:"meshes"`
	Nodes            []nodeEntry  `json:"nodes"`
	Skins            []skinEntry  `json:"skins"`
	RootNode         int          `json:"rootNode"`
}

// bufferBuilder accumulates the concatenated binary buffer, padding each
// appended block to a 4-byte boundary.
type bufferBuilder struct {
	buf bytes.Buffer
}

func (b *bufferBuilder) append(data []byte) bufferView {
	offset := b.buf.Len()
	b.buf.Write(data)
	padded := alignTo4(len(data))
	for i := len(data); i < padded; i++ {
		b.buf.WriteByte(0)
	}
	return bufferView{ByteOffset: offset, ByteLength: len(data)}
}

// BuildContainer packages parts and the global skeleton into the binary
// container format. The skeleton is walked in joint
// insertion order; parent-child links are derived by scanning
// Joint.ParentIndex.
func BuildContainer(parts []SkinnedMeshPart, joints []Joint) ([]byte, error) {
	if len(joints) == 0 {
		return nil, fmt.Errorf("meshgen: at least one joint is required")
	}

	var bb bufferBuilder
	var m manifest

	for _, part := range parts {
		posData := encodeFloat32Triples(part.Positions)
		posView := bb.append(posData)
		m.BufferViews = append(m.BufferViews, posView)
		posAccessor := len(m.Accessors)
		min, max := boundingBox(part.Positions)
		m.Accessors = append(m.Accessors, accessor{
			BufferView: posAccessor, ComponentType: "f32", Count: len(part.Positions), Type: "VEC3",
			Min: min, Max: max,
		})

		idxData := encodeUint16s(part.Indices)
		idxView := bb.append(idxData)
		m.BufferViews = append(m.BufferViews, idxView)
		idxAccessor := len(m.Accessors)
		m.Accessors = append(m.Accessors, accessor{
			BufferView: idxAccessor, ComponentType: "u16", Count: len(part.Indices), Type: "SCALAR",
		})

		jointData := encodeUint8Quads(part.JointIndices)
		jointView := bb.append(jointData)
		m.BufferViews = append(m.BufferViews, jointView)
		jointAccessor := len(m.Accessors)
		m.Accessors = append(m.Accessors, accessor{
			BufferView: jointAccessor, ComponentType: "u8", Count: len(part.JointIndices), Type: "VEC4",
		})

		weightData := encodeFloat32Quads(part.JointWeights)
		weightView := bb.append(weightData)
		m.BufferViews = append(m.BufferViews, weightView)
		weightAccessor := len(m.Accessors)
		m.Accessors = append(m.Accessors, accessor{
			BufferView: weightAccessor, ComponentType: "f32", Count: len(part.JointWeights), Type: "VEC4",
		})

		m.Meshes = append(m.Meshes, meshEntry{
			Name: part.Name,
			Primitive: meshPrimitive{
				PositionAccessor: posAccessor,
				IndexAccessor:    idxAccessor,
				JointAccessor:    jointAccessor,
				WeightAccessor:   weightAccessor,
			},
		})
	}

	// inverse-bind-matrix block, in the same joint order as the node list.
	ibmData := encodeMatrices(joints)
	ibmView := bb.append(ibmData)
	m.BufferViews = append(m.BufferViews, ibmView)
	ibmAccessor := len(m.Accessors)
	m.Accessors = append(m.Accessors, accessor{
		BufferView: ibmAccessor, ComponentType: "f64", Count: len(joints), Type: "MAT4",
	})

	nodeOffset := 1 // root wrapper node occupies index 0
	joints64 := make([]int, len(joints))
	for i, j := range joints {
		joints64[i] = i + nodeOffset
		node := nodeEntry{
			Name:        j.Name,
			Parent:      -1,
			Translation: j.Transform.Translation,
			Rotation:    [4]float64{j.Transform.Rotation.Imag, j.Transform.Rotation.Jmag, j.Transform.Rotation.Kmag, j.Transform.Rotation.Real},
			Scale:       j.Transform.Scale,
		}
		if j.ParentIndex >= 0 {
			node.Parent = j.ParentIndex + nodeOffset
		} else {
			node.Parent = 0 // attach skeleton roots under the wrapper root node
		}
		m.Nodes = append(m.Nodes, node)
	}
	// every mesh-bearing node references the single skin
	skinIndex := 0
	for i := range parts {
		meshNode := nodeEntry{
			Name:   parts[i].Name,
			Parent: 0,
			Mesh:   intPtr(i),
			Skin:   intPtr(skinIndex),
		}
		m.Nodes = append(m.Nodes, meshNode)
	}

	// build parent -> children links by scanning parents.
	for idx, node := range m.Nodes {
		nodeID := idx + nodeOffset
		if node.Parent < 0 {
			continue
		}
		if node.Parent == 0 {
			continue // linked from the root wrapper below
		}
		parentIdx := node.Parent - nodeOffset
		if parentIdx >= 0 && parentIdx < len(m.Nodes) {
			m.Nodes[parentIdx].Children = append(m.Nodes[parentIdx].Children, nodeID)
		}
	}

	var rootChildren []int
	for idx, node := range m.Nodes {
		if node.Parent == 0 {
			rootChildren = append(rootChildren, idx+nodeOffset)
		}
	}
	rootNode := nodeEntry{Name: "root", Parent: -1, Children: rootChildren, Scale: [3]float32{1, 1, 1}}
	allNodes := append([]nodeEntry{rootNode}, m.Nodes...)
	m.Nodes = allNodes
	m.RootNode = 0

	m.Skins = []skinEntry{{Joints: joints64, InverseBindAccessor: ibmAccessor}}
	m.BufferByteLength = bb.buf.Len()

	manifestJSON, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("meshgen: marshal manifest: %w", err)
	}

	header := make([]byte, 12)
	binary.LittleEndian.PutUint32(header[0:4], containerMagic)
	binary.LittleEndian.PutUint32(header[4:8], containerVersion)
	total := len(header) + len(manifestJSON) + bb.buf.Len()
	binary.LittleEndian.PutUint32(header[8:12], uint32(total))

	out := make([]byte, 0, total)
	out = append(out, header...)
	out = append(out, manifestJSON...)
	out = append(out, bb.buf.Bytes()...)
	return out, nil
}

func intPtr(v int) *int { return &v }

func boundingBox(positions [][3]float32) ([]float64, []float64) {
	if len(positions) == 0 {
		return nil, nil
	}
	min := [3]float64{float64(positions[0][0]), float64(positions[0][1]), float64(positions[0][2])}
	max := min
	for _, p := range positions[1:] {
		for i := 0; i < 3; i++ {
			v := float64(p[i])
			if v < min[i] {
				min[i] = v
			}
			if v > max[i] {
				max[i] = v
			}
		}
	}
	return min[:], max[:]
}

func encodeFloat32Triples(vs [][3]float32) []byte {
	out := make([]byte, 0, len(vs)*12)
	for _, v := range vs {
		for _, f := range v {
			out = binary.LittleEndian.AppendUint32(out, floatBits(f))
		}
	}
	return out
}

func encodeFloat32Quads(vs [][4]float32) []byte {
	out := make([]byte, 0, len(vs)*16)
	for _, v := range vs {
		for _, f := range v {
			out = binary.LittleEndian.AppendUint32(out, floatBits(f))
		}
	}
	return out
}

func encodeUint8Quads(vs [][4]uint8) []byte {
	out := make([]byte, 0, len(vs)*4)
	for _, v := range vs {
		out = append(out, v[0], v[1], v[2], v[3])
	}
	return out
}

func encodeUint16s(vs []uint16) []byte {
	out := make([]byte, 0, len(vs)*2)
	for _, v := range vs {
		out = binary.LittleEndian.AppendUint16(out, v)
	}
	return out
}

func encodeMatrices(joints []Joint) []byte {
	out := make([]byte, 0, len(joints)*16*8)
	for _, j := range joints {
		for _, v := range j.InverseBindMatrix {
			out = binary.LittleEndian.AppendUint64(out, doubleBits(v))
		}
	}
	return out
}
