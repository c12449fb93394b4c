// Package viewer wires the capability client, asset decoders, mesh
// packager, and UI bridge together into the world.Finalizer the session
// actor hands outfit-ready avatars to.
package viewer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/num/quat"

	"github.com/osgrid/metaviewer/internal/assets"
	"github.com/osgrid/metaviewer/internal/capability"
	"github.com/osgrid/metaviewer/internal/meshgen"
	"github.com/osgrid/metaviewer/internal/monitoring"
	"github.com/osgrid/metaviewer/internal/uibridge"
	"github.com/osgrid/metaviewer/internal/world"
)

// AvatarFinalizer implements world.Finalizer: for each mesh path in a
// ready outfit, it fetches the mesh and skin assets through the
// capability client, decodes them, merges the per-mesh skeletons into one
// rigged-mesh container, and emits it to the front-end over the UI
// bridge.
type AvatarFinalizer struct {
	caps    *capability.SeedClient
	capURL  string
	emitter *uibridge.Emitter
}

// NewAvatarFinalizer wires a capability client against a region's GetMesh
// capability URL and a UI bridge emitter to publish finished containers.
func NewAvatarFinalizer(caps *capability.SeedClient, meshCapURL string, emitter *uibridge.Emitter) *AvatarFinalizer {
	return &AvatarFinalizer{caps: caps, capURL: meshCapURL, emitter: emitter}
}

// FinalizeAvatar implements world.Finalizer.
func (f *AvatarFinalizer) FinalizeAvatar(ctx context.Context, agentID uuid.UUID, meshPaths []world.MeshPath) error {
	var parts []meshgen.SkinnedMeshPart
	jointIndex := make(map[string]int)
	var joints []meshgen.Joint

	for _, mp := range meshPaths {
		raw, err := f.caps.FetchAsset(ctx, f.capURL, capability.CategoryMesh, mp.AssetID)
		if err != nil {
			return fmt.Errorf("viewer: fetch mesh asset %s: %w", mp.AssetID, err)
		}
		mesh, err := assets.DecodeMesh(raw)
		if err != nil {
			return fmt.Errorf("viewer: decode mesh asset %s: %w", mp.AssetID, err)
		}
		if mesh.HighLOD == nil {
			return fmt.Errorf("viewer: mesh asset %s has no high_lod geometry", mp.AssetID)
		}

		part := meshgen.SkinnedMeshPart{
			Name:      mp.AssetID.String(),
			Positions: mesh.HighLOD.Positions,
			Indices:   mesh.HighLOD.Indices,
		}
		if mesh.Skin != nil {
			for i, name := range mesh.Skin.JointNames {
				if _, ok := jointIndex[name]; ok {
					continue
				}
				jointIndex[name] = len(joints)
				var ibm [16]float64
				if i < len(mesh.Skin.InverseBindMatrix) {
					ibm = mesh.Skin.InverseBindMatrix[i]
				}
				joints = append(joints, meshgen.Joint{
					Name:              name,
					ParentIndex:       -1,
					Transform:         meshgen.LocalTransform{Scale: [3]float32{1, 1, 1}, Rotation: quat.Number{Real: 1}},
					InverseBindMatrix: ibm,
				})
			}
			globalIndices := make([]uint8, len(mesh.Skin.JointNames))
			for i, name := range mesh.Skin.JointNames {
				globalIndices[i] = uint8(jointIndex[name])
			}
			part.JointIndices, part.JointWeights = flattenWeights(mesh.HighLOD.Weights, globalIndices)
		} else {
			part.JointIndices = make([][4]uint8, len(mesh.HighLOD.Positions))
			part.JointWeights = make([][4]float32, len(mesh.HighLOD.Positions))
		}
		parts = append(parts, part)
	}

	if len(joints) == 0 {
		joints = append(joints, meshgen.Joint{
			Name: "mPelvis", ParentIndex: -1,
			Transform:         meshgen.LocalTransform{Scale: [3]float32{1, 1, 1}, Rotation: quat.Number{Real: 1}},
			InverseBindMatrix: identityMatrix(),
		})
	}

	container, err := meshgen.BuildContainer(parts, joints)
	if err != nil {
		return fmt.Errorf("viewer: build container: %w", err)
	}

	monitoring.Logf("viewer: finalized avatar %s: %d parts, %d joints, %d container bytes",
		agentID.String(), len(parts), len(joints), len(container))

	if err := f.emitter.Emit(uibridge.EventMeshContainer, container); err != nil {
		return fmt.Errorf("viewer: emit mesh container: %w", err)
	}
	return nil
}

func identityMatrix() [16]float64 {
	var m [16]float64
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

// flattenWeights converts the mesh decoder's per-vertex joint-weight
// stream into the fixed 4-slot joint-index/weight pairs a rigged mesh
// container stores, remapping each mesh-local joint index through
// localToGlobal so every part's indices reference the merged skeleton.
func flattenWeights(weights [][4]assets.JointWeight, localToGlobal []uint8) ([][4]uint8, [][4]float32) {
	indices := make([][4]uint8, len(weights))
	w := make([][4]float32, len(weights))
	for v, entries := range weights {
		for slot, jw := range entries {
			idx := jw.JointIndex
			if int(idx) < len(localToGlobal) {
				idx = localToGlobal[idx]
			} else {
				idx = 0
			}
			indices[v][slot] = idx
			w[v][slot] = jw.Weight
		}
	}
	return indices, w
}
