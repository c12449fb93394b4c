package assets

import (
	"testing"

	"github.com/osgrid/metaviewer/internal/wire/llsd"
)

func identityMatrixValue() llsd.Value {
	vals := make([]llsd.Value, 16)
	for i := range vals {
		if i%5 == 0 {
			vals[i] = llsd.Value{Kind: llsd.KindReal, Real: 1}
		} else {
			vals[i] = llsd.Value{Kind: llsd.KindReal, Real: 0}
		}
	}
	return llsd.Value{Kind: llsd.KindArray, Array: vals}
}

func TestDecodeSkinBlockRoundTrip(t *testing.T) {
	skinLLSD := llsd.Value{Kind: llsd.KindMap, Map: map[string]llsd.Value{
		"joint_names": {Kind: llsd.KindArray, Array: []llsd.Value{
			{Kind: llsd.KindString, Str: "mPelvis"},
			{Kind: llsd.KindString, Str: "mTorso"},
		}},
		"inverse_bind_matrix": {Kind: llsd.KindArray, Array: []llsd.Value{
			identityMatrixValue(), identityMatrixValue(),
		}},
		"bind_shape_matrix": identityMatrixValue(),
	}}
	blob := llsd.Encode(skinLLSD)

	skin, err := decodeSkinBlock(blob)
	if err != nil {
		t.Fatalf("decodeSkinBlock: %v", err)
	}
	if len(skin.JointNames) != 2 || skin.JointNames[0] != "mPelvis" {
		t.Fatalf("unexpected joint names: %v", skin.JointNames)
	}
	if len(skin.InverseBindMatrix) != 2 {
		t.Fatalf("expected 2 inverse bind matrices, got %d", len(skin.InverseBindMatrix))
	}
	if skin.BindShapeMatrix[0] != 1 {
		t.Fatalf("expected identity bind shape matrix, got %v", skin.BindShapeMatrix)
	}
}

func TestDecodeSkinBlockRejectsUnknownJoint(t *testing.T) {
	skinLLSD := llsd.Value{Kind: llsd.KindMap, Map: map[string]llsd.Value{
		"joint_names": {Kind: llsd.KindArray, Array: []llsd.Value{
			{Kind: llsd.KindString, Str: "mNotARealJoint"},
		}},
		"inverse_bind_matrix": {Kind: llsd.KindArray, Array: []llsd.Value{identityMatrixValue()}},
		"bind_shape_matrix":   identityMatrixValue(),
	}}
	blob := llsd.Encode(skinLLSD)

	if _, err := decodeSkinBlock(blob); err == nil {
		t.Fatal("expected error for unknown joint name")
	}
}
