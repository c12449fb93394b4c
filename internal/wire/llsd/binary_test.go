package llsd

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMapRoundTrip(t *testing.T) {
	id := uuid.New()
	v := Value{Kind: KindMap, Map: map[string]Value{
		"name":    {Kind: KindString, Str: "RegionHandshake"},
		"version": {Kind: KindInt, Int: 42},
		"scale":   {Kind: KindReal, Real: 3.25},
		"owner":   {Kind: KindUUID, UUID: id},
		"active":  {Kind: KindBool, Bool: true},
	}}

	encoded := Encode(v)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, KindMap, decoded.Kind)
	require.Equal(t, "RegionHandshake", decoded.Map["name"].Str)
	require.Equal(t, int32(42), decoded.Map["version"].Int)
	require.InDelta(t, 3.25, decoded.Map["scale"].Real, 0.0001)
	require.Equal(t, id, decoded.Map["owner"].UUID)
	require.True(t, decoded.Map["active"].Bool)
}

func TestEncodeDecodeNestedArray(t *testing.T) {
	v := Value{Kind: KindArray, Array: []Value{
		{Kind: KindString, Str: "a"},
		{Kind: KindInt, Int: -7},
		{Kind: KindArray, Array: []Value{{Kind: KindString, Str: "nested"}}},
	}}
	encoded := Encode(v)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Array, 3)
	require.Equal(t, int32(-7), decoded.Array[1].Int)
	require.Equal(t, "nested", decoded.Array[2].Array[0].Str)
}

func TestDecodeUnknownTagFails(t *testing.T) {
	_, err := Decode([]byte{'Z'})
	require.Error(t, err)
}

func TestDecodeTruncatedLengthPrefixFails(t *testing.T) {
	_, err := Decode([]byte{'s', 0x00, 0x00, 0x00, 0x10, 'a', 'b'})
	require.Error(t, err)
}

func TestDecodeBinary(t *testing.T) {
	v := Value{Kind: KindBinary, Binary: []byte{1, 2, 3, 4}}
	decoded, err := Decode(Encode(v))
	require.NoError(t, err)
	require.Equal(t, v.Binary, decoded.Binary)
}
