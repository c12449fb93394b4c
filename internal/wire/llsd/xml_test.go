package llsd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeXMLArray(t *testing.T) {
	v := Value{Kind: KindArray, Array: []Value{
		{Kind: KindString, Str: "ViewerAsset"},
		{Kind: KindString, Str: "FetchInventory2"},
	}}
	doc := EncodeXML(v)
	decoded, err := DecodeXML(doc)
	require.NoError(t, err)
	require.Len(t, decoded.Array, 2)
	require.Equal(t, "ViewerAsset", decoded.Array[0].Str)
}

func TestEncodeDecodeXMLMap(t *testing.T) {
	v := Value{Kind: KindMap, Map: map[string]Value{
		"ViewerAsset": {Kind: KindString, Str: "https://sim.example.com/cap/asset"},
	}}
	doc := EncodeXML(v)
	decoded, err := DecodeXML(doc)
	require.NoError(t, err)
	require.Equal(t, "https://sim.example.com/cap/asset", decoded.Map["ViewerAsset"].Str)
}

func TestDecodeXMLRejectsNonLLSDRoot(t *testing.T) {
	_, err := DecodeXML([]byte(`<not-llsd><array/></not-llsd>`))
	require.Error(t, err)
}

func TestDecodeXMLEscapesSpecialCharacters(t *testing.T) {
	v := Value{Kind: KindString, Str: "<tag> & \"quoted\""}
	doc := EncodeXML(v)
	decoded, err := DecodeXML(doc)
	require.NoError(t, err)
	require.Equal(t, v.Str, decoded.Str)
}
