package assets

import (
	"fmt"

	"github.com/osgrid/metaviewer/internal/wire/llsd"
)

// decodeLLSDMap decodes blob and requires the result to be an LLSD map.
func decodeLLSDMap(blob []byte) (map[string]llsd.Value, error) {
	v, err := llsd.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("decode llsd: %w", err)
	}
	if v.Kind != llsd.KindMap {
		return nil, fmt.Errorf("expected llsd map, got kind %d", v.Kind)
	}
	return v.Map, nil
}

func readStringArray(m map[string]llsd.Value, key string) ([]string, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("missing %s", key)
	}
	if v.Kind != llsd.KindArray {
		return nil, fmt.Errorf("%s is not an array", key)
	}
	out := make([]string, 0, len(v.Array))
	for _, e := range v.Array {
		if e.Kind != llsd.KindString {
			return nil, fmt.Errorf("%s element is not a string", key)
		}
		out = append(out, e.Str)
	}
	return out, nil
}

func readMatrix(m map[string]llsd.Value, key string) (Matrix4, error) {
	v, ok := m[key]
	if !ok {
		return Matrix4{}, fmt.Errorf("missing %s", key)
	}
	return parseMatrix(v, key)
}

func readMatrixArray(m map[string]llsd.Value, key string) ([]Matrix4, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("missing %s", key)
	}
	if v.Kind != llsd.KindArray {
		return nil, fmt.Errorf("%s is not an array", key)
	}
	out := make([]Matrix4, 0, len(v.Array))
	for i, e := range v.Array {
		mat, err := parseMatrix(e, fmt.Sprintf("%s[%d]", key, i))
		if err != nil {
			return nil, err
		}
		out = append(out, mat)
	}
	return out, nil
}

func parseMatrix(v llsd.Value, label string) (Matrix4, error) {
	if v.Kind != llsd.KindArray || len(v.Array) != 16 {
		return Matrix4{}, fmt.Errorf("%s must be a 16-element array", label)
	}
	var mat Matrix4
	for i, e := range v.Array {
		if e.Kind != llsd.KindReal {
			return Matrix4{}, fmt.Errorf("%s[%d] is not a real", label, i)
		}
		mat[i] = e.Real
	}
	return mat, nil
}
