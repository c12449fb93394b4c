package wire

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDecodeTextureEntryRawDefaultsOnly(t *testing.T) {
	id := uuid.New()
	idBytes, _ := id.MarshalBinary()

	raw := append([]byte{0x00, 0x00}, idBytes...) // 2 padding + texture id, then nothing else
	te, err := DecodeTextureEntryRaw(raw)
	require.NoError(t, err)
	require.Equal(t, id, te.Default.TextureID)
	require.Empty(t, te.Faces)
}

func TestDecodeTextureEntryRawShortBlockIsDefault(t *testing.T) {
	te, err := DecodeTextureEntryRaw([]byte{0x01, 0x02})
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, te.Default.TextureID)
}

func TestRGBAInversion(t *testing.T) {
	out := invertRGBA([]byte{0x00, 0xFF, 0x10, 0xEF})
	require.Equal(t, [4]uint8{0xFF, 0x00, 0xEF, 0x10}, out)
}

func TestRotationNormalization(t *testing.T) {
	// i16 max should decode close to +pi and stay within (-pi, pi].
	b := []byte{0xFF, 0x7F} // little-endian int16 32767
	r := decodeRotationI16(b)
	require.InDelta(t, math.Pi, r, 0.001)
	require.LessOrEqual(t, r, float32(math.Pi))

	b2 := []byte{0x00, 0x80} // int16 -32768
	r2 := decodeRotationI16(b2)
	require.Greater(t, r2, float32(-math.Pi))
	require.LessOrEqual(t, r2, float32(math.Pi))
}

func TestForEachFaceVisitsSetBitsOnly(t *testing.T) {
	var seen []uint32
	forEachFace(0b1010, func(face uint32) { seen = append(seen, face) })
	require.Equal(t, []uint32{1, 3}, seen)
}

func TestReadFaceBitfieldRawSingleByte(t *testing.T) {
	mask, n, ok := readFaceBitfieldRaw([]byte{0x05, 0xAA})
	require.True(t, ok)
	require.Equal(t, uint32(5), mask)
	require.Equal(t, 1, n)
}

func TestReadFaceBitfieldRawZeroTerminates(t *testing.T) {
	_, _, ok := readFaceBitfieldRaw([]byte{0x00})
	require.False(t, ok)
}
