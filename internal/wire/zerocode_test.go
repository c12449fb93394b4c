package wire

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestZeroCodingScenario checks a run of zero bytes collapses to a single
// run-length marker and expands back byte for byte.
func TestZeroCodingScenario(t *testing.T) {
	decoded := []byte{0x11, 0x00, 0x00, 0x00, 0x22}
	encoded := zeroEncode(decoded)
	require.Equal(t, []byte{0x11, 0x00, 0x03, 0x22}, encoded)

	roundTripped, err := zeroDecode(encoded)
	require.NoError(t, err)
	require.Equal(t, decoded, roundTripped)
}

func TestZeroCodingRoundTripArbitraryRuns(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(512)
		body := make([]byte, n)
		for i := range body {
			if rng.Intn(3) == 0 {
				body[i] = 0x00
			} else {
				body[i] = byte(rng.Intn(256))
			}
		}
		encoded := zeroEncode(body)
		decoded, err := zeroDecode(encoded)
		require.NoError(t, err)
		require.Equal(t, body, decoded)
	}
}

func TestZeroDecodeTruncatedRun(t *testing.T) {
	_, err := zeroDecode([]byte{0x11, 0x00})
	require.Error(t, err)
}
