package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecErrorMessage(t *testing.T) {
	err := shortRead("truncated header", 3, 6, 2)
	require.Contains(t, err.Error(), "truncated header")
	require.Contains(t, err.Error(), "offset 3")
}
