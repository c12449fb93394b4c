package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{Reliable: true, Sequence: 1, Msg: MsgID{Frequency: FrequencyHigh, ID: 1}},
		{Reliable: true, Sequence: 42, Msg: MsgID{Frequency: FrequencyMedium, ID: 4}},
		{Reliable: true, Sequence: 1000, Msg: MsgID{Frequency: FrequencyLow, ID: 80}},
		{Sequence: 7, Msg: MsgID{Frequency: FrequencyFixed, ID: 251}},
	}
	for _, h := range cases {
		encoded := EncodeHeader(h)
		decoded, n, err := DecodeHeader(encoded)
		require.NoError(t, err)
		require.Equal(t, len(encoded), n)
		require.Equal(t, h.Reliable, decoded.Reliable)
		require.Equal(t, h.Sequence, decoded.Sequence)
		require.Equal(t, h.Msg, decoded.Msg)
	}
}

func TestDecodeHeaderTruncated(t *testing.T) {
	_, _, err := DecodeHeader([]byte{0x00, 0x00})
	require.Error(t, err)
	var codecErr *CodecError
	require.ErrorAs(t, err, &codecErr)
}

// TestPingRoundTrip decodes an inbound StartPingCheck datagram to ping id
// 42 with oldest-unacked 0.
func TestPingRoundTrip(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x2A, 0x00, 0x00, 0x00, 0x00}
	pkt, err := DecodePacket(raw)
	require.NoError(t, err)
	require.Equal(t, FrequencyHigh, pkt.Header.Msg.Frequency)
	require.Equal(t, uint32(1), pkt.Header.Msg.ID)
	require.Equal(t, byte(0x2A), pkt.Body[0])
}

func TestAppendedAcksScenario(t *testing.T) {
	body := []byte{0xAB, 0xCD}
	trailer := []byte{0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x07, 0x02}
	payload := append(append([]byte{}, body...), trailer...)

	h := Header{HasAppended: true, Sequence: 9, Msg: MsgID{Frequency: FrequencyHigh, ID: 1}}
	raw := append(EncodeHeader(h), payload...)

	pkt, err := DecodePacket(raw)
	require.NoError(t, err)
	require.Equal(t, []uint32{5, 7}, pkt.AppendedAcks)
	require.Equal(t, body, pkt.Body)
}

func TestEncodePacketTooManyAcks(t *testing.T) {
	acks := make([]uint32, 256)
	_, err := EncodePacket(Header{Msg: MsgID{Frequency: FrequencyHigh, ID: 1}}, nil, acks)
	require.Error(t, err)
}
