package capture

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/osgrid/metaviewer/internal/packets"
	"github.com/osgrid/metaviewer/internal/wire"
)

func TestReplayDecodesValidDatagram(t *testing.T) {
	body := packets.EncodePacketAck(packets.PacketAck{IDs: []uint32{7, 8}})
	encoded, err := wire.EncodePacket(wire.Header{
		Sequence: 1,
		Msg:      wire.MsgID{Frequency: wire.FrequencyFixed, ID: 251},
	}, body, nil)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}

	datagrams := []Datagram{{SrcPort: 13000, DstPort: 9000, Payload: encoded}}
	decoded := Replay(datagrams)
	if len(decoded) != 1 {
		t.Fatalf("expected 1 decoded datagram, got %d", len(decoded))
	}
	if decoded[0].Err != nil {
		t.Fatalf("unexpected decode error: %v", decoded[0].Err)
	}
	ack, ok := decoded[0].Message.(packets.PacketAck)
	if !ok {
		t.Fatalf("expected PacketAck, got %T", decoded[0].Message)
	}
	want := packets.PacketAck{IDs: []uint32{7, 8}}
	if diff := cmp.Diff(want, ack); diff != "" {
		t.Errorf("ack mismatch (-want +got):\n%s", diff)
	}
}

func TestReplaySurfacesDecodeErrors(t *testing.T) {
	datagrams := []Datagram{{Payload: []byte{0x00}}}
	decoded := Replay(datagrams)
	if len(decoded) != 1 {
		t.Fatalf("expected 1 result, got %d", len(decoded))
	}
	if decoded[0].Err == nil {
		t.Fatal("expected a decode error for a truncated packet")
	}
}
