package packets

import (
	"fmt"

	"github.com/osgrid/metaviewer/internal/wire"
)

// StartPingCheck is sent by the simulator to measure round-trip latency.
type StartPingCheck struct {
	PingID        uint8
	OldestUnacked uint32
}

func (StartPingCheck) Kind() Kind { return KindStartPingCheck }

func decodeStartPingCheck(b []byte) (Message, error) {
	if len(b) < 5 {
		return nil, fmt.Errorf("packets: StartPingCheck too short: %d bytes", len(b))
	}
	return StartPingCheck{PingID: b[0], OldestUnacked: wire.DecodeU32(b[1:5])}, nil
}

// CompletePingCheck echoes the ping id back to the simulator.
type CompletePingCheck struct {
	PingID uint8
}

func (CompletePingCheck) Kind() Kind { return KindCompletePingCheck }

func decodeCompletePingCheck(b []byte) (Message, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("packets: CompletePingCheck too short")
	}
	return CompletePingCheck{PingID: b[0]}, nil
}

// EncodeCompletePingCheck serializes the reply body for an observed ping id.
func EncodeCompletePingCheck(p CompletePingCheck) []byte {
	return []byte{p.PingID}
}
