package packets

import (
	"fmt"

	"github.com/osgrid/metaviewer/internal/wire"
)

// LayerData carries one terrain/wind/cloud layer. decodeLayerData splits off
// the leading layer-type byte and keeps the rest as Data without parsing it
// or filtering by layer type; world.DecodeTerrainPatches parses Data into
// patches.
//
// This type and AgentThrottle below are driven by the login handshake's
// AgentThrottle step and the steady-state LayerData terrain handler. Their
// (frequency, id) assignments here follow the well-known OpenSim/SecondLife
// wire protocol (LayerData = Low 95, AgentThrottle = High 81).
type LayerData struct {
	LayerType byte
	Data      []byte
}

func (LayerData) Kind() Kind { return KindLayerData }

func decodeLayerData(b []byte) (Message, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("packets: LayerData too short")
	}
	return LayerData{LayerType: b[0], Data: append([]byte(nil), b[1:]...)}, nil
}

// AgentThrottle sets the per-category outbound bandwidth caps the
// simulator should apply to this circuit.
type AgentThrottle struct {
	GenCounter uint32
	Throttles  [7]float32 // resend, land, wind, cloud, task, texture, asset
}

func (AgentThrottle) Kind() Kind { return KindAgentThrottle }

func decodeAgentThrottle(b []byte) (Message, error) {
	if len(b) < 4+7*4 {
		return nil, fmt.Errorf("packets: AgentThrottle too short")
	}
	at := AgentThrottle{GenCounter: wire.DecodeU32(b[0:4])}
	for i := 0; i < 7; i++ {
		off := 4 + i*4
		at.Throttles[i] = wire.DecodeF32(b[off : off+4])
	}
	return at, nil
}

// EncodeAgentThrottle serializes an outbound AgentThrottle body.
func EncodeAgentThrottle(a AgentThrottle) []byte {
	out := make([]byte, 0, 4+7*4)
	out = append(out, wire.EncodeU32(a.GenCounter)...)
	for _, t := range a.Throttles {
		out = append(out, wire.EncodeF32(t)...)
	}
	return out
}
