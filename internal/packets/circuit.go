package packets

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/osgrid/metaviewer/internal/wire"
)

// UseCircuitCode opens a circuit with the simulator, the first message of
// the login sub-protocol.
type UseCircuitCode struct {
	CircuitCode uint32
	SessionID   uuid.UUID
	AgentID     uuid.UUID
}

func (UseCircuitCode) Kind() Kind { return KindUseCircuitCode }

func decodeUseCircuitCode(b []byte) (Message, error) {
	if len(b) < 36 {
		return nil, fmt.Errorf("packets: UseCircuitCode too short")
	}
	sessionID, err := readUUID(b[4:20])
	if err != nil {
		return nil, err
	}
	agentID, err := readUUID(b[20:36])
	if err != nil {
		return nil, err
	}
	return UseCircuitCode{
		CircuitCode: wire.DecodeU32(b[0:4]),
		SessionID:   sessionID,
		AgentID:     agentID,
	}, nil
}

// EncodeUseCircuitCode serializes an outbound UseCircuitCode.
func EncodeUseCircuitCode(m UseCircuitCode) []byte {
	out := make([]byte, 0, 36)
	out = append(out, wire.EncodeU32(m.CircuitCode)...)
	out = append(out, m.SessionID[:]...)
	out = append(out, m.AgentID[:]...)
	return out
}

// RegionHandshake is sent by the simulator after UseCircuitCode and carries
// the region's static identity.
type RegionHandshake struct {
	RegionFlags        uint32
	SimAccess          uint8
	SimName            string
	SimOwner           uuid.UUID
	IsEstateManager    bool
	WaterHeight        float32
	BillableFactor     float32
	CacheID            uuid.UUID
	TerrainBase        [4]uuid.UUID
	TerrainDetail      [4]uuid.UUID
	TerrainStartHeight [4]float32
	TerrainHeightRange [4]float32
}

func (RegionHandshake) Kind() Kind { return KindRegionHandshake }

func decodeRegionHandshake(body []byte) (Message, error) {
	r := &reader{b: body}
	var rh RegionHandshake
	var err error

	if rh.RegionFlags, err = r.u32(); err != nil {
		return nil, err
	}
	if rh.SimAccess, err = r.u8(); err != nil {
		return nil, err
	}
	nameLen, err := r.u8()
	if err != nil {
		return nil, err
	}
	nameBytes, err := r.bytes(int(nameLen))
	if err != nil {
		return nil, err
	}
	rh.SimName = string(nameBytes)
	if rh.SimOwner, err = r.uuid(); err != nil {
		return nil, err
	}
	estateByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	rh.IsEstateManager = estateByte != 0
	if rh.WaterHeight, err = r.f32(); err != nil {
		return nil, err
	}
	if rh.BillableFactor, err = r.f32(); err != nil {
		return nil, err
	}
	if rh.CacheID, err = r.uuid(); err != nil {
		return nil, err
	}
	for i := range rh.TerrainBase {
		if rh.TerrainBase[i], err = r.uuid(); err != nil {
			return nil, err
		}
	}
	for i := range rh.TerrainDetail {
		if rh.TerrainDetail[i], err = r.uuid(); err != nil {
			return nil, err
		}
	}
	for i := range rh.TerrainStartHeight {
		if rh.TerrainStartHeight[i], err = r.f32(); err != nil {
			return nil, err
		}
	}
	for i := range rh.TerrainHeightRange {
		if rh.TerrainHeightRange[i], err = r.f32(); err != nil {
			return nil, err
		}
	}
	return rh, nil
}

// RegionHandshakeReply acknowledges a RegionHandshake, the final step of
// the login sub-protocol before steady-state traffic begins.
type RegionHandshakeReply struct {
	AgentID   uuid.UUID
	SessionID uuid.UUID
	Flags     uint32
}

func (RegionHandshakeReply) Kind() Kind { return KindRegionHandshakeReply }

func decodeRegionHandshakeReply(b []byte) (Message, error) {
	if len(b) < 36 {
		return nil, fmt.Errorf("packets: RegionHandshakeReply too short")
	}
	agentID, err := readUUID(b[0:16])
	if err != nil {
		return nil, err
	}
	sessionID, err := readUUID(b[16:32])
	if err != nil {
		return nil, err
	}
	return RegionHandshakeReply{
		AgentID:   agentID,
		SessionID: sessionID,
		Flags:     wire.DecodeU32(b[32:36]),
	}, nil
}

// EncodeRegionHandshakeReply serializes an outbound RegionHandshakeReply.
func EncodeRegionHandshakeReply(m RegionHandshakeReply) []byte {
	out := make([]byte, 0, 36)
	out = append(out, m.AgentID[:]...)
	out = append(out, m.SessionID[:]...)
	out = append(out, wire.EncodeU32(m.Flags)...)
	return out
}

// DisableSimulator tells the viewer the circuit to a neighbor or the
// current region is being torn down.
type DisableSimulator struct{}

func (DisableSimulator) Kind() Kind { return KindDisableSimulator }

func decodeDisableSimulator(_ []byte) (Message, error) {
	return DisableSimulator{}, nil
}
