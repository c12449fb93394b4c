package packets

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/osgrid/metaviewer/internal/wire"
)

// agentUpdateLen is the fixed wire length of an AgentUpdate body (two
// UUIDs, two quaternions, one state byte, four Vec3 camera fields, far
// clip, control flags, one flag byte): 16+16+16+16+1+12*4+4+4+1 = 122.
const agentUpdateLen = 122

// AgentUpdate reports the agent's camera and movement-control state to the
// simulator every frame.
type AgentUpdate struct {
	AgentID      uuid.UUID
	SessionID    uuid.UUID
	BodyRotation [4]float32 // quaternion (w, x, y, z)
	HeadRotation [4]float32
	Typing       bool
	Editing      bool
	CameraCenter [3]float32
	CameraAtAxis [3]float32
	CameraLeft   [3]float32
	CameraUp     [3]float32
	Far          float32
	ControlFlags uint32
	HideTitle    bool
}

func (AgentUpdate) Kind() Kind { return KindAgentUpdate }

func decodeAgentUpdate(b []byte) (Message, error) {
	if len(b) < agentUpdateLen {
		return nil, fmt.Errorf("packets: AgentUpdate too short: need %d, got %d", agentUpdateLen, len(b))
	}
	agentID, err := readUUID(b[0:16])
	if err != nil {
		return nil, err
	}
	sessionID, err := readUUID(b[16:32])
	if err != nil {
		return nil, err
	}
	au := AgentUpdate{
		AgentID:      agentID,
		SessionID:    sessionID,
		BodyRotation: readQuat(b[32:48]),
		HeadRotation: readQuat(b[48:64]),
	}
	stateByte := b[64]
	au.Typing = stateByte&0x04 != 0
	au.Editing = stateByte&0x10 != 0
	au.CameraCenter = readVec3(b[65:77])
	au.CameraAtAxis = readVec3(b[77:89])
	au.CameraLeft = readVec3(b[89:101])
	au.CameraUp = readVec3(b[101:113])
	au.Far = wire.DecodeF32(b[113:117])
	au.ControlFlags = wire.DecodeU32(b[117:121])
	au.HideTitle = b[121]&0x01 != 0
	return au, nil
}

// EncodeAgentUpdate serializes an outbound AgentUpdate body.
func EncodeAgentUpdate(a AgentUpdate) []byte {
	out := make([]byte, 0, agentUpdateLen)
	out = append(out, a.AgentID[:]...)
	out = append(out, a.SessionID[:]...)
	out = append(out, writeQuat(a.BodyRotation)...)
	out = append(out, writeQuat(a.HeadRotation)...)
	var state byte
	if a.Typing {
		state |= 0x04
	}
	if a.Editing {
		state |= 0x10
	}
	out = append(out, state)
	out = append(out, writeVec3(a.CameraCenter)...)
	out = append(out, writeVec3(a.CameraAtAxis)...)
	out = append(out, writeVec3(a.CameraLeft)...)
	out = append(out, writeVec3(a.CameraUp)...)
	out = append(out, wire.EncodeF32(a.Far)...)
	out = append(out, wire.EncodeU32(a.ControlFlags)...)
	var flags byte
	if a.HideTitle {
		flags |= 0x01
	}
	out = append(out, flags)
	return out
}

// CompleteAgentMovement finishes the login sub-protocol after UseCircuitCode.
type CompleteAgentMovement struct {
	AgentID     uuid.UUID
	SessionID   uuid.UUID
	CircuitCode uint32
}

func (CompleteAgentMovement) Kind() Kind { return KindCompleteAgentMovement }

func decodeCompleteAgentMovement(b []byte) (Message, error) {
	if len(b) < 36 {
		return nil, fmt.Errorf("packets: CompleteAgentMovement too short")
	}
	agentID, err := readUUID(b[0:16])
	if err != nil {
		return nil, err
	}
	sessionID, err := readUUID(b[16:32])
	if err != nil {
		return nil, err
	}
	return CompleteAgentMovement{AgentID: agentID, SessionID: sessionID, CircuitCode: wire.DecodeU32(b[32:36])}, nil
}

// EncodeCompleteAgentMovement serializes an outbound CompleteAgentMovement.
func EncodeCompleteAgentMovement(m CompleteAgentMovement) []byte {
	out := make([]byte, 0, 36)
	out = append(out, m.AgentID[:]...)
	out = append(out, m.SessionID[:]...)
	out = append(out, wire.EncodeU32(m.CircuitCode)...)
	return out
}

// LogoutRequest asks the simulator to tear down the circuit cleanly.
type LogoutRequest struct {
	AgentID   uuid.UUID
	SessionID uuid.UUID
}

func (LogoutRequest) Kind() Kind { return KindLogoutRequest }

func decodeLogoutRequest(b []byte) (Message, error) {
	if len(b) < 32 {
		return nil, fmt.Errorf("packets: LogoutRequest too short")
	}
	agentID, err := readUUID(b[0:16])
	if err != nil {
		return nil, err
	}
	sessionID, err := readUUID(b[16:32])
	if err != nil {
		return nil, err
	}
	return LogoutRequest{AgentID: agentID, SessionID: sessionID}, nil
}

// EncodeLogoutRequest serializes an outbound LogoutRequest.
func EncodeLogoutRequest(m LogoutRequest) []byte {
	out := make([]byte, 0, 32)
	out = append(out, m.AgentID[:]...)
	out = append(out, m.SessionID[:]...)
	return out
}

func readVec3(b []byte) [3]float32 {
	return [3]float32{wire.DecodeF32(b[0:]), wire.DecodeF32(b[4:]), wire.DecodeF32(b[8:])}
}

func writeVec3(v [3]float32) []byte {
	out := make([]byte, 0, 12)
	out = append(out, wire.EncodeF32(v[0])...)
	out = append(out, wire.EncodeF32(v[1])...)
	out = append(out, wire.EncodeF32(v[2])...)
	return out
}

// readQuat/writeQuat use the (w, x, y, z) field order observed in the
// original implementation's QuatBytes helper.
func readQuat(b []byte) [4]float32 {
	return [4]float32{wire.DecodeF32(b[0:]), wire.DecodeF32(b[4:]), wire.DecodeF32(b[8:]), wire.DecodeF32(b[12:])}
}

func writeQuat(q [4]float32) []byte {
	out := make([]byte, 0, 16)
	out = append(out, wire.EncodeF32(q[0])...)
	out = append(out, wire.EncodeF32(q[1])...)
	out = append(out, wire.EncodeF32(q[2])...)
	out = append(out, wire.EncodeF32(q[3])...)
	return out
}
