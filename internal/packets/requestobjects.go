package packets

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/osgrid/metaviewer/internal/wire"
)

// RequestMultipleObjectsEntry names one object to re-request by local id,
// tagged with the reason the cache considers it missing.
type RequestMultipleObjectsEntry struct {
	CacheMissType uint8 // 0 = Normal, 1 = Full
	LocalID       uint32
}

// RequestMultipleObjects asks the simulator to resend full object data for
// a batch of local ids that missed the local cache.
type RequestMultipleObjects struct {
	AgentID   uuid.UUID
	SessionID uuid.UUID
	Entries   []RequestMultipleObjectsEntry
}

func (RequestMultipleObjects) Kind() Kind { return KindRequestMultipleObjects }

func decodeRequestMultipleObjects(b []byte) (Message, error) {
	r := &reader{b: b}
	agentID, err := r.uuid()
	if err != nil {
		return nil, fmt.Errorf("packets: RequestMultipleObjects: %w", err)
	}
	sessionID, err := r.uuid()
	if err != nil {
		return nil, fmt.Errorf("packets: RequestMultipleObjects: %w", err)
	}
	count, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("packets: RequestMultipleObjects: %w", err)
	}
	entries := make([]RequestMultipleObjectsEntry, 0, count)
	for i := 0; i < int(count); i++ {
		missType, err := r.u8()
		if err != nil {
			return nil, fmt.Errorf("packets: RequestMultipleObjects entry %d: %w", i, err)
		}
		localID, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("packets: RequestMultipleObjects entry %d: %w", i, err)
		}
		entries = append(entries, RequestMultipleObjectsEntry{CacheMissType: missType, LocalID: localID})
	}
	return RequestMultipleObjects{AgentID: agentID, SessionID: sessionID, Entries: entries}, nil
}

// EncodeRequestMultipleObjects serializes an outbound RequestMultipleObjects.
func EncodeRequestMultipleObjects(m RequestMultipleObjects) []byte {
	out := make([]byte, 0, 16+16+1+len(m.Entries)*5)
	out = append(out, m.AgentID[:]...)
	out = append(out, m.SessionID[:]...)
	out = append(out, uint8(len(m.Entries)))
	for _, e := range m.Entries {
		out = append(out, e.CacheMissType)
		out = append(out, wire.EncodeU32(e.LocalID)...)
	}
	return out
}
