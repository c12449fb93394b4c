// Package packets defines the concrete message types the core exchanges
// with a region simulator and the (frequency, id)-keyed
// dispatch table that maps a decoded wire.DecodedPacket to one of them.
package packets

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/osgrid/metaviewer/internal/wire"
)

// Kind identifies a message's Go type without requiring a type switch at
// every call site.
type Kind int

const (
	KindStartPingCheck Kind = iota
	KindCompletePingCheck
	KindAgentUpdate
	KindObjectUpdate
	KindObjectUpdateCompressed
	KindObjectUpdateCached
	KindImprovedTerseObjectUpdate
	KindUseCircuitCode
	KindRegionHandshake
	KindRegionHandshakeReply
	KindDisableSimulator
	KindCompleteAgentMovement
	KindLogoutRequest
	KindPacketAck
	KindLayerData
	KindAgentThrottle
	KindRequestMultipleObjects
)

// Message is implemented by every concrete packet body type.
type Message interface {
	Kind() Kind
}

// decodeFunc decodes a packet body (post header/zero-coding/acks) into a
// Message.
type decodeFunc func(body []byte) (Message, error)

type dispatchKey struct {
	freq wire.Frequency
	id   uint32
}

var dispatchTable = map[dispatchKey]decodeFunc{
	{wire.FrequencyHigh, 1}:    decodeStartPingCheck,
	{wire.FrequencyHigh, 2}:    decodeCompletePingCheck,
	{wire.FrequencyHigh, 4}:    decodeAgentUpdate,
	{wire.FrequencyHigh, 12}:   decodeObjectUpdate,
	{wire.FrequencyHigh, 13}:   decodeObjectUpdateCompressed,
	{wire.FrequencyHigh, 14}:   decodeObjectUpdateCached,
	{wire.FrequencyHigh, 15}:   decodeImprovedTerseObjectUpdate,
	{wire.FrequencyLow, 3}:     decodeUseCircuitCode,
	{wire.FrequencyLow, 80}:    decodeRegionHandshake,
	{wire.FrequencyLow, 149}:   decodeRegionHandshakeReply,
	{wire.FrequencyLow, 152}:   decodeDisableSimulator,
	{wire.FrequencyLow, 249}:   decodeCompleteAgentMovement,
	{wire.FrequencyLow, 252}:   decodeLogoutRequest,
	{wire.FrequencyFixed, 251}: decodePacketAck,
	{wire.FrequencyLow, 95}:    decodeLayerData,
	{wire.FrequencyHigh, 81}:   decodeAgentThrottle,
	{wire.FrequencyLow, 102}:   decodeRequestMultipleObjects,
}

// Decode looks up the body decoder for (freq, id) and runs it. An
// unregistered (frequency, id) pair returns an error naming the unknown
// combination.
func Decode(freq wire.Frequency, id uint32, body []byte) (Message, error) {
	fn, ok := dispatchTable[dispatchKey{freq, id}]
	if !ok {
		return nil, fmt.Errorf("packets: no decoder registered for (%s, %d)", freq, id)
	}
	return fn(body)
}

// MsgIDFor returns the (frequency, id) pair a given Kind is sent under, for
// use by encoders constructing an outbound wire.Header.
func MsgIDFor(k Kind) wire.MsgID {
	switch k {
	case KindStartPingCheck:
		return wire.MsgID{Frequency: wire.FrequencyHigh, ID: 1}
	case KindCompletePingCheck:
		return wire.MsgID{Frequency: wire.FrequencyHigh, ID: 2}
	case KindAgentUpdate:
		return wire.MsgID{Frequency: wire.FrequencyHigh, ID: 4}
	case KindObjectUpdate:
		return wire.MsgID{Frequency: wire.FrequencyHigh, ID: 12}
	case KindObjectUpdateCompressed:
		return wire.MsgID{Frequency: wire.FrequencyHigh, ID: 13}
	case KindObjectUpdateCached:
		return wire.MsgID{Frequency: wire.FrequencyHigh, ID: 14}
	case KindImprovedTerseObjectUpdate:
		return wire.MsgID{Frequency: wire.FrequencyHigh, ID: 15}
	case KindUseCircuitCode:
		return wire.MsgID{Frequency: wire.FrequencyLow, ID: 3}
	case KindRegionHandshake:
		return wire.MsgID{Frequency: wire.FrequencyLow, ID: 80}
	case KindRegionHandshakeReply:
		return wire.MsgID{Frequency: wire.FrequencyLow, ID: 149}
	case KindDisableSimulator:
		return wire.MsgID{Frequency: wire.FrequencyLow, ID: 152}
	case KindCompleteAgentMovement:
		return wire.MsgID{Frequency: wire.FrequencyLow, ID: 249}
	case KindLogoutRequest:
		return wire.MsgID{Frequency: wire.FrequencyLow, ID: 252}
	case KindPacketAck:
		return wire.MsgID{Frequency: wire.FrequencyFixed, ID: 251}
	case KindLayerData:
		return wire.MsgID{Frequency: wire.FrequencyLow, ID: 95}
	case KindAgentThrottle:
		return wire.MsgID{Frequency: wire.FrequencyHigh, ID: 81}
	case KindRequestMultipleObjects:
		return wire.MsgID{Frequency: wire.FrequencyLow, ID: 102}
	default:
		panic(fmt.Sprintf("packets: unhandled kind %d", k))
	}
}

// readUUID reads a 16-byte UUID and advances no cursor (helper for the
// fixed-layout decoders below, which track offsets manually).
func readUUID(b []byte) (uuid.UUID, error) {
	if len(b) < 16 {
		return uuid.UUID{}, fmt.Errorf("packets: short read decoding uuid: need 16, got %d", len(b))
	}
	return uuid.FromBytes(b[:16])
}
