// Package uibridge frames decoded scene events into length-bounded
// datagrams for delivery to the rendering front-end over a loopback
// channel.
package uibridge

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// maxDatagramBytes bounds a single outgoing datagram; payloads that do not
// fit after the frame header is subtracted are split into equally sized
// chunks.
const maxDatagramBytes = 1024

// headerSize is the fixed frame header: event type tag (1), within-event
// sequence number (2), total chunk count (2), envelope packet counter (4).
const headerSize = 1 + 2 + 2 + 4

const maxChunkPayload = maxDatagramBytes - headerSize

// EventType tags the kind of scene event a frame carries.
type EventType uint8

const (
	EventObjectUpdate EventType = iota + 1
	EventTerrainPatch
	EventAvatarAppearance
	EventMeshContainer
	EventSessionState
)

// Writer is the minimal datagram sink a Emitter writes frames to.
type Writer interface {
	Write(b []byte) (int, error)
}

// Emitter splits outgoing event payloads into framed chunks and writes
// them to a Writer, maintaining the envelope-level packet counter across
// every frame it emits.
type Emitter struct {
	w             Writer
	packetCounter uint32
}

// NewEmitter wraps a datagram Writer.
func NewEmitter(w Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit splits payload into frames and writes each in turn. Every call uses
// its own sequence-number domain (0..total-1); the packet counter keeps
// incrementing across calls.
func (e *Emitter) Emit(eventType EventType, payload []byte) error {
	total := chunkCount(len(payload))
	for seq := 0; seq < total; seq++ {
		start := seq * maxChunkPayload
		end := start + maxChunkPayload
		if end > len(payload) {
			end = len(payload)
		}
		frame := encodeFrame(eventType, uint16(seq), uint16(total), e.nextPacketCounter(), payload[start:end])
		if _, err := e.w.Write(frame); err != nil {
			return fmt.Errorf("uibridge: write frame %d/%d: %w", seq, total, err)
		}
	}
	return nil
}

func (e *Emitter) nextPacketCounter() uint32 {
	return atomic.AddUint32(&e.packetCounter, 1) - 1
}

func chunkCount(payloadLen int) int {
	if payloadLen == 0 {
		return 1
	}
	n := payloadLen / maxChunkPayload
	if payloadLen%maxChunkPayload != 0 {
		n++
	}
	return n
}

func encodeFrame(eventType EventType, seq, total uint16, packetCounter uint32, chunk []byte) []byte {
	frame := make([]byte, headerSize+len(chunk))
	frame[0] = byte(eventType)
	binary.LittleEndian.PutUint16(frame[1:3], seq)
	binary.LittleEndian.PutUint16(frame[3:5], total)
	binary.LittleEndian.PutUint32(frame[5:9], packetCounter)
	copy(frame[headerSize:], chunk)
	return frame
}

// Frame is a single decoded datagram, as the front-end would see it.
type Frame struct {
	EventType     EventType
	Seq           uint16
	Total         uint16
	PacketCounter uint32
	Payload       []byte
}

// DecodeFrame parses a single raw datagram back into its header fields and
// payload slice.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) < headerSize {
		return Frame{}, fmt.Errorf("uibridge: frame too short: %d bytes", len(raw))
	}
	return Frame{
		EventType:     EventType(raw[0]),
		Seq:           binary.LittleEndian.Uint16(raw[1:3]),
		Total:         binary.LittleEndian.Uint16(raw[3:5]),
		PacketCounter: binary.LittleEndian.Uint32(raw[5:9]),
		Payload:       append([]byte(nil), raw[headerSize:]...),
	}, nil
}

// Reassembler accumulates frames keyed by (packet counter family, seq,
// total) until a full event payload is available, mirroring the
// reassembly rule the front-end applies.
type Reassembler struct {
	pending map[reassemblyKey][][]byte
	totals  map[reassemblyKey]int
}

type reassemblyKey struct {
	eventType   EventType
	baseCounter uint32 // packet counter of the event's first chunk
}

// NewReassembler constructs an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{
		pending: make(map[reassemblyKey][][]byte),
		totals:  make(map[reassemblyKey]int),
	}
}

// Add ingests one frame. It returns the fully reassembled payload and true
// once every chunk for that frame's event has arrived.
func (r *Reassembler) Add(f Frame) ([]byte, bool) {
	key := reassemblyKey{eventType: f.EventType, baseCounter: f.PacketCounter - uint32(f.Seq)}
	chunks, ok := r.pending[key]
	if !ok {
		chunks = make([][]byte, f.Total)
		r.pending[key] = chunks
		r.totals[key] = int(f.Total)
	}
	chunks[f.Seq] = f.Payload

	for _, c := range chunks {
		if c == nil {
			return nil, false
		}
	}
	delete(r.pending, key)
	delete(r.totals, key)

	out := make([]byte, 0)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out, true
}
