package wire

import "fmt"

// Frequency is the packet's frequency class, which determines the header's
// message-id width.
type Frequency uint8

const (
	FrequencyHigh Frequency = iota
	FrequencyMedium
	FrequencyLow
	FrequencyFixed
)

func (f Frequency) String() string {
	switch f {
	case FrequencyHigh:
		return "High"
	case FrequencyMedium:
		return "Medium"
	case FrequencyLow:
		return "Low"
	case FrequencyFixed:
		return "Fixed"
	default:
		return "Unknown"
	}
}

// Header flags, bit-packed into the first byte of every datagram.
const (
	flagZeroCoded    byte = 0x80
	flagReliable     byte = 0x40
	flagResent       byte = 0x20
	flagAppendedAcks byte = 0x10
)

// MsgID uniquely identifies a packet body variant together with its
// Frequency.
type MsgID struct {
	Frequency Frequency
	ID        uint32
}

// Header is the decoded form of a packet's APCI-equivalent framing: the
// flag byte, sequence number, and message id.
type Header struct {
	ZeroCoded    bool
	Reliable     bool
	Resent       bool
	HasAppended  bool
	Sequence     uint32
	Msg          MsgID
	headerLength int // bytes consumed decoding the header, used by DecodePacket
}

// EncodeHeader writes the flag byte, big-endian sequence number, the single
// offset/extension byte, and the frequency-dependent message id prefix.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, 0, 10)

	var flags byte
	if h.ZeroCoded {
		flags |= flagZeroCoded
	}
	if h.Reliable {
		flags |= flagReliable
	}
	if h.Resent {
		flags |= flagResent
	}
	if h.HasAppended {
		flags |= flagAppendedAcks
	}
	buf = append(buf, flags)

	buf = append(buf, encodeU32BE(h.Sequence)...)

	buf = append(buf, 0x00) // extension/offset byte, unused

	switch h.Msg.Frequency {
	case FrequencyHigh:
		buf = append(buf, byte(h.Msg.ID))
	case FrequencyMedium:
		buf = append(buf, 0xFF, byte(h.Msg.ID))
	case FrequencyLow:
		buf = append(buf, 0xFF, 0xFF, byte(h.Msg.ID>>8), byte(h.Msg.ID))
	case FrequencyFixed:
		buf = append(buf, 0xFF, 0xFF, 0xFF, 0xFF, byte(h.Msg.ID))
	}

	return buf
}

// DecodeHeader parses the header prefix of a raw (not-yet-zero-decoded)
// datagram and returns the header plus the number of bytes it consumed.
func DecodeHeader(b []byte) (Header, int, error) {
	const fixedPrefix = 6 // flags(1) + sequence(4) + offset(1)
	if len(b) < fixedPrefix {
		return Header{}, 0, shortRead("truncated header", 0, fixedPrefix, len(b))
	}

	flags := b[0]
	h := Header{
		ZeroCoded:   flags&flagZeroCoded != 0,
		Reliable:    flags&flagReliable != 0,
		Resent:      flags&flagResent != 0,
		HasAppended: flags&flagAppendedAcks != 0,
		Sequence:    decodeU32BE(b[1:5]),
	}

	rest := b[fixedPrefix:]
	msg, idLen, err := decodeMsgID(rest)
	if err != nil {
		return Header{}, 0, err
	}
	h.Msg = msg
	h.headerLength = fixedPrefix + idLen
	return h, h.headerLength, nil
}

func decodeMsgID(b []byte) (MsgID, int, error) {
	if len(b) < 1 {
		return MsgID{}, 0, shortRead("truncated message id", 0, 1, len(b))
	}
	if b[0] != 0xFF {
		return MsgID{Frequency: FrequencyHigh, ID: uint32(b[0])}, 1, nil
	}
	if len(b) < 2 {
		return MsgID{}, 0, shortRead("truncated message id", 0, 2, len(b))
	}
	if b[1] != 0xFF {
		return MsgID{Frequency: FrequencyMedium, ID: uint32(b[1])}, 2, nil
	}
	if len(b) < 4 {
		return MsgID{}, 0, shortRead("truncated message id", 0, 4, len(b))
	}
	if b[2] == 0xFF && b[3] == 0xFF {
		if len(b) < 5 {
			return MsgID{}, 0, shortRead("truncated fixed message id", 0, 5, len(b))
		}
		return MsgID{Frequency: FrequencyFixed, ID: uint32(b[4])}, 5, nil
	}
	return MsgID{Frequency: FrequencyLow, ID: uint32(b[2])<<8 | uint32(b[3])}, 4, nil
}

// DecodedPacket is a fully decoded datagram: header, appended acks stripped
// out, and the (zero-decoded) body bytes ready for message-specific parsing.
type DecodedPacket struct {
	Header       Header
	AppendedAcks []uint32
	Body         []byte
}

// DecodePacket decodes a raw datagram: splits off the appended-acks trailer
// (never zero-coded), reverses zero-coding on the body if the header flag is
// set, and returns the remaining body bytes.
func DecodePacket(raw []byte) (DecodedPacket, error) {
	h, n, err := DecodeHeader(raw)
	if err != nil {
		return DecodedPacket{}, err
	}
	payload := raw[n:]

	var acks []uint32
	if h.HasAppended {
		acks, payload, err = stripAppendedAcks(payload)
		if err != nil {
			return DecodedPacket{}, err
		}
	}

	body := payload
	if h.ZeroCoded {
		body, err = zeroDecode(payload)
		if err != nil {
			return DecodedPacket{}, err
		}
	}

	return DecodedPacket{Header: h, AppendedAcks: acks, Body: body}, nil
}

// EncodePacket serializes a header, an optional zero-coded body, and an
// optional appended-acks trailer into one datagram.
func EncodePacket(h Header, body []byte, acks []uint32) ([]byte, error) {
	h.HasAppended = len(acks) > 0
	out := EncodeHeader(h)

	if h.ZeroCoded {
		out = append(out, zeroEncode(body)...)
	} else {
		out = append(out, body...)
	}

	if len(acks) > 0 {
		if len(acks) > 255 {
			return nil, fmt.Errorf("wire: too many appended acks: %d > 255", len(acks))
		}
		for _, id := range acks {
			out = append(out, encodeU32BE(id)...)
		}
		out = append(out, byte(len(acks)))
	}

	return out, nil
}

// MarkResent returns a copy of an already-encoded packet with the resent
// flag bit set in its header byte, for the reliability layer to re-emit a
// timed-out send without disturbing its original sequence number or body.
func MarkResent(packet []byte) []byte {
	if len(packet) == 0 {
		return packet
	}
	out := make([]byte, len(packet))
	copy(out, packet)
	out[0] |= flagResent
	return out
}

// stripAppendedAcks reads the trailing list of big-endian 32-bit ack ids,
// whose count is the payload's final byte, and returns them along with the remaining
// payload (header stripped, acks stripped).
func stripAppendedAcks(payload []byte) ([]uint32, []byte, error) {
	if len(payload) < 1 {
		return nil, nil, shortRead("missing appended-ack count", 0, 1, 0)
	}
	count := int(payload[len(payload)-1])
	need := 1 + count*4
	if len(payload) < need {
		return nil, nil, shortRead("truncated appended acks", 0, need, len(payload))
	}

	ackBytes := payload[len(payload)-need : len(payload)-1]
	acks := make([]uint32, count)
	for i := 0; i < count; i++ {
		acks[i] = decodeU32BE(ackBytes[i*4:])
	}

	return acks, payload[:len(payload)-need], nil
}
