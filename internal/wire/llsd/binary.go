// Package llsd implements Linden Lab Structured Data in both its binary
// tagged-node form (used inside mesh assets and select UDP payloads) and
// its XML form (used on the HTTP capability surface).
package llsd

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Kind tags the active field of a Value.
type Kind int

const (
	KindUndef Kind = iota
	KindBool
	KindInt
	KindReal
	KindString
	KindUUID
	KindDate
	KindBinary
	KindArray
	KindMap
)

// Value is a tagged LLSD node. Only the field matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int32
	Real   float64
	Str    string
	UUID   uuid.UUID
	Date   float64
	Binary []byte
	Array  []Value
	Map    map[string]Value
}

// decodeError reports a malformed LLSD-binary stream: an unknown tag, a
// short read, or a length prefix that runs past the end of the buffer.
type decodeError struct {
	Offset int
	Reason string
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("llsd: %s at offset %d", e.Reason, e.Offset)
}

type cursor struct {
	b   []byte
	pos int
}

func (c *cursor) remaining() int { return len(c.b) - c.pos }

func (c *cursor) readByte() (byte, error) {
	if c.remaining() < 1 {
		return 0, &decodeError{c.pos, "truncated tag byte"}
	}
	v := c.b[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) readN(n int) ([]byte, error) {
	if c.remaining() < n {
		return nil, &decodeError{c.pos, "truncated field"}
	}
	v := c.b[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

func (c *cursor) readU32BE() (uint32, error) {
	v, err := c.readN(4)
	if err != nil {
		return 0, err
	}
	return uint32(v[0])<<24 | uint32(v[1])<<16 | uint32(v[2])<<8 | uint32(v[3]), nil
}

func (c *cursor) readI32BE() (int32, error) {
	v, err := c.readU32BE()
	return int32(v), err
}

func (c *cursor) readF64BE() (float64, error) {
	v, err := c.readN(8)
	if err != nil {
		return 0, err
	}
	bits := uint64(v[0])<<56 | uint64(v[1])<<48 | uint64(v[2])<<40 | uint64(v[3])<<32 |
		uint64(v[4])<<24 | uint64(v[5])<<16 | uint64(v[6])<<8 | uint64(v[7])
	return math.Float64frombits(bits), nil
}

// readLengthPrefixed reads a 4-byte big-endian length followed by that many
// bytes, the encoding used for LLSD-binary strings, binary blobs, and map
// keys.
func (c *cursor) readLengthPrefixed() ([]byte, error) {
	n, err := c.readU32BE()
	if err != nil {
		return nil, err
	}
	return c.readN(int(n))
}

// Decode parses one LLSD-binary value from b.
func Decode(b []byte) (Value, error) {
	c := &cursor{b: b}
	v, err := decodeValue(c)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func decodeValue(c *cursor) (Value, error) {
	tag, err := c.readByte()
	if err != nil {
		return Value{}, err
	}
	switch tag {
	case '{':
		return decodeMap(c)
	case '[':
		return decodeArray(c)
	case 'i':
		n, err := c.readI32BE()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindInt, Int: n}, nil
	case 'r':
		f, err := c.readF64BE()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindReal, Real: f}, nil
	case 's':
		s, err := c.readLengthPrefixed()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindString, Str: string(s)}, nil
	case 'b':
		blob, err := c.readLengthPrefixed()
		if err != nil {
			return Value{}, err
		}
		cp := make([]byte, len(blob))
		copy(cp, blob)
		return Value{Kind: KindBinary, Binary: cp}, nil
	case 'u':
		id, err := c.readN(16)
		if err != nil {
			return Value{}, err
		}
		u, err := uuid.FromBytes(id)
		if err != nil {
			return Value{}, &decodeError{c.pos - 16, "malformed uuid"}
		}
		return Value{Kind: KindUUID, UUID: u}, nil
	case '1':
		return Value{Kind: KindBool, Bool: true}, nil
	case '0':
		return Value{Kind: KindBool, Bool: false}, nil
	case 'd':
		f, err := c.readF64BE()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindDate, Date: f}, nil
	default:
		return Value{}, &decodeError{c.pos - 1, fmt.Sprintf("unknown LLSD tag %q", tag)}
	}
}

func decodeMap(c *cursor) (Value, error) {
	count, err := c.readU32BE()
	if err != nil {
		return Value{}, err
	}
	m := make(map[string]Value, count)
	for i := uint32(0); i < count; i++ {
		tag, err := c.readByte()
		if err != nil {
			return Value{}, err
		}
		if tag != 'k' {
			return Value{}, &decodeError{c.pos - 1, fmt.Sprintf("expected map key tag, got %q", tag)}
		}
		key, err := c.readLengthPrefixed()
		if err != nil {
			return Value{}, err
		}
		val, err := decodeValue(c)
		if err != nil {
			return Value{}, err
		}
		m[string(key)] = val
	}
	closing, err := c.readByte()
	if err != nil {
		return Value{}, err
	}
	if closing != '}' {
		return Value{}, &decodeError{c.pos - 1, "missing map closing tag"}
	}
	return Value{Kind: KindMap, Map: m}, nil
}

func decodeArray(c *cursor) (Value, error) {
	count, err := c.readU32BE()
	if err != nil {
		return Value{}, err
	}
	arr := make([]Value, 0, count)
	for i := uint32(0); i < count; i++ {
		val, err := decodeValue(c)
		if err != nil {
			return Value{}, err
		}
		arr = append(arr, val)
	}
	closing, err := c.readByte()
	if err != nil {
		return Value{}, err
	}
	if closing != ']' {
		return Value{}, &decodeError{c.pos - 1, "missing array closing tag"}
	}
	return Value{Kind: KindArray, Array: arr}, nil
}

// Encode serializes a Value back into LLSD-binary form.
func Encode(v Value) []byte {
	var out []byte
	switch v.Kind {
	case KindMap:
		out = append(out, '{')
		out = append(out, encodeU32BE(uint32(len(v.Map)))...)
		for k, val := range v.Map {
			out = append(out, 'k')
			out = append(out, encodeLengthPrefixed([]byte(k))...)
			out = append(out, Encode(val)...)
		}
		out = append(out, '}')
	case KindArray:
		out = append(out, '[')
		out = append(out, encodeU32BE(uint32(len(v.Array)))...)
		for _, val := range v.Array {
			out = append(out, Encode(val)...)
		}
		out = append(out, ']')
	case KindInt:
		out = append(out, 'i')
		out = append(out, encodeU32BE(uint32(v.Int))...)
	case KindReal:
		out = append(out, 'r')
		out = append(out, encodeF64BE(v.Real)...)
	case KindString:
		out = append(out, 's')
		out = append(out, encodeLengthPrefixed([]byte(v.Str))...)
	case KindBinary:
		out = append(out, 'b')
		out = append(out, encodeLengthPrefixed(v.Binary)...)
	case KindUUID:
		out = append(out, 'u')
		idBytes, _ := v.UUID.MarshalBinary()
		out = append(out, idBytes...)
	case KindBool:
		if v.Bool {
			out = append(out, '1')
		} else {
			out = append(out, '0')
		}
	case KindDate:
		out = append(out, 'd')
		out = append(out, encodeF64BE(v.Date)...)
	}
	return out
}

func encodeLengthPrefixed(b []byte) []byte {
	out := encodeU32BE(uint32(len(b)))
	return append(out, b...)
}

func encodeU32BE(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func encodeF64BE(f float64) []byte {
	bits := math.Float64bits(f)
	return []byte{
		byte(bits >> 56), byte(bits >> 48), byte(bits >> 40), byte(bits >> 32),
		byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits),
	}
}
