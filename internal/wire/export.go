package wire

// Exported little-endian scalar helpers, used by internal/packets to decode
// and encode the fixed-layout fields surrounding each message's codec-owned
// sub-structures (motion data, texture entries).

func DecodeF32(b []byte) float32 { return decodeF32(b) }
func EncodeF32(v float32) []byte { return encodeF32(v) }
func DecodeU16(b []byte) uint16  { return decodeU16(b) }
func EncodeU16(v uint16) []byte  { return encodeU16(v) }
func DecodeU32(b []byte) uint32  { return decodeU32(b) }
func EncodeU32(v uint32) []byte  { return encodeU32(v) }
