package wire

// Motion is the decoded form of an ObjectData field, normalized to f32
// regardless of the wire precision it arrived at.
// Positions decoded at a reduced precision are left in the unsigned-integer
// domain and must be rescaled by the caller using the region's known axis
// ranges; this package never performs that rescale. Rotation is carried as
// Euler angles (3 components), matching the on-the-wire field widths: a
// high-precision record is exactly 15 packed components (60 bytes), which
// only holds if rotation is 3-wide, not a 4-wide quaternion.
type Motion struct {
	Position              [3]float32
	Velocity              [3]float32
	Acceleration          [3]float32
	Rotation              [3]float32
	AngularVelocity       [3]float32
	FootCollisionPlane    [4]float32
	HasFootCollisionPlane bool
}

// motion record lengths, keyed by the 1-byte length prefix on ObjectData.
const (
	motionLenFootHigh   = 76
	motionLenHigh       = 60
	motionLenFootMedium = 48
	motionLenMedium     = 32
	motionLenLow        = 16
)

// DecodeMotion selects a decoder by len(b): exactly the five lengths
// {16, 32, 48, 60, 76} are recognized; any other length fails with
// CodecError.
func DecodeMotion(b []byte) (Motion, error) {
	switch len(b) {
	case motionLenFootHigh:
		m, err := decodeMotionHigh(b[16:])
		if err != nil {
			return Motion{}, err
		}
		m.FootCollisionPlane = decodeVec4(b)
		m.HasFootCollisionPlane = true
		return m, nil
	case motionLenHigh:
		return decodeMotionHigh(b)
	case motionLenFootMedium:
		m, err := decodeMotionMedium(b[16:])
		if err != nil {
			return Motion{}, err
		}
		m.FootCollisionPlane = decodeVec4(b)
		m.HasFootCollisionPlane = true
		return m, nil
	case motionLenMedium:
		return decodeMotionMedium(b)
	case motionLenLow:
		return decodeMotionLow(b)
	default:
		return Motion{}, shortRead("unsupported motion record length", 0, -1, len(b))
	}
}

func decodeVec4(b []byte) [4]float32 {
	return [4]float32{decodeF32(b[0:]), decodeF32(b[4:]), decodeF32(b[8:]), decodeF32(b[12:])}
}

// decodeMotionHigh reads the 60-byte full-f32 record: position, velocity,
// acceleration, rotation, angular velocity, 5 components of 3 floats each.
func decodeMotionHigh(b []byte) (Motion, error) {
	var m Motion
	off := 0
	readVec := func(dst *[3]float32) {
		dst[0] = decodeF32(b[off:])
		dst[1] = decodeF32(b[off+4:])
		dst[2] = decodeF32(b[off+8:])
		off += 12
	}
	readVec(&m.Position)
	readVec(&m.Velocity)
	readVec(&m.Acceleration)
	readVec(&m.Rotation)
	readVec(&m.AngularVelocity)
	return m, nil
}

// decodeMotionMedium reads the 32-byte u16-quantized record: 15 packed u16
// components (30 bytes) followed by 2 unused padding bytes.
func decodeMotionMedium(b []byte) (Motion, error) {
	var m Motion
	off := 0
	readVecUnsigned := func(dst *[3]float32) {
		dst[0] = float32(decodeU16(b[off:]))
		dst[1] = float32(decodeU16(b[off+2:]))
		dst[2] = float32(decodeU16(b[off+4:]))
		off += 6
	}
	readVecSigned := func(dst *[3]float32) {
		dst[0] = unpackU16Signed(decodeU16(b[off:]))
		dst[1] = unpackU16Signed(decodeU16(b[off+2:]))
		dst[2] = unpackU16Signed(decodeU16(b[off+4:]))
		off += 6
	}
	readVecUnsigned(&m.Position)
	readVecSigned(&m.Velocity)
	readVecSigned(&m.Acceleration)
	readVecSigned(&m.Rotation)
	readVecSigned(&m.AngularVelocity)
	return m, nil
}

// decodeMotionLow reads the 16-byte u8-quantized record: 15 packed u8
// components followed by 1 unused padding byte.
func decodeMotionLow(b []byte) (Motion, error) {
	var m Motion
	off := 0
	readVecUnsigned := func(dst *[3]float32) {
		dst[0] = float32(b[off])
		dst[1] = float32(b[off+1])
		dst[2] = float32(b[off+2])
		off += 3
	}
	readVecSigned := func(dst *[3]float32) {
		dst[0] = unpackU8Signed(b[off])
		dst[1] = unpackU8Signed(b[off+1])
		dst[2] = unpackU8Signed(b[off+2])
		off += 3
	}
	readVecUnsigned(&m.Position)
	readVecSigned(&m.Velocity)
	readVecSigned(&m.Acceleration)
	readVecSigned(&m.Rotation)
	readVecSigned(&m.AngularVelocity)
	return m, nil
}

// EncodeMotion serializes a Motion back into its highest-fidelity (60- or
// 76-byte) wire form, used for outbound AgentUpdate-style motion fields.
func EncodeMotion(m Motion) []byte {
	var out []byte
	if m.HasFootCollisionPlane {
		out = append(out, encodeF32(m.FootCollisionPlane[0])...)
		out = append(out, encodeF32(m.FootCollisionPlane[1])...)
		out = append(out, encodeF32(m.FootCollisionPlane[2])...)
		out = append(out, encodeF32(m.FootCollisionPlane[3])...)
	}
	for _, v := range [][3]float32{m.Position, m.Velocity, m.Acceleration, m.Rotation, m.AngularVelocity} {
		out = append(out, encodeF32(v[0])...)
		out = append(out, encodeF32(v[1])...)
		out = append(out, encodeF32(v[2])...)
	}
	return out
}

// unpackU16Signed maps a medium-precision sample from [0,65535] onto
// [-1.0, 1.0], the standard quantization for velocity/rotation components.
func unpackU16Signed(v uint16) float32 {
	return (float32(v)/65535.0)*2.0 - 1.0
}

// unpackU8Signed maps a low-precision sample from [0,255] onto [-1.0, 1.0].
func unpackU8Signed(v uint8) float32 {
	return (float32(v)/255.0)*2.0 - 1.0
}
