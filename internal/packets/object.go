package packets

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/osgrid/metaviewer/internal/wire"
)

// ObjectUpdateRecord describes one scene object as carried by ObjectUpdate.
// Fields that are raw, un-decoded byte blocks (texture animation, particle
// system, extra params, sound) are exposed as opaque slices; higher layers
// decode them further on demand.
type ObjectUpdateRecord struct {
	RegionHandle      uint64
	TimeDilation      float32
	LocalID           uint32
	State             uint8
	FullID            uuid.UUID
	CRC               uint32
	PCode             uint8
	Material          uint8
	ClickAction       uint8
	Scale             [3]float32
	Motion            wire.Motion
	ParentID          uint32
	UpdateFlags       uint32
	PrimitiveGeometry []byte
	TextureEntry      wire.TextureEntry
	TextureAnim       []byte
	NameValue         string
	GenericData       []byte
	Text              string
	TextColor         [4]uint8
	MediaURL          string
	ParticleSystem    []byte
	ExtraParams       []byte
	Sound             []byte
	JointType         uint8
	JointPivot        [3]float32
	JointAxisOrAnchor [3]float32
}

func (ObjectUpdateRecord) Kind() Kind { return KindObjectUpdate }

// reader is a small cursor over a byte slice, shared by the four
// ObjectUpdate-family decoders below and by other decoders in this package.
type reader struct {
	b   []byte
	pos int
}

func (r *reader) need(n int) error {
	if len(r.b)-r.pos < n {
		return fmt.Errorf("packets: short read: need %d bytes at offset %d, have %d", n, r.pos, len(r.b)-r.pos)
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := wire.DecodeU16(r.b[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := wire.DecodeU32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	lo := wire.DecodeU32(r.b[r.pos:])
	hi := wire.DecodeU32(r.b[r.pos+4:])
	r.pos += 8
	return uint64(hi)<<32 | uint64(lo), nil
}

func (r *reader) f32() (float32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := wire.DecodeF32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) vec3() ([3]float32, error) {
	var v [3]float32
	for i := range v {
		f, err := r.f32()
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) uuid() (uuid.UUID, error) {
	b, err := r.bytes(16)
	if err != nil {
		return uuid.UUID{}, err
	}
	return uuid.FromBytes(b)
}

func decodeObjectUpdate(body []byte) (Message, error) {
	r := &reader{b: body}
	var rec ObjectUpdateRecord
	var err error

	if rec.RegionHandle, err = r.u64(); err != nil {
		return nil, err
	}
	td, err := r.u16()
	if err != nil {
		return nil, err
	}
	rec.TimeDilation = float32(td) / 65535.0

	if _, err = r.u8(); err != nil { // alignment byte
		return nil, err
	}
	if rec.LocalID, err = r.u32(); err != nil {
		return nil, err
	}
	if rec.State, err = r.u8(); err != nil {
		return nil, err
	}
	if rec.FullID, err = r.uuid(); err != nil {
		return nil, err
	}
	if rec.CRC, err = r.u32(); err != nil {
		return nil, err
	}
	if rec.PCode, err = r.u8(); err != nil {
		return nil, err
	}
	if rec.Material, err = r.u8(); err != nil {
		return nil, err
	}
	if rec.ClickAction, err = r.u8(); err != nil {
		return nil, err
	}
	if rec.Scale, err = r.vec3(); err != nil {
		return nil, err
	}

	motionLen, err := r.u8()
	if err != nil {
		return nil, err
	}
	motionBytes, err := r.bytes(int(motionLen))
	if err != nil {
		return nil, err
	}
	if rec.Motion, err = wire.DecodeMotion(motionBytes); err != nil {
		return nil, err
	}

	if rec.ParentID, err = r.u32(); err != nil {
		return nil, err
	}
	if rec.UpdateFlags, err = r.u32(); err != nil {
		return nil, err
	}
	if rec.PrimitiveGeometry, err = r.bytes(23); err != nil {
		return nil, err
	}

	teLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	teBytes, err := r.bytes(int(teLen))
	if err != nil {
		return nil, err
	}
	if rec.TextureEntry, err = wire.DecodeTextureEntryRaw(teBytes); err != nil {
		return nil, err
	}

	animLen, err := r.u8()
	if err != nil {
		return nil, err
	}
	if rec.TextureAnim, err = r.bytes(int(animLen)); err != nil {
		return nil, err
	}

	nvLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	nvBytes, err := r.bytes(int(nvLen))
	if err != nil {
		return nil, err
	}
	rec.NameValue = string(nvBytes)

	dataLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	if rec.GenericData, err = r.bytes(int(dataLen)); err != nil {
		return nil, err
	}

	textLen, err := r.u8()
	if err != nil {
		return nil, err
	}
	if textLen != 0 {
		textBytes, err := r.bytes(int(textLen))
		if err != nil {
			return nil, err
		}
		rec.Text = string(textBytes)
		colorBytes, err := r.bytes(4)
		if err != nil {
			return nil, err
		}
		copy(rec.TextColor[:], colorBytes)
	} else if _, err := r.bytes(3); err != nil {
		// the wire format pads to 3 bytes when there is no hover text
		return nil, err
	}

	mediaLen, err := r.u8()
	if err != nil {
		return nil, err
	}
	mediaBytes, err := r.bytes(int(mediaLen))
	if err != nil {
		return nil, err
	}
	rec.MediaURL = string(mediaBytes)

	particleLen, err := r.u8()
	if err != nil {
		return nil, err
	}
	if rec.ParticleSystem, err = r.bytes(int(particleLen)); err != nil {
		return nil, err
	}

	extraLen, err := r.u8()
	if err != nil {
		return nil, err
	}
	if rec.ExtraParams, err = r.bytes(int(extraLen)); err != nil {
		return nil, err
	}

	if rec.Sound, err = r.bytes(41); err != nil {
		return nil, err
	}

	if rec.JointType, err = r.u8(); err != nil {
		return nil, err
	}
	if rec.JointPivot, err = r.vec3(); err != nil {
		return nil, err
	}
	if rec.JointAxisOrAnchor, err = r.vec3(); err != nil {
		return nil, err
	}

	return rec, nil
}

// CachedObjectEntry is one record of an ObjectUpdateCached block: enough to
// test a local checksum cache without transferring the full object.
type CachedObjectEntry struct {
	LocalID uint32
	CRC     uint32
	Flags   uint32
}

// ObjectUpdateCached lists objects the simulator believes are already in
// the viewer's local cache by (local id, crc).
type ObjectUpdateCached struct {
	RegionHandle uint64
	TimeDilation float32
	Entries      []CachedObjectEntry
}

func (ObjectUpdateCached) Kind() Kind { return KindObjectUpdateCached }

func decodeObjectUpdateCached(body []byte) (Message, error) {
	r := &reader{b: body}
	var msg ObjectUpdateCached
	var err error
	if msg.RegionHandle, err = r.u64(); err != nil {
		return nil, err
	}
	td, err := r.u16()
	if err != nil {
		return nil, err
	}
	msg.TimeDilation = float32(td) / 65535.0

	count, err := r.u8()
	if err != nil {
		return nil, err
	}
	msg.Entries = make([]CachedObjectEntry, 0, count)
	for i := 0; i < int(count); i++ {
		var e CachedObjectEntry
		if e.LocalID, err = r.u32(); err != nil {
			return nil, err
		}
		if e.CRC, err = r.u32(); err != nil {
			return nil, err
		}
		if e.Flags, err = r.u32(); err != nil {
			return nil, err
		}
		msg.Entries = append(msg.Entries, e)
	}
	return msg, nil
}

// TerseObjectEntry is one motion-only update within an
// ImprovedTerseObjectUpdate.
type TerseObjectEntry struct {
	LocalID            uint32
	State              uint8
	IsAvatar           bool
	FootCollisionPlane [4]float32
	Position           [3]float32
	Velocity           [3]float32
	Acceleration       [3]float32
	Rotation           [4]float32
	AngularVelocity    [3]float32
}

// ImprovedTerseObjectUpdate carries motion-only updates for existing
// objects, cheaper than a full ObjectUpdate.
type ImprovedTerseObjectUpdate struct {
	RegionHandle uint64
	TimeDilation float32
	Entries      []TerseObjectEntry
}

func (ImprovedTerseObjectUpdate) Kind() Kind { return KindImprovedTerseObjectUpdate }

func decodeImprovedTerseObjectUpdate(body []byte) (Message, error) {
	r := &reader{b: body}
	var msg ImprovedTerseObjectUpdate
	var err error
	if msg.RegionHandle, err = r.u64(); err != nil {
		return nil, err
	}
	td, err := r.u16()
	if err != nil {
		return nil, err
	}
	msg.TimeDilation = float32(td) / 65535.0

	count, err := r.u8()
	if err != nil {
		return nil, err
	}
	msg.Entries = make([]TerseObjectEntry, 0, count)
	for i := 0; i < int(count); i++ {
		var e TerseObjectEntry
		if e.LocalID, err = r.u32(); err != nil {
			return nil, err
		}
		if e.State, err = r.u8(); err != nil {
			return nil, err
		}
		avatarByte, err := r.u8()
		if err != nil {
			return nil, err
		}
		e.IsAvatar = avatarByte != 0
		if e.IsAvatar {
			for i := range e.FootCollisionPlane {
				if e.FootCollisionPlane[i], err = r.f32(); err != nil {
					return nil, err
				}
			}
		}
		if e.Position, err = r.vec3(); err != nil {
			return nil, err
		}
		for i := range e.Velocity {
			v, err := r.u16()
			if err != nil {
				return nil, err
			}
			e.Velocity[i] = unpackU16Signed(v)
		}
		for i := range e.Acceleration {
			v, err := r.u16()
			if err != nil {
				return nil, err
			}
			e.Acceleration[i] = unpackU16Signed(v)
		}
		for i := range e.Rotation {
			v, err := r.u16()
			if err != nil {
				return nil, err
			}
			e.Rotation[i] = unpackU16Signed(v)
		}
		for i := range e.AngularVelocity {
			v, err := r.u16()
			if err != nil {
				return nil, err
			}
			e.AngularVelocity[i] = unpackU16Signed(v)
		}
		msg.Entries = append(msg.Entries, e)
	}
	return msg, nil
}

// unpackU16Signed mirrors wire's medium-precision quantization: [0,65535]
// onto [-1.0, 1.0].
func unpackU16Signed(v uint16) float32 {
	return (float32(v)/65535.0)*2.0 - 1.0
}

// ObjectUpdateCompressed flag bits selecting which optional fields are
// present.
const (
	compressedFlagScratchPad = 1 << iota
	compressedFlagTree
	compressedFlagText
	compressedFlagParticles
	compressedFlagSound
	compressedFlagParent
	compressedFlagTextureAnim
	compressedFlagAngularVelocity
	compressedFlagNameValues
	compressedFlagMediaURL
)

// CompressedObjectRecord is the abridged object record carried by
// ObjectUpdateCompressed, sent in response to RequestMultipleObjects.
type CompressedObjectRecord struct {
	UpdateFlags       uint32
	FullID            uuid.UUID
	LocalID           uint32
	PCode             uint8
	State             uint8
	CRC               uint32
	Material          uint8
	ClickAction       uint8
	Scale             [3]float32
	Position          [3]float32
	Rotation          [3]float32
	OwnerID           uuid.UUID
	AngularVelocity   [3]float32
	ParentID          uint32
	Text              string
	TextColor         [4]uint8
	MediaURL          string
	ParticleSystem    []byte
	SoundID           uuid.UUID
	SoundGain         float32
	SoundFlags        uint8
	SoundRadius       float32
	NameValue         string
	PrimitiveGeometry []byte
	TextureEntry      wire.TextureEntry
	TextureAnim       []byte
}

func (CompressedObjectRecord) Kind() Kind { return KindObjectUpdateCompressed }

func decodeObjectUpdateCompressed(body []byte) (Message, error) {
	r := &reader{b: body}

	// region_handle and time_dilation frame the message but are not part
	// of the per-object record this decoder returns.
	if _, err := r.u64(); err != nil {
		return nil, err
	}
	if _, err := r.u16(); err != nil {
		return nil, err
	}
	if _, err := r.u8(); err != nil { // object count; single-record decode
		return nil, err
	}

	var rec CompressedObjectRecord
	var err error
	if rec.UpdateFlags, err = r.u32(); err != nil {
		return nil, err
	}
	if _, err = r.u16(); err != nil { // data_size
		return nil, err
	}
	if rec.FullID, err = r.uuid(); err != nil {
		return nil, err
	}
	if rec.LocalID, err = r.u32(); err != nil {
		return nil, err
	}
	if rec.PCode, err = r.u8(); err != nil {
		return nil, err
	}
	if rec.State, err = r.u8(); err != nil {
		return nil, err
	}
	if rec.CRC, err = r.u32(); err != nil {
		return nil, err
	}
	if rec.Material, err = r.u8(); err != nil {
		return nil, err
	}
	if rec.ClickAction, err = r.u8(); err != nil {
		return nil, err
	}
	if rec.Scale, err = r.vec3(); err != nil {
		return nil, err
	}
	if rec.Position, err = r.vec3(); err != nil {
		return nil, err
	}
	if rec.Rotation, err = r.vec3(); err != nil {
		return nil, err
	}

	flags := rec.UpdateFlags
	if flags&(compressedFlagParticles|compressedFlagSound) != 0 {
		if rec.OwnerID, err = r.uuid(); err != nil {
			return nil, err
		}
	}
	if flags&compressedFlagAngularVelocity != 0 {
		if rec.AngularVelocity, err = r.vec3(); err != nil {
			return nil, err
		}
	}
	if flags&compressedFlagParent != 0 {
		if rec.ParentID, err = r.u32(); err != nil {
			return nil, err
		}
	}
	if flags&compressedFlagText != 0 {
		textLen, err := r.u8()
		if err != nil {
			return nil, err
		}
		textBytes, err := r.bytes(int(textLen))
		if err != nil {
			return nil, err
		}
		rec.Text = string(textBytes)
		colorBytes, err := r.bytes(4)
		if err != nil {
			return nil, err
		}
		copy(rec.TextColor[:], colorBytes)
	}
	if flags&compressedFlagMediaURL != 0 {
		mediaLen, err := r.u8()
		if err != nil {
			return nil, err
		}
		mediaBytes, err := r.bytes(int(mediaLen))
		if err != nil {
			return nil, err
		}
		rec.MediaURL = string(mediaBytes)
	}
	if flags&compressedFlagParticles != 0 {
		particleLen, err := r.u8()
		if err != nil {
			return nil, err
		}
		if rec.ParticleSystem, err = r.bytes(int(particleLen)); err != nil {
			return nil, err
		}
	}

	extraLen, err := r.u8()
	if err != nil {
		return nil, err
	}
	if extraLen > 0 {
		if _, err := r.bytes(int(extraLen)); err != nil {
			return nil, err
		}
	}

	if flags&compressedFlagSound != 0 {
		if rec.SoundID, err = r.uuid(); err != nil {
			return nil, err
		}
		if rec.SoundGain, err = r.f32(); err != nil {
			return nil, err
		}
		if rec.SoundFlags, err = r.u8(); err != nil {
			return nil, err
		}
		if rec.SoundRadius, err = r.f32(); err != nil {
			return nil, err
		}
	}

	if flags&compressedFlagNameValues != 0 {
		nvLen, err := r.u16()
		if err != nil {
			return nil, err
		}
		nvBytes, err := r.bytes(int(nvLen))
		if err != nil {
			return nil, err
		}
		rec.NameValue = string(nvBytes)
	}

	if rec.PrimitiveGeometry, err = r.bytes(23); err != nil {
		return nil, err
	}

	teLen, err := r.u16()
	if err != nil {
		return nil, err
	}
	teBytes, err := r.bytes(int(teLen))
	if err != nil {
		return nil, err
	}
	if rec.TextureEntry, err = wire.DecodeTextureEntryRaw(teBytes); err != nil {
		return nil, err
	}

	if flags&compressedFlagTextureAnim != 0 {
		animLen, err := r.u8()
		if err != nil {
			return nil, err
		}
		if rec.TextureAnim, err = r.bytes(int(animLen)); err != nil {
			return nil, err
		}
	}

	return rec, nil
}
