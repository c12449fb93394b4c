package packets

import "github.com/osgrid/metaviewer/internal/wire"

// PacketAck carries a batch of sequence numbers the sender has received,
// distinct from the header's appended-acks trailer.
type PacketAck struct {
	IDs []uint32
}

func (PacketAck) Kind() Kind { return KindPacketAck }

func decodePacketAck(body []byte) (Message, error) {
	r := &reader{b: body}
	count, err := r.u8()
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, 0, count)
	for i := 0; i < int(count); i++ {
		id, err := r.u32()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return PacketAck{IDs: ids}, nil
}

// EncodePacketAck serializes an outbound PacketAck body. IDs here are
// little-endian, unlike the header's appended-acks trailer which is
// big-endian.
func EncodePacketAck(p PacketAck) []byte {
	out := make([]byte, 0, 1+4*len(p.IDs))
	out = append(out, uint8(len(p.IDs)))
	for _, id := range p.IDs {
		out = append(out, wire.EncodeU32(id)...)
	}
	return out
}
