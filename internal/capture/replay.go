// Package capture replays a recorded pcap capture of a session's UDP
// circuit traffic through the same decode path a live socket uses, for
// deterministic regression testing against real captured traffic. It is
// read-only: replay never emits new wire traffic.
package capture

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/osgrid/metaviewer/internal/packets"
	"github.com/osgrid/metaviewer/internal/wire"
)

// Datagram is one recorded UDP payload plus the port it targeted, in
// capture order.
type Datagram struct {
	SrcPort uint16
	DstPort uint16
	Payload []byte
}

// ReadDatagrams opens a pcap file and extracts every UDP datagram whose
// source or destination port matches circuitPort (the simulator's
// negotiated UDP port for this session).
func ReadDatagrams(pcapPath string, circuitPort uint16) ([]Datagram, error) {
	handle, err := pcap.OpenOffline(pcapPath)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", pcapPath, err)
	}
	defer handle.Close()

	var out []Datagram
	source := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range source.Packets() {
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp := udpLayer.(*layers.UDP)
		if uint16(udp.SrcPort) != circuitPort && uint16(udp.DstPort) != circuitPort {
			continue
		}
		if len(udp.Payload) == 0 {
			continue
		}
		out = append(out, Datagram{
			SrcPort: uint16(udp.SrcPort),
			DstPort: uint16(udp.DstPort),
			Payload: append([]byte(nil), udp.Payload...),
		})
	}
	return out, nil
}

// DecodedDatagram is one replayed datagram's fully decoded form, or the
// error the decode path produced for it.
type DecodedDatagram struct {
	Datagram Datagram
	Message  packets.Message
	Err      error
}

// Replay decodes every captured datagram through the same wire/packets
// pipeline a live session.Actor uses, without touching any session or
// socket state.
func Replay(datagrams []Datagram) []DecodedDatagram {
	out := make([]DecodedDatagram, len(datagrams))
	for i, d := range datagrams {
		decoded, err := wire.DecodePacket(d.Payload)
		if err != nil {
			out[i] = DecodedDatagram{Datagram: d, Err: fmt.Errorf("capture: decode packet: %w", err)}
			continue
		}
		msg, err := packets.Decode(decoded.Header.Msg.Frequency, decoded.Header.Msg.ID, decoded.Body)
		if err != nil {
			out[i] = DecodedDatagram{Datagram: d, Err: fmt.Errorf("capture: decode body: %w", err)}
			continue
		}
		out[i] = DecodedDatagram{Datagram: d, Message: msg}
	}
	return out
}
