// Package packet builds and decodes the frames exchanged during an
// experiment: ICMP echo probes for latency and UDP datagrams for
// throughput.
package packet

import (
	"net"
	"net/netip"

	"github.com/google/gopacket/layers"
)

// Frame is a serialized packet ready for the send path.
type Frame struct {
	// Data holds the bytes on the wire.
	Data []byte
	// LinkType is LinkTypeEthernet for L2 frames and LinkTypeRaw for
	// bare IPv4 packets.
	LinkType layers.LinkType
}

// Len returns the wire size of the frame.
func (f Frame) Len() int {
	return len(f.Data)
}

// Addressing holds the L2/L3 addresses of a flow. When either MAC is
// missing, frames are built without an Ethernet header.
type Addressing struct {
	SrcIP  netip.Addr
	DstIP  netip.Addr
	SrcMAC net.HardwareAddr
	DstMAC net.HardwareAddr
}

// Reverse swaps source and destination.
func (a Addressing) Reverse() Addressing {
	return Addressing{SrcIP: a.DstIP, DstIP: a.SrcIP, SrcMAC: a.DstMAC, DstMAC: a.SrcMAC}
}

// HasL2 reports whether an Ethernet header can be built.
func (a Addressing) HasL2() bool {
	return len(a.SrcMAC) == 6 && len(a.DstMAC) == 6
}

// Kind classifies an observed packet.
type Kind uint8

const (
	KindOther Kind = iota
	KindEchoRequest
	KindEchoReply
	KindUDP
)

func (k Kind) String() string {
	switch k {
	case KindEchoRequest:
		return "echo-request"
	case KindEchoReply:
		return "echo-reply"
	case KindUDP:
		return "udp"
	default:
		return "other"
	}
}

// Info holds the protocol fields used for correlation.
type Info struct {
	Src  netip.Addr
	Dst  netip.Addr
	Kind Kind
	// ID and Seq are set for ICMP echo packets.
	ID  uint16
	Seq uint16
	// Payload is the transport payload, aliasing the decoded buffer.
	Payload []byte
}
