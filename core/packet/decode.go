package packet

import (
	"errors"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrNotIPv4 is returned by Decode for frames without an IPv4 layer.
var ErrNotIPv4 = errors.New("frame does not carry an IPv4 packet")

// Decode extracts the correlation fields from a captured frame. linkType
// tells how the frame starts (Ethernet, raw IP, ...).
func Decode(data []byte, linkType layers.LinkType) (Info, error) {
	p := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	ipLayer, ok := p.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return Info{Kind: KindOther}, ErrNotIPv4
	}
	info := Info{Kind: KindOther}
	info.Src, _ = netip.AddrFromSlice(ipLayer.SrcIP.To4())
	info.Dst, _ = netip.AddrFromSlice(ipLayer.DstIP.To4())

	switch {
	case ipLayer.Protocol == layers.IPProtocolICMPv4:
		icmp, ok := p.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
		if !ok {
			return info, nil
		}
		switch icmp.TypeCode.Type() {
		case layers.ICMPv4TypeEchoRequest:
			info.Kind = KindEchoRequest
		case layers.ICMPv4TypeEchoReply:
			info.Kind = KindEchoReply
		default:
			return info, nil
		}
		info.ID = icmp.Id
		info.Seq = icmp.Seq
		info.Payload = icmp.Payload

	case ipLayer.Protocol == layers.IPProtocolUDP:
		if udp, ok := p.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
			info.Kind = KindUDP
			info.Payload = udp.Payload
		}
	}
	return info, nil
}
