package packet

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const defaultTTL = 64

var serializeOptions = gopacket.SerializeOptions{
	FixLengths:       true,
	ComputeChecksums: true,
}

// BuildEcho serializes an ICMPv4 echo request or reply.
func BuildEcho(addr Addressing, kind Kind, id, seq uint16, payload []byte) (Frame, error) {
	var typ uint8
	switch kind {
	case KindEchoRequest:
		typ = layers.ICMPv4TypeEchoRequest
	case KindEchoReply:
		typ = layers.ICMPv4TypeEchoReply
	default:
		return Frame{}, fmt.Errorf("cannot build echo frame of kind %s", kind)
	}

	ip, err := ipv4Layer(addr, layers.IPProtocolICMPv4)
	if err != nil {
		return Frame{}, err
	}
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(typ, 0),
		Id:       id,
		Seq:      seq,
	}
	return serialize(addr, ip, icmp, payload)
}

// BuildUDP serializes a UDP datagram carrying payload.
func BuildUDP(addr Addressing, srcPort, dstPort uint16, payload []byte) (Frame, error) {
	ip, err := ipv4Layer(addr, layers.IPProtocolUDP)
	if err != nil {
		return Frame{}, err
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return Frame{}, fmt.Errorf("udp checksum setup failed: %w", err)
	}
	return serialize(addr, ip, udp, payload)
}

// EchoReplyFor builds the reply a host would send for an echo request.
// ok is false when frame is not an IPv4 echo request.
func EchoReplyFor(frame Frame) (Frame, bool) {
	info, err := Decode(frame.Data, frame.LinkType)
	if err != nil || info.Kind != KindEchoRequest {
		return Frame{}, false
	}

	addr := Addressing{SrcIP: info.Dst, DstIP: info.Src}
	if frame.LinkType == layers.LinkTypeEthernet && len(frame.Data) >= 14 {
		addr.SrcMAC = net.HardwareAddr(append([]byte(nil), frame.Data[0:6]...))
		addr.DstMAC = net.HardwareAddr(append([]byte(nil), frame.Data[6:12]...))
	}
	payload := append([]byte(nil), info.Payload...)
	reply, err := BuildEcho(addr, KindEchoReply, info.ID, info.Seq, payload)
	if err != nil {
		return Frame{}, false
	}
	return reply, true
}

func ipv4Layer(addr Addressing, proto layers.IPProtocol) (*layers.IPv4, error) {
	if !addr.SrcIP.Is4() || !addr.DstIP.Is4() {
		return nil, fmt.Errorf("only IPv4 flows are supported (src=%s, dst=%s)", addr.SrcIP, addr.DstIP)
	}
	src, dst := addr.SrcIP.As4(), addr.DstIP.As4()
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      defaultTTL,
		Protocol: proto,
		SrcIP:    net.IP(src[:]),
		DstIP:    net.IP(dst[:]),
	}, nil
}

func serialize(addr Addressing, ip *layers.IPv4, transport gopacket.SerializableLayer, payload []byte) (Frame, error) {
	buf := gopacket.NewSerializeBuffer()
	stack := make([]gopacket.SerializableLayer, 0, 4)
	linkType := layers.LinkTypeRaw
	if addr.HasL2() {
		stack = append(stack, &layers.Ethernet{
			SrcMAC:       addr.SrcMAC,
			DstMAC:       addr.DstMAC,
			EthernetType: layers.EthernetTypeIPv4,
		})
		linkType = layers.LinkTypeEthernet
	}
	stack = append(stack, ip, transport, gopacket.Payload(payload))
	if err := gopacket.SerializeLayers(buf, serializeOptions, stack...); err != nil {
		return Frame{}, fmt.Errorf("serializing frame: %w", err)
	}
	data := make([]byte, len(buf.Bytes()))
	copy(data, buf.Bytes())
	return Frame{Data: data, LinkType: linkType}, nil
}
