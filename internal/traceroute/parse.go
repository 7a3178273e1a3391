package traceroute

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// parsePacket classifies a captured Ethernet frame as an ICMP or
// ICMPv6 reply, or returns nil for anything else (in particular, for
// anything the BPF filter should already have excluded, but might not
// have on platforms where it's advisory only).
func parsePacket(data []byte) *Result {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})

	if v4 := pkt.Layer(layers.LayerTypeIPv4); v4 != nil {
		return parseICMPv4(pkt, v4.(*layers.IPv4))
	}
	if v6 := pkt.Layer(layers.LayerTypeIPv6); v6 != nil {
		return parseICMPv6(pkt, v6.(*layers.IPv6))
	}
	return nil
}

func parseICMPv4(pkt gopacket.Packet, ip *layers.IPv4) *Result {
	layer := pkt.Layer(layers.LayerTypeICMPv4)
	if layer == nil {
		return nil
	}
	msg := layer.(*layers.ICMPv4)

	switch msg.TypeCode.Type() {
	case layers.ICMPv4TypeEchoReply:
		return &Result{Kind: IcmpReply, Src: ip.SrcIP, Id: PacketId(msg.Id)}

	case layers.ICMPv4TypeTimeExceeded:
		inner := gopacket.NewPacket(msg.Payload, layers.LayerTypeIPv4, gopacket.NoCopy)
		innerIP, ok := inner.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		if !ok {
			return nil
		}
		return &Result{Kind: IcmpTimeExceeded, Src: ip.SrcIP, Id: PacketId(innerIP.Id)}

	case layers.ICMPv4TypeDestinationUnreachable:
		return &Result{Kind: IcmpDestinationUnreachable, Src: ip.SrcIP}

	default:
		return nil
	}
}

// parseICMPv6 mirrors parseICMPv4, with one deliberate difference: the
// inner packet quoted by a Time Exceeded message is parsed as IPv6,
// not IPv4, and the correlation id is recovered from its flow label
// rather than an Identification field IPv6 doesn't have.
func parseICMPv6(pkt gopacket.Packet, ip *layers.IPv6) *Result {
	layer := pkt.Layer(layers.LayerTypeICMPv6)
	if layer == nil {
		return nil
	}
	msg := layer.(*layers.ICMPv6)

	switch msg.TypeCode.Type() {
	case layers.ICMPv6TypeEchoReply:
		echo, ok := pkt.Layer(layers.LayerTypeICMPv6Echo).(*layers.ICMPv6Echo)
		if !ok {
			return nil
		}
		return &Result{Kind: IcmpReply, Src: ip.SrcIP, Id: PacketId(echo.Identifier)}

	case layers.ICMPv6TypeTimeExceeded:
		// The 4 "unused" bytes mandated by RFC 4443 §3.3 precede the
		// quoted original datagram in msg.Payload.
		if len(msg.Payload) < 4 {
			return nil
		}
		inner := gopacket.NewPacket(msg.Payload[4:], layers.LayerTypeIPv6, gopacket.NoCopy)
		innerIP, ok := inner.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		if !ok {
			return nil
		}
		return &Result{Kind: IcmpTimeExceeded, Src: ip.SrcIP, Id: PacketId(innerIP.FlowLabel & 0xFFFF)}

	case layers.ICMPv6TypeDestinationUnreachable:
		return &Result{Kind: IcmpDestinationUnreachable, Src: ip.SrcIP}

	default:
		return nil
	}
}
