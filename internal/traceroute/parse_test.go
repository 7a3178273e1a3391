package traceroute

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	testSrc4 = net.IPv4(198, 51, 100, 1).To4()
	testDst4 = net.IPv4(203, 0, 113, 9).To4()
	testSrc6 = net.ParseIP("2001:db8::1")
	testDst6 = net.ParseIP("2001:db8::9")
)

func serialize(t *testing.T, layersToSerialize ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, layersToSerialize...); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func rawIPv4(t *testing.T, id uint16, src, dst net.IP) []byte {
	t.Helper()
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 63, Id: id, Protocol: layers.IPProtocolICMPv4, SrcIP: src, DstIP: dst}
	// Only the IPv4 header is quoted back by convention for the
	// minimal fixture; the inner ICMP payload is irrelevant here.
	return serialize(t, ip)[0 : 20]
}

func rawIPv6(t *testing.T, flowLabel uint32, src, dst net.IP) []byte {
	t.Helper()
	ip := &layers.IPv6{Version: 6, FlowLabel: flowLabel, NextHeader: layers.IPProtocolICMPv6, HopLimit: 63, SrcIP: src, DstIP: dst}
	return serialize(t, ip)
}

func ethFrame(t *testing.T, etherType layers.EthernetType, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	eth := &layers.Ethernet{EthernetType: etherType}
	all := append([]gopacket.SerializableLayer{eth}, ls...)
	return serialize(t, all...)
}

func TestParseICMPv4EchoReply(t *testing.T) {
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 50, Protocol: layers.IPProtocolICMPv4, SrcIP: testSrc4, DstIP: testDst4}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0), Id: 4242, Seq: 1}
	data := ethFrame(t, layers.EthernetTypeIPv4, ip, icmp)

	res := parsePacket(data)
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if res.Kind != IcmpReply {
		t.Fatalf("Kind = %v, want IcmpReply", res.Kind)
	}
	if res.Id != PacketId(4242) {
		t.Fatalf("Id = %v, want 4242", res.Id)
	}
	if !res.Src.Equal(testSrc4) {
		t.Fatalf("Src = %v, want %v", res.Src, testSrc4)
	}
}

func TestParseICMPv4TimeExceeded(t *testing.T) {
	inner := rawIPv4(t, 0xBEEF, testDst4, net.IPv4(8, 8, 8, 8))

	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 50, Protocol: layers.IPProtocolICMPv4, SrcIP: testSrc4, DstIP: testDst4}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeTimeExceeded, 0)}
	data := ethFrame(t, layers.EthernetTypeIPv4, ip, icmp, gopacket.Payload(inner))

	res := parsePacket(data)
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if res.Kind != IcmpTimeExceeded {
		t.Fatalf("Kind = %v, want IcmpTimeExceeded", res.Kind)
	}
	if res.Id != PacketId(0xBEEF) {
		t.Fatalf("Id = %#x, want 0xBEEF", uint16(res.Id))
	}
	if !res.Src.Equal(testSrc4) {
		t.Fatalf("Src = %v, want %v (the router that sent the Time Exceeded, not the quoted inner source)", res.Src, testSrc4)
	}
}

func TestParseICMPv4DestinationUnreachable(t *testing.T) {
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 50, Protocol: layers.IPProtocolICMPv4, SrcIP: testSrc4, DstIP: testDst4}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, 3)}
	data := ethFrame(t, layers.EthernetTypeIPv4, ip, icmp)

	res := parsePacket(data)
	if res == nil || res.Kind != IcmpDestinationUnreachable {
		t.Fatalf("got %+v, want IcmpDestinationUnreachable", res)
	}
}

func TestParseICMPv6EchoReply(t *testing.T) {
	ip := &layers.IPv6{Version: 6, NextHeader: layers.IPProtocolICMPv6, HopLimit: 50, SrcIP: testSrc6, DstIP: testDst6}
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeEchoReply, 0)}
	echo := &layers.ICMPv6Echo{Identifier: 9001, SeqNumber: 1}
	data := ethFrame(t, layers.EthernetTypeIPv6, ip, icmp, echo)

	res := parsePacket(data)
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if res.Kind != IcmpReply || res.Id != PacketId(9001) {
		t.Fatalf("got %+v, want IcmpReply id 9001", res)
	}
}

// TestParseICMPv6TimeExceeded_FlowLabelRecovery is the regression
// fixture for the hop-correlation fix: the inner datagram quoted by an
// IPv6 Time Exceeded message is itself IPv6, so the correlation id
// must be read back out of its flow label, not misread as though it
// were an IPv4 Identification field.
func TestParseICMPv6TimeExceeded_FlowLabelRecovery(t *testing.T) {
	const flowLabel = 0x0ABCD
	inner := rawIPv6(t, flowLabel, testDst6, net.ParseIP("2001:db8::ffff"))

	ip := &layers.IPv6{Version: 6, NextHeader: layers.IPProtocolICMPv6, HopLimit: 50, SrcIP: testSrc6, DstIP: testDst6}
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeTimeExceeded, 0)}
	unused := make([]byte, 4)
	payload := append(unused, inner...)
	data := ethFrame(t, layers.EthernetTypeIPv6, ip, icmp, gopacket.Payload(payload))

	res := parsePacket(data)
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if res.Kind != IcmpTimeExceeded {
		t.Fatalf("Kind = %v, want IcmpTimeExceeded", res.Kind)
	}
	if res.Id != PacketId(flowLabel&0xFFFF) {
		t.Fatalf("Id = %#x, want %#x", uint16(res.Id), flowLabel&0xFFFF)
	}
}

func TestParseICMPv6DestinationUnreachable(t *testing.T) {
	ip := &layers.IPv6{Version: 6, NextHeader: layers.IPProtocolICMPv6, HopLimit: 50, SrcIP: testSrc6, DstIP: testDst6}
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeDestinationUnreachable, 4)}
	data := ethFrame(t, layers.EthernetTypeIPv6, ip, icmp)

	res := parsePacket(data)
	if res == nil || res.Kind != IcmpDestinationUnreachable {
		t.Fatalf("got %+v, want IcmpDestinationUnreachable", res)
	}
}

func TestParseUninterestingPacket(t *testing.T) {
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 50, Protocol: layers.IPProtocolUDP, SrcIP: testSrc4, DstIP: testDst4}
	udp := &layers.UDP{SrcPort: 53, DstPort: 12345}
	data := ethFrame(t, layers.EthernetTypeIPv4, ip, udp)

	if res := parsePacket(data); res != nil {
		t.Fatalf("got %+v, want nil for a non-ICMP packet", res)
	}
}
