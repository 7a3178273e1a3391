package traceroute

import (
	"net"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// echoPayload is the marker text carried in every outgoing ICMP Echo,
// purely cosmetic (helps a packet capture tell our probes apart from
// other traffic on the wire).
const echoPayload = "ktr"

func newV4Sender() (*ipv4.RawConn, error) {
	pc, err := net.ListenPacket("ip4:1", "0.0.0.0")
	if err != nil {
		return nil, err
	}
	raw, err := ipv4.NewRawConn(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}
	return raw, nil
}

func (c *Channel) sendEchoV4(dst net.IP, ttl uint8, id PacketId, seq uint16) error {
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   int(id),
			Seq:  int(seq),
			Data: []byte(echoPayload),
		},
	}
	payload, err := msg.Marshal(nil)
	if err != nil {
		return wrapErr(ErrPacketConstruction, err)
	}

	header := &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: ipv4.HeaderLen + len(payload),
		TTL:      int(ttl),
		Protocol: 1, // ICMP
		Flags:    ipv4.DontFragment,
		Dst:      dst,
		ID:       int(id),
	}

	if err := c.v4.WriteTo(header, payload, nil); err != nil {
		return wrapErr(ErrIpv4ChannelIo, err)
	}
	return nil
}
