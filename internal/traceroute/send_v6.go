package traceroute

import (
	"encoding/binary"
	"net"

	"golang.org/x/sys/unix"
)

const (
	ipv6HeaderLen = 40
	// icmpv6ChecksumOffset tells the kernel where, within the buffer we
	// hand to Sendto, it will find the ICMPv6 checksum field it must
	// fill in. It is measured from the start of the full packet because
	// IPV6_HDRINCL puts us in charge of the IPv6 header too.
	icmpv6ChecksumOffset = ipv6HeaderLen + 2
	icmpv6TypeEchoRequest = 128
)

func newV6Sender() (int, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_RAW, unix.IPPROTO_ICMPV6)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_HDRINCL, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_CHECKSUM, icmpv6ChecksumOffset); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func closeV6Sender(fd int) error {
	return unix.Close(fd)
}

// sendEchoV6 hand-builds a full IPv6 header plus ICMPv6 Echo Request
// and writes it to a raw IPV6_HDRINCL socket. The flow label carries
// id, matching the correlation scheme used on the IPv4 side via the
// Identification field. The ICMPv6 checksum is left zero in the
// buffer; the kernel fills it in per IPV6_CHECKSUM, since it alone
// knows the source address it will route this packet from.
func (c *Channel) sendEchoV6(dst net.IP, ttl uint8, id PacketId, seq uint16) error {
	dst16 := dst.To16()
	if dst16 == nil {
		return wrapErr(ErrPacketConstruction, net.InvalidAddrError("not an IPv6 address"))
	}

	payload := []byte(echoPayload)
	icmpLen := 8 + len(payload)
	buf := make([]byte, ipv6HeaderLen+icmpLen)

	flow := uint32(id) & 0x000FFFFF
	buf[0] = 0x60
	buf[1] = byte(flow >> 16 & 0x0F)
	buf[2] = byte(flow >> 8)
	buf[3] = byte(flow)
	binary.BigEndian.PutUint16(buf[4:6], uint16(icmpLen))
	buf[6] = 58 // next header: ICMPv6
	buf[7] = ttl
	copy(buf[8:24], net.IPv6unspecified)
	copy(buf[24:40], dst16)

	icmpBuf := buf[ipv6HeaderLen:]
	icmpBuf[0] = icmpv6TypeEchoRequest
	icmpBuf[1] = 0 // code
	// icmpBuf[2:4] checksum left zero for the kernel to fill in.
	binary.BigEndian.PutUint16(icmpBuf[4:6], uint16(id))
	binary.BigEndian.PutUint16(icmpBuf[6:8], seq)
	copy(icmpBuf[8:], payload)

	var sa unix.SockaddrInet6
	copy(sa.Addr[:], dst16)

	if err := unix.Sendto(c.v6fd, buf, 0, &sa); err != nil {
		return wrapErr(ErrIpv6ChannelIo, err)
	}
	return nil
}
