package traceroute

import (
	"net"
	"time"

	"github.com/google/gopacket/pcap"
	"golang.org/x/net/ipv4"
)

const (
	snapLen     = 256
	readTimeout = 50 * time.Millisecond
	bpfFilter   = "icmp or icmp6"
)

// Channel multiplexes TTL-limited ICMP Echo transmission and reply
// capture for a single network interface. Like the rest of this
// module, it is driven by repeated Poll calls from one goroutine; it
// is not safe for concurrent use.
type Channel struct {
	rx         *pcap.Handle
	v4         *ipv4.RawConn
	v6fd       int // -1 if IPv6 disabled
	enableIPv6 bool

	sequenceNumber uint16
}

// NewChannel opens a capture handle on ifaceName and a pair of raw
// send sockets (IPv4 always, IPv6 only when enableIPv6 is set).
func NewChannel(ifaceName string, enableIPv6 bool) (*Channel, error) {
	inactive, err := pcap.NewInactiveHandle(ifaceName)
	if err != nil {
		return nil, wrapErr(ErrRxChannelIo, err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(snapLen); err != nil {
		return nil, wrapErr(ErrRxChannelIo, err)
	}
	if err := inactive.SetPromisc(false); err != nil {
		return nil, wrapErr(ErrRxChannelIo, err)
	}
	if err := inactive.SetTimeout(readTimeout); err != nil {
		return nil, wrapErr(ErrRxChannelIo, err)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, wrapErr(ErrRxChannelIo, err)
	}
	if err := handle.SetBPFFilter(bpfFilter); err != nil {
		handle.Close()
		return nil, wrapErr(ErrRxChannelIo, err)
	}

	v4conn, err := newV4Sender()
	if err != nil {
		handle.Close()
		return nil, wrapErr(ErrIpv4ChannelIo, err)
	}

	v6fd := -1
	if enableIPv6 {
		v6fd, err = newV6Sender()
		if err != nil {
			handle.Close()
			v4conn.Close()
			return nil, wrapErr(ErrIpv6ChannelIo, err)
		}
	}

	return &Channel{rx: handle, v4: v4conn, v6fd: v6fd, enableIPv6: enableIPv6}, nil
}

// Close releases the capture handle and both send sockets.
func (c *Channel) Close() error {
	c.rx.Close()
	err := c.v4.Close()
	if c.v6fd >= 0 {
		if closeErr := closeV6Sender(c.v6fd); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// SendEcho transmits a TTL-limited ICMP Echo Request toward dst. id is
// carried both as the ICMP Echo Identifier and, for correlation
// against the inner packet quoted by a Time Exceeded reply, as the
// IPv4 Identification field or the IPv6 flow label.
func (c *Channel) SendEcho(dst net.IP, ttl uint8, id PacketId) error {
	c.sequenceNumber++
	if v4 := dst.To4(); v4 != nil {
		return c.sendEchoV4(v4, ttl, id, c.sequenceNumber)
	}
	if !c.enableIPv6 {
		return &Error{Kind: ErrIpv6Disabled}
	}
	return c.sendEchoV6(dst, ttl, id, c.sequenceNumber)
}

// Poll returns the next parsed ICMP reply captured on the interface,
// or (nil, nil) if nothing arrived within the read timeout. It never
// blocks longer than readTimeout.
func (c *Channel) Poll() (*Result, error) {
	data, _, err := c.rx.ReadPacketData()
	if err != nil {
		if err == pcap.NextErrorTimeoutExpired {
			return nil, nil
		}
		return nil, wrapErr(ErrRxChannelIo, err)
	}
	return parsePacket(data), nil
}
