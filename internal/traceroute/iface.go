package traceroute

import (
	"fmt"

	"github.com/google/gopacket/pcap"
)

// InterfaceByName resolves name to a capture-ready device name known to
// libpcap. On Linux the pcap device name and the kernel interface name
// are the same string, but we still go through pcap.FindAllDevs rather
// than net.InterfaceByName so that the name we hand back is guaranteed
// to be one NewChannel can open.
func InterfaceByName(name string) (string, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return "", wrapErr(ErrRxChannelIo, err)
	}
	for _, dev := range devices {
		if dev.Name == name {
			return dev.Name, nil
		}
	}
	return "", fmt.Errorf("no such capture interface: %q", name)
}
