package hpgp

import (
	"fmt"
	"net"
)

// broadcastMAC is the all-ones Ethernet broadcast address.
var broadcastMAC = net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// Iface resolves a network interface name into the fields eth_connect
// needs: its hardware address and index. It is the "interface lookup"
// line item of the platform-abstraction component.
type Iface struct {
	Name string
	MAC  net.HardwareAddr
	Idx  int
}

// ResolveIface looks up name via the standard library's interface table and
// validates it carries a usable hardware address.
func ResolveIface(name string) (*Iface, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if len(ifi.HardwareAddr) != macLen {
		return nil, fmt.Errorf("%w: interface %s has no ethernet hardware address", ErrBadParameter, name)
	}
	return &Iface{Name: ifi.Name, MAC: ifi.HardwareAddr, Idx: ifi.Index}, nil
}

// acceptSource reports whether a received frame's source address passes
// eth_recv's acceptance filter: any source on a broadcast-mode session, or
// exactly peerMAC on a unicast-mode session.
func acceptSource(src, peerMAC net.HardwareAddr) bool {
	if len(peerMAC) == 0 {
		return true
	}
	return src.String() == peerMAC.String()
}

// acceptDestination reports whether a received frame's destination address
// passes eth_recv's filter: the local NIC's own MAC, or broadcast.
func acceptDestination(dst, localMAC net.HardwareAddr) bool {
	return dst.String() == localMAC.String() || dst.String() == broadcastMAC.String()
}

// acceptLegacySource is the legacy firmware loader's wider acceptance
// filter (spec.md §6): broadcast, the configured peer, or the literal
// bootloader MAC.
func acceptLegacySource(src, peerMAC net.HardwareAddr) bool {
	if src.String() == broadcastMAC.String() || src.String() == BootloaderMAC.String() {
		return true
	}
	return acceptSource(src, peerMAC)
}
