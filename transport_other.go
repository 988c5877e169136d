//go:build !linux

package hpgp

import "net"

// NewLinuxTransport is unavailable outside Linux: AF_PACKET raw sockets are
// a Linux-specific facility.
func NewLinuxTransport(ifaceName string, peerMAC net.HardwareAddr, etherType uint16) (*LinuxTransport, error) {
	return nil, errUnsupportedPlatform
}

// LinuxTransport is declared here so the type exists for callers/tests on
// every platform; its methods are never reachable since NewLinuxTransport
// always fails off Linux.
type LinuxTransport struct{}

func (*LinuxTransport) Send([]byte) error                               { return errUnsupportedPlatform }
func (*LinuxTransport) Recv([]byte, int) (int, RecvOutcome, error)       { return 0, RecvError, errUnsupportedPlatform }
func (*LinuxTransport) Break() error                                    { return errUnsupportedPlatform }
func (*LinuxTransport) Close() error                                    { return nil }
func (*LinuxTransport) LocalMAC() net.HardwareAddr                      { return nil }
