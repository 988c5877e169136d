//go:build linux

package hpgp

import (
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// LinuxTransport is the AF_PACKET/SOCK_RAW implementation of Transport.
// Cancellation of an in-flight Recv is realised with a self-pipe polled
// alongside the socket fd, matching eth_break_recv's self-pipe design in
// spec.md §4.3/§5.
//
// Grounded on other_examples' rawcap_linux.go (socket creation, bind,
// Recvfrom loop, EINTR retry, SO_RCVBUF/SO_RCVTIMEO handling).
type LinuxTransport struct {
	fd        int
	iface     *net.Interface
	localMAC  net.HardwareAddr
	peerMAC   net.HardwareAddr // nil/empty: broadcast mode, any source accepted
	etherType uint16

	pipeR int
	pipeW int

	mu     sync.Mutex
	closed bool
}

func htons(v uint16) uint16 { return (v<<8)&0xff00 | v>>8 }

// NewLinuxTransport opens a raw socket bound to ifaceName, filtered to
// etherType. peerMAC may be nil for broadcast-mode acceptance.
func NewLinuxTransport(ifaceName string, peerMAC net.HardwareAddr, etherType uint16) (*LinuxTransport, error) {
	ifi, err := ResolveIface(ifaceName)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(etherType)))
	if err != nil {
		return nil, fmt.Errorf("%w: socket: %v", ErrHWAbort, err)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(etherType),
		Ifindex:  ifi.Idx,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: bind: %v", ErrHWAbort, err)
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_NONBLOCK); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: self-pipe: %v", ErrHWAbort, err)
	}

	return &LinuxTransport{
		fd:        fd,
		iface:     &net.Interface{Name: ifi.Name, HardwareAddr: ifi.MAC, Index: ifi.Idx},
		localMAC:  ifi.MAC,
		peerMAC:   peerMAC,
		etherType: etherType,
		pipeR:     pipeFds[0],
		pipeW:     pipeFds[1],
	}, nil
}

func (t *LinuxTransport) LocalMAC() net.HardwareAddr { return t.localMAC }

// Send truncates/pads per eth_send's policy and writes with MSG_DONTWAIT,
// matching spec.md §4.3's non-blocking send contract.
func (t *LinuxTransport) Send(frame []byte) error {
	frame = prepareSend(frame)
	if len(frame) < l2HeaderSize {
		return fmt.Errorf("%w: frame shorter than l2 header", ErrBadParameter)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(t.etherType),
		Ifindex:  t.iface.Index,
		Halen:    macLen,
	}
	copy(addr.Addr[:macLen], frame[0:6])

	err := unix.Sendto(t.fd, frame, unix.MSG_DONTWAIT, addr)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return fmt.Errorf("%w: sendto would block", ErrResourceInUse)
		}
		return fmt.Errorf("%w: sendto: %v", ErrHWAbort, err)
	}
	return nil
}

// Recv blocks up to timeoutMs (negative: indefinitely) for one accepted
// frame. It polls the socket fd and the self-pipe's read end together so
// Break can wake it.
func (t *LinuxTransport) Recv(buf []byte, timeoutMs int) (int, RecvOutcome, error) {
	deadline := time.Time{}
	if timeoutMs >= 0 {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}

	for {
		pollTimeout := -1
		if timeoutMs >= 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return 0, RecvTimeout, nil
			}
			pollTimeout = int(remaining / time.Millisecond)
			if pollTimeout == 0 {
				pollTimeout = 1
			}
		}

		fds := []unix.PollFd{
			{Fd: int32(t.fd), Events: unix.POLLIN},
			{Fd: int32(t.pipeR), Events: unix.POLLIN},
		}
		n, err := unix.Poll(fds, pollTimeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, RecvError, fmt.Errorf("%w: poll: %v", ErrHWAbort, err)
		}
		if n == 0 {
			return 0, RecvTimeout, nil
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			var drain [64]byte
			unix.Read(t.pipeR, drain[:])
			return 0, RecvAbort, nil
		}

		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		nRead, _, err := unix.Recvfrom(t.fd, buf, 0)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				continue
			}
			return 0, RecvError, fmt.Errorf("%w: recvfrom: %v", ErrHWAbort, err)
		}
		if nRead < l2HeaderSize {
			continue // malformed/runt frame, keep waiting
		}

		dst := net.HardwareAddr(buf[0:6])
		src := net.HardwareAddr(buf[6:12])
		if !acceptDestination(dst, t.localMAC) {
			continue
		}
		if !acceptSource(src, t.peerMAC) {
			continue
		}
		return nRead, RecvOK, nil
	}
}

// Break wakes any in-flight Recv by writing one byte to the self-pipe.
func (t *LinuxTransport) Break() error {
	_, err := unix.Write(t.pipeW, []byte{0})
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("%w: break: %v", ErrHWAbort, err)
	}
	return nil
}

// Close releases the socket and self-pipe. Safe to call once; subsequent
// calls are no-ops.
func (t *LinuxTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	unix.Close(t.pipeR)
	unix.Close(t.pipeW)
	return unix.Close(t.fd)
}
