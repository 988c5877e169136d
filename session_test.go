package hpgp

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport double: Send captures outgoing
// frames, and tests inject incoming frames via deliver() for the RX loop
// to pick up through Recv.
type fakeTransport struct {
	localMAC net.HardwareAddr

	mu   sync.Mutex
	sent [][]byte

	recvCh  chan []byte
	breakCh chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		localMAC: net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
		recvCh:   make(chan []byte, 16),
		breakCh:  make(chan struct{}, 1),
	}
}

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), frame...))
	return nil
}

func (f *fakeTransport) Recv(buf []byte, timeoutMs int) (int, RecvOutcome, error) {
	var timeoutC <-chan time.Time
	if timeoutMs >= 0 {
		timeoutC = time.After(time.Duration(timeoutMs) * time.Millisecond)
	}
	select {
	case <-f.breakCh:
		return 0, RecvAbort, nil
	case frame := <-f.recvCh:
		n := copy(buf, frame)
		return n, RecvOK, nil
	case <-timeoutC:
		return 0, RecvTimeout, nil
	}
}

func (f *fakeTransport) Break() error {
	select {
	case f.breakCh <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) LocalMAC() net.HardwareAddr { return f.localMAC }

// deliver injects raw wire bytes as if received over the air.
func (f *fakeTransport) deliver(raw []byte) {
	f.recvCh <- raw
}

func (f *fakeTransport) lastSent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

// newTestSession wires a Session to a fakeTransport via the
// newPlatformTransport seam, and returns a cleanup func.
func newTestSession(t *testing.T, opts ...Option) (*Session, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	orig := newPlatformTransport
	newPlatformTransport = func(ifaceName string, peerMAC net.HardwareAddr, etherType uint16) (Transport, error) {
		return ft, nil
	}
	t.Cleanup(func() { newPlatformTransport = orig })

	allOpts := append([]Option{WithArenaSize(32 * 1024), WithRecvTimeout(2 * time.Second)}, opts...)
	sess, err := NewSession("fake0", nil, allOpts...)
	require.NoError(t, err)
	t.Cleanup(sess.Deinit)
	return sess, ft
}

func mustFrame(t *testing.T, p FrameParams, payload []byte) []byte {
	t.Helper()
	raw, err := BuildFrame(p, payload)
	require.NoError(t, err)
	return raw
}

func TestSessionGetVersionRoundTrip(t *testing.T) {
	sess, ft := newTestSession(t)

	const reqIDVal = uint16(7)
	require.NoError(t, sess.GetVersionReqSend(reqIDVal))
	require.NotNil(t, ft.lastSent())

	want := DeviceVersion{Major: 1, Minor: 2, Patch: 3, Build: 4242}
	cnf := mustFrame(t, FrameParams{
		DstMAC:   sess.nicMAC,
		SrcMAC:   net.HardwareAddr{0x01, 0x02, 0x03, 0x04, 0x05, 0x06},
		MsgID:    cnfID(getVersionFamily.base),
		ReqID:    reqIDVal,
		NumFrags: 1,
	}, want.encode())
	ft.deliver(cnf)

	got, err := sess.GetVersionCnfReceive(context.Background(), reqIDVal)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSessionGetVersionTimeout(t *testing.T) {
	sess, _ := newTestSession(t, WithRecvTimeout(50*time.Millisecond))
	require.NoError(t, sess.GetVersionReqSend(1))
	_, err := sess.GetVersionCnfReceive(context.Background(), 1)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestSessionWriteMemRejectsOversizedPayload(t *testing.T) {
	sess, _ := newTestSession(t)
	err := sess.WriteMemReqSend(1, WriteMemArgs{Data: make([]byte, MaxPayload)})
	require.ErrorIs(t, err, ErrBadParameter)
}

func TestSessionGetAmpMapReassembly(t *testing.T) {
	sess, ft := newTestSession(t)

	const reqIDVal = uint16(3)
	require.NoError(t, sess.GetAmpMapReqSend(reqIDVal))

	const numFrags = 3
	const fmsn = 5
	carriers := []byte{0x10, 0x20, 0x30, 0x40, 0x50, 0x60}
	chunks := [][]byte{carriers[0:2], carriers[2:4], carriers[4:6]}
	for i, chunk := range chunks {
		p := FrameParams{
			DstMAC:   sess.nicMAC,
			SrcMAC:   net.HardwareAddr{1, 2, 3, 4, 5, 6},
			MsgID:    cnfID(ampMapFamily.base),
			FragIdx:  uint8(i),
			NumFrags: numFrags,
			Fmsn:     fmsn,
		}
		if i == 0 {
			p.ReqID = reqIDVal
		}
		ft.deliver(mustFrame(t, p, chunk))
	}

	got, err := sess.GetAmpMapCnfReceive(context.Background(), reqIDVal)
	require.NoError(t, err)
	require.Equal(t, carriers, got.Carriers)
}

func TestSessionConnAddIndication(t *testing.T) {
	sess, ft := newTestSession(t)

	ind := mustFrame(t, FrameParams{
		DstMAC:   sess.nicMAC,
		SrcMAC:   net.HardwareAddr{1, 2, 3, 4, 5, 6},
		MsgID:    indID(connAddFamily.base),
		NumFrags: 1,
	}, append([]byte{0x01, 0x00}, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF))
	ft.deliver(ind)

	notice, err := sess.ConnAddIndReceive(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint16(1), notice.ConnectionID)
	require.Equal(t, [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, notice.StationMAC)
}

func TestSessionDLinkReadyIndication(t *testing.T) {
	sess, ft := newTestSession(t)

	ind := mustFrame(t, FrameParams{
		DstMAC:   sess.nicMAC,
		SrcMAC:   net.HardwareAddr{1, 2, 3, 4, 5, 6},
		MsgID:    DLinkReadyInd,
		NumFrags: 1,
	}, nil)
	ft.deliver(ind)

	require.NoError(t, sess.DLinkReadyIndReceive(context.Background()))
}

func TestSessionDeinitIsIdempotent(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.Deinit()
	sess.Deinit() // must not panic or double-close
}
