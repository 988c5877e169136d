package hpgp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Version is the library's semantic version, returned by GetVersion.
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
	Build uint16
}

const (
	versionMajor = 1
	versionMinor = 0
	versionPatch = 0
	versionBuild = 0
)

// Session is the public entry point (C7): it owns the arena, the RX
// database, the transport, and the RX loop, and exposes the per-operation
// send/receive pairs built on top of them.
//
// Grounded on source/HLB_host.c's HLB_init/HLB_deinit/HLB_get_version.
type Session struct {
	id     string
	cfg    *Config
	arena  *Arena
	db     *RXDatabase
	tr     Transport
	loop   *rxLoop

	nicMAC net.HardwareAddr

	closeOnce sync.Once
}

// NewSession initialises the arena, opens the raw socket bound to
// ifaceName with the configured EtherType, constructs the RX database from
// the arena remainder, and spawns the RX loop — session_init's four steps
// from spec.md §2.
func NewSession(ifaceName string, callback Callback, opts ...Option) (*Session, error) {
	cfg := applyConfig(opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	arenaBuf := make([]byte, cfg.arenaSize)
	arena := NewArena(arenaBuf)
	SetCurrent(arena)

	tr, err := newPlatformTransport(ifaceName, cfg.peerMAC, cfg.etherType)
	if err != nil {
		ClearCurrent(arena)
		return nil, err
	}

	db, err := NewRXDatabase(arena, arena.Remaining(), cfg.logger, cfg.metrics)
	if err != nil {
		ClearCurrent(arena)
		tr.Close()
		return nil, err
	}

	s := &Session{
		id:     uuid.New().String(),
		cfg:    cfg,
		arena:  arena,
		db:     db,
		tr:     tr,
		nicMAC: tr.LocalMAC(),
	}

	s.loop = newRxLoop(tr, db, cfg.logger, cfg.metrics, callback)
	go s.loop.run(cfg.ctx)

	cfg.logger.Infof("session %s: initialized on %s, arena=%d bytes, main=%d indication=%d",
		s.id, ifaceName, cfg.arenaSize, db.CapacityMain(), db.CapacityIndication())
	return s, nil
}

// newPlatformTransport is a seam tests can override to inject a fake
// Transport instead of opening a real raw socket.
var newPlatformTransport = func(ifaceName string, peerMAC net.HardwareAddr, etherType uint16) (Transport, error) {
	return NewLinuxTransport(ifaceName, peerMAC, etherType)
}

// ID returns the session's correlation identifier, assigned at init for
// log correlation.
func (s *Session) ID() string { return s.id }

// GetVersion returns the library's semantic version.
func (s *Session) GetVersion() Version {
	return Version{Major: versionMajor, Minor: versionMinor, Patch: versionPatch, Build: versionBuild}
}

// Deinit tears the session down: breaks the RX loop's blocked recv, joins
// it, stops the TTL cleaner, and releases the process-wide arena handle.
// The arena's backing memory is released when s (and arenaBuf) become
// unreachable; per spec.md §4.4, nothing inside the RX database is
// individually freed.
//
// Grounded on source/HLB_host.c's HLB_deinit.
func (s *Session) Deinit() {
	s.closeOnce.Do(func() {
		s.cfg.cancel()
		s.loop.stop()
		s.db.Close()
		_ = s.tr.Close()
		ClearCurrent(s.arena)
		s.cfg.logger.Infof("session %s: arena usage %d/%d bytes", s.id, s.arena.Usage(), s.arena.Capacity())
	})
}

// sendRequest builds and transmits a request frame for a single-fragment
// operation, matching C6/C7's build-then-transmit contract.
func (s *Session) sendRequest(msgID, reqID uint16, payload []byte) error {
	frame, err := BuildFrame(FrameParams{
		DstMAC:    s.peerOrBroadcast(),
		SrcMAC:    s.nicMAC,
		EtherType: s.cfg.etherType,
		MsgID:     msgID,
		ReqID:     reqID,
		NumFrags:  1,
	}, payload)
	if err != nil {
		return err
	}
	if err := s.tr.Send(frame); err != nil {
		return err
	}
	s.cfg.metrics.IncrementBytesSent(int64(len(frame)))
	return nil
}

func (s *Session) peerOrBroadcast() net.HardwareAddr {
	if len(s.cfg.peerMAC) == macLen {
		return s.cfg.peerMAC
	}
	return broadcastMAC
}

// recvConfirmation waits for a single-fragment confirmation matching
// (msgID, reqID), either via the RX loop's waiter notification or, failing
// that, by polling find_and_pop with adaptive backoff — C7's recv_*_cnf.
func (s *Session) recvConfirmation(ctx context.Context, msgID, reqID uint16, timeout time.Duration) (*Packet, error) {
	deadline := time.Now().Add(timeout)
	ch := s.loop.waiters.register(reqID)
	defer s.loop.waiters.forget(reqID)

	if pkt, err := s.db.FindAndPop(msgID, reqID); err == nil {
		return pkt, nil
	}

	poll := NewAdaptivePoll(s.cfg.fastPoll, s.cfg.steadyPoll)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.cfg.metrics.IncrementTimeouts()
			return nil, ErrTimeout
		}

		wait := remaining
		if poll.Cur < wait {
			wait = poll.Cur
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: session closed", ErrBadState)
		case <-ch:
			// notified: fall through to a find_and_pop attempt
		case <-time.After(wait):
		}

		if pkt, err := s.db.FindAndPop(msgID, reqID); err == nil {
			return pkt, nil
		}
		poll.Sleep()
	}
}

// recvFragmentedConfirmation implements the multi-fragment drain loop of
// spec.md §4.6's final listing: pop fragment 0 by req_id, then fragments
// 1..N-1 by (msg_id, fmsn, frag_idx).
func (s *Session) recvFragmentedConfirmation(ctx context.Context, msgID, reqID uint16, timeout time.Duration) ([]*Packet, error) {
	first, err := s.recvConfirmation(ctx, msgID, reqID, timeout)
	if err != nil {
		return nil, err
	}
	frags := []*Packet{first}
	if first.NumFrags <= 1 {
		return frags, nil
	}

	deadline := time.Now().Add(timeout)
	for f := uint8(1); f < first.NumFrags; f++ {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.cfg.metrics.IncrementTimeouts()
			return nil, ErrTimeout
		}
		pkt, err := s.pollFragment(ctx, msgID, f, first.Fmsn, remaining)
		if err != nil {
			return nil, err
		}
		frags = append(frags, pkt)
	}
	return frags, nil
}

func (s *Session) pollFragment(ctx context.Context, msgID uint16, fragIdx, fmsn uint8, timeout time.Duration) (*Packet, error) {
	deadline := time.Now().Add(timeout)
	poll := NewAdaptivePoll(s.cfg.fastPoll, s.cfg.steadyPoll)
	for {
		if pkt, err := s.db.FindAndPopFragment(msgID, 0, fragIdx, fmsn); err == nil {
			return pkt, nil
		}
		if time.Until(deadline) <= 0 {
			s.cfg.metrics.IncrementTimeouts()
			return nil, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: session closed", ErrBadState)
		case <-time.After(poll.Cur):
		}
		poll.Sleep()
	}
}

// recvIndication waits for an asynchronous indication matching msgID by
// polling find_and_pop_fragment directly. The caller typically doesn't know
// a req_id for unsolicited traffic, so it looks up req_id 0; because the
// indication tier matches (msg_id, req_id) exactly, only indications that
// carry req_id 0 are found.
func (s *Session) recvIndication(ctx context.Context, msgID uint16, timeout time.Duration) (*Packet, error) {
	deadline := time.Now().Add(timeout)
	poll := NewAdaptivePoll(s.cfg.fastPoll, s.cfg.steadyPoll)
	for {
		if pkt, err := s.db.FindAndPopFragment(msgID, 0, 0, 0); err == nil {
			return pkt, nil
		}
		if time.Until(deadline) <= 0 {
			return nil, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: session closed", ErrBadState)
		case <-time.After(poll.Cur):
		}
		poll.Sleep()
	}
}

// NextReqID is a tiny helper for example/test code that doesn't maintain
// its own request-ID allocator; production callers are expected to manage
// their own req_id space per spec.md (the core treats it as caller-supplied).
var reqIDCounter struct {
	mu  sync.Mutex
	cur uint16
}

func NextReqID() uint16 {
	reqIDCounter.mu.Lock()
	defer reqIDCounter.mu.Unlock()
	reqIDCounter.cur++
	return reqIDCounter.cur
}
