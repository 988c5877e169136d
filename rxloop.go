package hpgp

import (
	"context"
	"sync"
)

// Callback is invoked once per completed (fully reassembled) message, from
// the RX loop goroutine. It must be non-blocking and reentrant with
// respect to the session API — per spec.md §4.5, in practice it signals a
// waiter rather than doing real work inline.
type Callback func(host HostMsgID, reqID uint16)

// rxLoop is the background worker described in spec.md §4.5: read a frame,
// classify it, push it to the RX database, and on the last fragment of a
// series, resolve the series' req_id and notify the caller.
//
// Grounded on source/HLB_host.c's HLB_rx_loop.
type rxLoop struct {
	transport Transport
	db        *RXDatabase
	logger    Logger
	metrics   Metrics
	callback  Callback

	waiters   waiterRegistry
	doneCh    chan struct{}
}

// waiterRegistry lets recv_*_cnf wait on a channel instead of purely
// polling find_and_pop, per the Design Notes' preference for message
// passing over raw condition variables. It is a secondary, best-effort
// wake-up: the authoritative state is still the RX database itself, so a
// missed or racy notify only costs a poll cycle, never correctness.
type waiterRegistry struct {
	mu      sync.Mutex
	waiters map[uint16]chan struct{}
}

func newWaiterRegistry() waiterRegistry {
	return waiterRegistry{waiters: make(map[uint16]chan struct{})}
}

// register returns a channel closed the next time notify(reqID) fires.
// Callers must call forget when done waiting, successfully or not.
func (r *waiterRegistry) register(reqID uint16) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	r.waiters[reqID] = ch
	return ch
}

func (r *waiterRegistry) forget(reqID uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.waiters, reqID)
}

func (r *waiterRegistry) notify(reqID uint16) {
	r.mu.Lock()
	ch, ok := r.waiters[reqID]
	if ok {
		delete(r.waiters, reqID)
	}
	r.mu.Unlock()
	if ok {
		close(ch)
	}
}

func newRxLoop(t Transport, db *RXDatabase, logger Logger, metrics Metrics, cb Callback) *rxLoop {
	return &rxLoop{
		transport: t,
		db:        db,
		logger:    logger,
		metrics:   metrics,
		callback:  cb,
		waiters:   newWaiterRegistry(),
		doneCh:    make(chan struct{}),
	}
}

// run is the loop body. It returns when the transport reports RecvAbort or
// a fatal transport error, matching spec.md §4.5 step 1's "on ABORT or
// error, exit."
func (l *rxLoop) run(ctx context.Context) {
	defer close(l.doneCh)

	buf := make([]byte, PacketCap)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, outcome, err := l.transport.Recv(buf, -1)
		if err != nil {
			l.logger.Errorf("rx loop: transport error: %v", err)
			return
		}
		switch outcome {
		case RecvAbort:
			return
		case RecvTimeout:
			continue
		}

		pkt, err := ParseFrame(buf[:n])
		if err != nil {
			l.logger.Warnf("rx loop: malformed frame: %v", err)
			continue
		}

		if !pkt.IsControlPath() {
			continue // data-plane payload, silently dropped per spec.md §4.5 step 3
		}

		if err := l.db.Push(pkt); err != nil {
			l.logger.Warnf("rx loop: rx database full, dropping msg_id=0x%04x", pkt.MsgID)
			continue
		}

		if pkt.FragIdx+1 != pkt.NumFrags {
			continue // not the last fragment of its series yet
		}

		var reqID uint16
		if pkt.NumFrags <= 1 {
			reqID = pkt.ReqID
		} else {
			id, err := l.db.FindReqIDOfSeries(pkt.MsgID, pkt.Fmsn)
			if err != nil {
				l.logger.Warnf("rx loop: no series found for msg_id=0x%04x fmsn=%d", pkt.MsgID, pkt.Fmsn)
				continue
			}
			reqID = id
			l.metrics.IncrementFragmentsReassembled()
		}

		host, ok := ProtocolMsgIDToHost(pkt.MsgID)
		if !ok {
			l.logger.Warnf("rx loop: unmapped msg_id=0x%04x", pkt.MsgID)
			continue
		}

		l.waiters.notify(reqID)
		if l.callback != nil {
			l.callback(host, reqID)
		}
	}
}

// stop unblocks a blocked Recv via the transport's self-pipe and waits for
// run to return.
func (l *rxLoop) stop() {
	_ = l.transport.Break()
	<-l.doneCh
}
