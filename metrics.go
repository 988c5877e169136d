package hpgp

import "sync/atomic"

// Metrics tracks RX database and transport activity. Implementations must
// be safe for concurrent use: Push, the RX loop, the session's senders and
// receivers, and the cleaner all call into it from different goroutines.
type Metrics interface {
	IncrementPushed()
	IncrementDropped()
	IncrementEvicted()
	IncrementTimeouts()
	IncrementFragmentsReassembled()
	IncrementBytesSent(n int64)
	IncrementBytesReceived(n int64)

	GetPushed() int64
	GetDropped() int64
	GetEvicted() int64
	GetTimeouts() int64
	GetFragmentsReassembled() int64
	GetBytesSent() int64
	GetBytesReceived() int64
}

// DefaultMetrics implements Metrics with atomic counters, following the
// teacher's atomic-counter convention.
type DefaultMetrics struct {
	pushed                int64
	dropped               int64
	evicted               int64
	timeouts              int64
	fragmentsReassembled  int64
	bytesSent             int64
	bytesReceived         int64
}

// NewDefaultMetrics returns a Metrics backed by in-process atomic counters.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementPushed()               { atomic.AddInt64(&m.pushed, 1) }
func (m *DefaultMetrics) IncrementDropped()               { atomic.AddInt64(&m.dropped, 1) }
func (m *DefaultMetrics) IncrementEvicted()               { atomic.AddInt64(&m.evicted, 1) }
func (m *DefaultMetrics) IncrementTimeouts()               { atomic.AddInt64(&m.timeouts, 1) }
func (m *DefaultMetrics) IncrementFragmentsReassembled()   { atomic.AddInt64(&m.fragmentsReassembled, 1) }
func (m *DefaultMetrics) IncrementBytesSent(n int64)       { atomic.AddInt64(&m.bytesSent, n) }
func (m *DefaultMetrics) IncrementBytesReceived(n int64)   { atomic.AddInt64(&m.bytesReceived, n) }

func (m *DefaultMetrics) GetPushed() int64               { return atomic.LoadInt64(&m.pushed) }
func (m *DefaultMetrics) GetDropped() int64               { return atomic.LoadInt64(&m.dropped) }
func (m *DefaultMetrics) GetEvicted() int64               { return atomic.LoadInt64(&m.evicted) }
func (m *DefaultMetrics) GetTimeouts() int64               { return atomic.LoadInt64(&m.timeouts) }
func (m *DefaultMetrics) GetFragmentsReassembled() int64   { return atomic.LoadInt64(&m.fragmentsReassembled) }
func (m *DefaultMetrics) GetBytesSent() int64             { return atomic.LoadInt64(&m.bytesSent) }
func (m *DefaultMetrics) GetBytesReceived() int64         { return atomic.LoadInt64(&m.bytesReceived) }

// noopMetrics discards everything; used as the zero-value default so a
// Session constructed without WithMetrics never nil-derefs.
type noopMetrics struct{}

// NewNoopMetrics returns a Metrics that discards every update.
func NewNoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) IncrementPushed()              {}
func (noopMetrics) IncrementDropped()             {}
func (noopMetrics) IncrementEvicted()             {}
func (noopMetrics) IncrementTimeouts()            {}
func (noopMetrics) IncrementFragmentsReassembled() {}
func (noopMetrics) IncrementBytesSent(int64)      {}
func (noopMetrics) IncrementBytesReceived(int64)  {}
func (noopMetrics) GetPushed() int64              { return 0 }
func (noopMetrics) GetDropped() int64             { return 0 }
func (noopMetrics) GetEvicted() int64             { return 0 }
func (noopMetrics) GetTimeouts() int64            { return 0 }
func (noopMetrics) GetFragmentsReassembled() int64 { return 0 }
func (noopMetrics) GetBytesSent() int64           { return 0 }
func (noopMetrics) GetBytesReceived() int64       { return 0 }
