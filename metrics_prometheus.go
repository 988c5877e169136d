package hpgp

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements Metrics on top of prometheus counters, for
// sessions that want to expose RX-database activity to a scrape endpoint
// instead of (or in addition to) reading DefaultMetrics directly.
type PrometheusMetrics struct {
	pushed               prometheus.Counter
	dropped              prometheus.Counter
	evicted              prometheus.Counter
	timeouts             prometheus.Counter
	fragmentsReassembled prometheus.Counter
	bytesSent            prometheus.Counter
	bytesReceived        prometheus.Counter
}

// NewPrometheusMetrics registers a namespaced set of counters on reg and
// returns a Metrics backed by them.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		pushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hpgp", Subsystem: "rxdb", Name: "pushed_total",
			Help: "Packets successfully pushed into the RX database.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hpgp", Subsystem: "rxdb", Name: "dropped_total",
			Help: "Packets dropped because their tier was full.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hpgp", Subsystem: "rxdb", Name: "evicted_total",
			Help: "Indication-tier packets evicted by the TTL cleaner.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hpgp", Subsystem: "session", Name: "timeouts_total",
			Help: "Confirmation waits that exceeded their deadline.",
		}),
		fragmentsReassembled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hpgp", Subsystem: "rxdb", Name: "fragments_reassembled_total",
			Help: "Fragments consumed while reassembling a multi-fragment confirmation.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hpgp", Subsystem: "transport", Name: "bytes_sent_total",
			Help: "Bytes written to the raw transport.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hpgp", Subsystem: "transport", Name: "bytes_received_total",
			Help: "Bytes read from the raw transport.",
		}),
	}
	reg.MustRegister(m.pushed, m.dropped, m.evicted, m.timeouts, m.fragmentsReassembled, m.bytesSent, m.bytesReceived)
	return m
}

func (m *PrometheusMetrics) IncrementPushed()               { m.pushed.Inc() }
func (m *PrometheusMetrics) IncrementDropped()               { m.dropped.Inc() }
func (m *PrometheusMetrics) IncrementEvicted()               { m.evicted.Inc() }
func (m *PrometheusMetrics) IncrementTimeouts()              { m.timeouts.Inc() }
func (m *PrometheusMetrics) IncrementFragmentsReassembled()  { m.fragmentsReassembled.Inc() }
func (m *PrometheusMetrics) IncrementBytesSent(n int64)      { m.bytesSent.Add(float64(n)) }
func (m *PrometheusMetrics) IncrementBytesReceived(n int64)  { m.bytesReceived.Add(float64(n)) }

// The Get* accessors are not meaningful for a prometheus-backed collector
// (values live in the registry, read via scrape); they return 0.
func (m *PrometheusMetrics) GetPushed() int64               { return 0 }
func (m *PrometheusMetrics) GetDropped() int64               { return 0 }
func (m *PrometheusMetrics) GetEvicted() int64               { return 0 }
func (m *PrometheusMetrics) GetTimeouts() int64               { return 0 }
func (m *PrometheusMetrics) GetFragmentsReassembled() int64   { return 0 }
func (m *PrometheusMetrics) GetBytesSent() int64             { return 0 }
func (m *PrometheusMetrics) GetBytesReceived() int64         { return 0 }
