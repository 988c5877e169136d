package hpgp

import (
	"context"
	"net"
	"time"
)

const (
	// DefaultEtherType is the control-plane EtherType used when the caller
	// doesn't override it via WithEtherType.
	DefaultEtherType uint16 = 0x88E1

	// DefaultArenaSize is the byte budget handed to NewRXDatabase when the
	// caller doesn't supply their own arena via WithArenaSize.
	DefaultArenaSize = 256 * 1024

	// DefaultFastPoll is the polling interval used immediately after
	// sending a request. Adaptive polling backs off exponentially from
	// FastPoll to SteadyPoll.
	DefaultFastPoll = 5 * time.Millisecond
	// DefaultSteadyPoll is the steady-state polling interval for a
	// confirmation wait that hasn't resolved yet.
	DefaultSteadyPoll = 50 * time.Millisecond

	// DefaultRecvTimeout bounds how long recv_*_cnf waits for a matching
	// confirmation before returning ErrTimeout.
	DefaultRecvTimeout = 1 * time.Second

	// DefaultLegacyTimeout is the legacy firmware loader's per-command
	// timeout (spec.md §6's TIMEOUT_MSEC).
	DefaultLegacyTimeout = 1 * time.Second
)

// Option configures a Session via NewSession.
type Option func(*Config)

// Config holds runtime settings for a Session. Zero value yields sane
// defaults via defaultConfig(); callers modify it through functional
// options.
type Config struct {
	ctx    context.Context
	cancel context.CancelFunc

	logger  Logger
	metrics Metrics

	etherType uint16
	arenaSize int

	peerMAC net.HardwareAddr

	fastPoll   time.Duration
	steadyPoll time.Duration
	recvTimeout time.Duration

	legacyTimeout time.Duration
}

// Validate checks if the configuration is sane.
func (c *Config) Validate() error {
	if c.arenaSize <= 0 {
		return ErrBadParameter
	}
	if c.recvTimeout <= 0 {
		return ErrBadParameter
	}
	return nil
}

func defaultConfig() *Config {
	ctx, cancel := context.WithCancel(context.Background())
	return &Config{
		ctx:           ctx,
		cancel:        cancel,
		logger:        noopLogger{},
		metrics:       NewNoopMetrics(),
		etherType:     DefaultEtherType,
		arenaSize:     DefaultArenaSize,
		fastPoll:      DefaultFastPoll,
		steadyPoll:    DefaultSteadyPoll,
		recvTimeout:   DefaultRecvTimeout,
		legacyTimeout: DefaultLegacyTimeout,
	}
}

func applyConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithEtherType overrides the control-plane EtherType (default 0x88E1).
func WithEtherType(et uint16) Option {
	return func(c *Config) { c.etherType = et }
}

// WithArenaSize overrides the byte budget carved into the RX database.
func WithArenaSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.arenaSize = n
		}
	}
}

// WithPeerMAC restricts the session to a single peer, matching eth_connect's
// unicast acceptance filter. Without it, the session accepts any source
// (broadcast mode).
func WithPeerMAC(mac net.HardwareAddr) Option {
	return func(c *Config) { c.peerMAC = mac }
}

// WithFastPoll sets the polling interval used immediately after sending a
// request.
func WithFastPoll(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.fastPoll = d
		}
	}
}

// WithSteadyPoll sets the backed-off steady-state polling interval.
func WithSteadyPoll(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.steadyPoll = d
		}
	}
}

// WithRecvTimeout sets the default wall-clock budget recv_*_cnf waits
// before returning ErrTimeout.
func WithRecvTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.recvTimeout = d
		}
	}
}

// WithLegacyTimeout records a legacy firmware loader per-command timeout in
// the Config. No component reads it: a Session does not create a
// LegacyLoader, and NewLegacyLoader takes its timeout as an argument.
func WithLegacyTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.legacyTimeout = d
		}
	}
}

// WithContext sets the parent of the context the RX loop checks between
// received frames. Cancelling it makes the RX loop exit once its current
// Recv returns; it does not stop the TTL cleaner or close the transport,
// which Deinit does.
func WithContext(ctx context.Context) Option {
	return func(c *Config) {
		if ctx != nil {
			c.ctx, c.cancel = context.WithCancel(ctx)
		}
	}
}

// WithLogger sets the logging sink. Defaults to a no-op logger; pass
// NewDefaultLogger() for charmbracelet/log output.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets a custom metrics implementation. Defaults to a no-op
// collector; pass NewDefaultMetrics() or NewPrometheusMetrics(reg).
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		if m != nil {
			c.metrics = m
		}
	}
}
