// Package writer ships batched frames from a per-writer ring to a stream
// socket with predictable latency, recovering across peer restarts.
package writer

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/launix-de/ultra-geyser-pipeline/frame"
	"github.com/launix-de/ultra-geyser-pipeline/internal/logging"
	"github.com/launix-de/ultra-geyser-pipeline/pipeline"
)

// State names a Session's place in the batch-assembly state machine.
type State int

const (
	Disconnected State = iota
	ConnectedIdle
	ConnectedDraining
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case ConnectedIdle:
		return "connected_idle"
	case ConnectedDraining:
		return "connected_draining"
	default:
		return "unknown"
	}
}

// Config bundles the tunables a Session needs, independent of the package
// the pipeline's full config type lives in so this package stays testable
// without importing config.
type Config struct {
	SocketPath     string
	BatchMax       int
	BatchBytesMax  int
	FlushAfterMs   int
	WriteTimeoutMs int

	// RingIdleTimeout bounds how long a blocking ring read waits before
	// re-checking shutdown; it has no spec-level tuning knob and defaults
	// to 50ms.
	RingIdleTimeout time.Duration

	BaselineBackoff time.Duration // default 200ms
	MaxBackoff      time.Duration // default 2s
}

func (c *Config) fillDefaults() {
	if c.RingIdleTimeout <= 0 {
		c.RingIdleTimeout = 50 * time.Millisecond
	}
	if c.BaselineBackoff <= 0 {
		c.BaselineBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 2 * time.Second
	}
	if c.BatchMax <= 0 {
		c.BatchMax = 256
	}
}

// Dialer opens the transport connection to the aggregator; production code
// points this at DialSocket (socket_linux.go / socket_other.go), tests
// substitute an in-memory net.Pipe.
type Dialer func(socketPath string) (net.Conn, error)

// Session drains one writer's ring, batches frames, and writes them to a
// stream socket, reconnecting with jittered backoff across peer restarts.
type Session struct {
	ID     int
	Cfg    Config
	Ring   *pipeline.Ring
	Pool   *pipeline.BufferPool
	Dial   Dialer
	Log    *logging.Logger
	Shutdown *atomic.Bool

	state      atomic.Int32
	backoffSeq uint64
	conn       net.Conn

	// lastConnectLog/lastLoggedBackoff throttle reconnect-failure logging
	// to once per backoff change or once per 30s.
	lastConnectLog   time.Time
	lastLoggedBackoff time.Duration
}

// NewSession builds a session in the Disconnected state.
func NewSession(id int, cfg Config, ring *pipeline.Ring, pool *pipeline.BufferPool, dial Dialer, shutdown *atomic.Bool) *Session {
	cfg.fillDefaults()
	s := &Session{
		ID:       id,
		Cfg:      cfg,
		Ring:     ring,
		Pool:     pool,
		Dial:     dial,
		Log:      logging.New("writer"),
		Shutdown: shutdown,
	}
	s.state.Store(int32(Disconnected))
	return s
}

// State returns the session's current state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) isShutdown() bool {
	return s.Shutdown != nil && s.Shutdown.Load()
}

// Run drives the session until shutdown is signalled, reconnecting as
// needed. It returns once the shutdown flag is observed. A batch whose
// write is in progress is finished first, except that a write still being
// retried after a transient error is abandoned and its batch released.
func (s *Session) Run() {
	backoff := s.Cfg.BaselineBackoff
	for !s.isShutdown() {
		conn, err := s.Dial(s.Cfg.SocketPath)
		if err != nil {
			s.logConnectFailure(err, backoff)
			backoff = s.sleepBackoff(backoff)
			continue
		}
		s.conn = conn
		backoff = s.Cfg.BaselineBackoff
		s.backoffSeq = 0
		s.state.Store(int32(ConnectedIdle))

		s.drainLoop()

		conn.Close()
		s.conn = nil
		if s.isShutdown() {
			break
		}
		backoff = s.sleepBackoff(backoff)
	}
	s.state.Store(int32(Disconnected))
}

// drainLoop runs the Connected-Idle/Connected-Draining batch-assembly loop
// until a write error forces a reconnect or shutdown is requested.
func (s *Session) drainLoop() {
	for {
		if s.isShutdown() {
			return
		}
		s.state.Store(int32(ConnectedIdle))
		first := s.Ring.Pop()
		if first == nil {
			time.Sleep(s.Cfg.RingIdleTimeout)
			continue
		}
		s.state.Store(int32(ConnectedDraining))
		batch := s.assembleBatch(first)
		if err := s.writeBatch(batch); err != nil {
			s.releaseBatch(batch)
			return
		}
		s.releaseBatch(batch)
	}
}

// assembleBatch pulls additional items non-blocking after first until any
// bound is hit: batch_max items, batch_bytes_max bytes, or flush_after_ms
// elapsed (when > 0).
func (s *Session) assembleBatch(first *pipeline.PooledBuf) []*pipeline.PooledBuf {
	batch := make([]*pipeline.PooledBuf, 0, s.Cfg.BatchMax)
	batch = append(batch, first)
	size := len(first.Bytes)

	start := time.Now()
	var deadline time.Time
	hasDeadline := s.Cfg.FlushAfterMs > 0
	if hasDeadline {
		deadline = start.Add(time.Duration(s.Cfg.FlushAfterMs) * time.Millisecond)
	}

	for len(batch) < s.Cfg.BatchMax && size < s.Cfg.BatchBytesMax {
		if hasDeadline && !time.Now().Before(deadline) {
			break
		}
		if s.isShutdown() {
			break
		}
		next := s.Ring.Pop()
		if next == nil {
			if hasDeadline {
				continue
			}
			break
		}
		size += len(next.Bytes)
		batch = append(batch, next)
	}
	return batch
}

func (s *Session) writeBatch(batch []*pipeline.PooledBuf) error {
	slices := make([][]byte, len(batch))
	for i, b := range batch {
		slices[i] = b.Bytes
	}
	for {
		err := frame.WriteAllVectored(s.conn, slices)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			if s.isShutdown() {
				return nil
			}
			time.Sleep(time.Millisecond)
			continue
		}
		return err
	}
}

func (s *Session) releaseBatch(batch []*pipeline.PooledBuf) {
	for _, b := range batch {
		s.Pool.Release(b)
	}
}

func isTransient(err error) bool {
	type timeout interface{ Timeout() bool }
	te, ok := err.(timeout)
	return ok && te.Timeout()
}

// sleepBackoff sleeps for backoff+jitter, returns the next backoff value
// (doubled, capped at MaxBackoff). Jitter is a deterministic low-bits mask
// of a monotonically incrementing counter, not a PRNG, so the sequence is
// reproducible across runs.
func (s *Session) sleepBackoff(backoff time.Duration) time.Duration {
	sleepFor, next := nextBackoff(backoff, s.backoffSeq, s.Cfg.BaselineBackoff, s.Cfg.MaxBackoff)
	s.backoffSeq++
	time.Sleep(sleepFor)
	return next
}

// nextBackoff computes the sleep duration and the next backoff value given
// the current backoff, a monotonic sequence counter, and the configured
// baseline/max. Jitter is min(seq & 0x1F ms, backoff/2).
func nextBackoff(backoff time.Duration, seq uint64, baseline, max time.Duration) (sleepFor, next time.Duration) {
	if backoff < baseline {
		backoff = baseline
	}
	if backoff > max {
		backoff = max
	}
	jitter := time.Duration(seq&0x1F) * time.Millisecond
	if half := backoff / 2; jitter > half {
		jitter = half
	}
	sleepFor = backoff + jitter
	next = backoff * 2
	if next > max {
		next = max
	}
	return sleepFor, next
}

func (s *Session) logConnectFailure(err error, backoff time.Duration) {
	now := time.Now()
	shouldLog := s.lastConnectLog.IsZero() ||
		backoff != s.lastLoggedBackoff ||
		now.Sub(s.lastConnectLog) >= 30*time.Second
	if shouldLog {
		s.Log.Errorf("connect %s failed: %v (backoff %v)", s.Cfg.SocketPath, err, backoff)
		s.lastConnectLog = now
		s.lastLoggedBackoff = backoff
	}
}

