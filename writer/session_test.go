package writer

import (
	"bufio"
	"io"
	"net"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/launix-de/ultra-geyser-pipeline/pipeline"
)

func TestNextBackoffDoublesAndCapsWithJitter(t *testing.T) {
	baseline := 200 * time.Millisecond
	max := 2 * time.Second

	sleepFor, next := nextBackoff(baseline, 0, baseline, max)
	if sleepFor != baseline {
		t.Fatalf("seq=0: sleepFor = %v, want %v (no jitter)", sleepFor, baseline)
	}
	if next != 400*time.Millisecond {
		t.Fatalf("next = %v, want 400ms", next)
	}

	sleepFor, _ = nextBackoff(baseline, 5, baseline, max)
	if want := baseline + 5*time.Millisecond; sleepFor != want {
		t.Fatalf("seq=5: sleepFor = %v, want %v", sleepFor, want)
	}

	// jitter must never exceed backoff/2
	small := 10 * time.Millisecond
	sleepFor, _ = nextBackoff(small, 31, small, max)
	if sleepFor > small+small/2 {
		t.Fatalf("jitter exceeded backoff/2: sleepFor=%v backoff=%v", sleepFor, small)
	}

	// doubling caps at max
	_, next = nextBackoff(max, 0, baseline, max)
	if next != max {
		t.Fatalf("next at max = %v, want capped at %v", next, max)
	}

	// below baseline clamps up
	sleepFor, next = nextBackoff(1*time.Millisecond, 0, baseline, max)
	if sleepFor != baseline || next != 2*baseline {
		t.Fatalf("sub-baseline backoff not clamped: sleepFor=%v next=%v", sleepFor, next)
	}
}

func poolFor(t *testing.T) *pipeline.BufferPool {
	t.Helper()
	return pipeline.NewBufferPool(64, 256)
}

func pushN(t *testing.T, r *pipeline.Ring, pool *pipeline.BufferPool, sizes ...int) {
	t.Helper()
	for _, sz := range sizes {
		b := pool.Acquire()
		b.Append(make([]byte, sz))
		if !r.TryPush(b) {
			t.Fatalf("ring full pushing size %d", sz)
		}
	}
}

func TestAssembleBatchStopsAtCountBound(t *testing.T) {
	ring := pipeline.NewRing(16)
	pool := poolFor(t)
	pushN(t, ring, pool, 10, 10, 10, 10, 10)

	s := &Session{Cfg: Config{BatchMax: 3, BatchBytesMax: 1 << 20}, Ring: ring}
	first := ring.Pop()
	batch := s.assembleBatch(first)
	if len(batch) != 3 {
		t.Fatalf("len(batch) = %d, want 3", len(batch))
	}
	if ring.Len() != 2 {
		t.Fatalf("ring.Len() = %d, want 2 remaining", ring.Len())
	}
}

func TestAssembleBatchStopsAtByteBound(t *testing.T) {
	ring := pipeline.NewRing(16)
	pool := poolFor(t)
	pushN(t, ring, pool, 40, 40, 40, 40)

	s := &Session{Cfg: Config{BatchMax: 100, BatchBytesMax: 100}, Ring: ring}
	first := ring.Pop()
	batch := s.assembleBatch(first)
	// first(40) + next(40) = 80 < 100, so one more is pulled: 120 >= 100 -> stop after 3
	if len(batch) != 3 {
		t.Fatalf("len(batch) = %d, want 3", len(batch))
	}
}

func TestAssembleBatchStopsAtDeadlineWhenRingDrains(t *testing.T) {
	ring := pipeline.NewRing(16)
	pool := poolFor(t)
	pushN(t, ring, pool, 10)

	s := &Session{Cfg: Config{BatchMax: 100, BatchBytesMax: 1 << 20, FlushAfterMs: 5}, Ring: ring}
	first := ring.Pop()

	start := time.Now()
	batch := s.assembleBatch(first)
	elapsed := time.Since(start)

	if len(batch) != 1 {
		t.Fatalf("len(batch) = %d, want 1", len(batch))
	}
	if elapsed < 5*time.Millisecond {
		t.Fatalf("assembleBatch returned before its flush deadline: %v", elapsed)
	}
}

func TestIsTransientAcceptsTimeoutRejectsShortWrite(t *testing.T) {
	if !isTransient(os.ErrDeadlineExceeded) {
		t.Fatalf("a timeout error should be treated as transient")
	}
	if isTransient(io.ErrShortWrite) {
		t.Fatalf("io.ErrShortWrite (a zero-byte write) should not be treated as transient")
	}
}

type errShortWriteForTest struct{}

func (errShortWriteForTest) Error() string { return "short write" }

func TestSessionRunWritesBatchAndReconnectsAfterPeerClose(t *testing.T) {
	ring := pipeline.NewRing(16)
	pool := poolFor(t)
	pushN(t, ring, pool, 5, 5)

	serverConn, clientConn := net.Pipe()
	var dialCount atomic.Int32

	var shutdown atomic.Bool
	dial := func(string) (net.Conn, error) {
		n := dialCount.Add(1)
		if n == 1 {
			return clientConn, nil
		}
		shutdown.Store(true)
		return nil, errDialForTest{}
	}

	cfg := Config{BatchMax: 2, BatchBytesMax: 1 << 20, RingIdleTimeout: 5 * time.Millisecond, BaselineBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	s := NewSession(1, cfg, ring, pool, dial, &shutdown)

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	buf := make([]byte, 10)
	serverConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := readFull(serverConn, buf)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if n != 10 {
		t.Fatalf("n = %d, want 10", n)
	}

	serverConn.Close()
	// The session only notices the closed peer on its next write, so queue
	// one more frame to make it hit the broken pipe and redial.
	pushN(t, ring, pool, 5)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Session.Run did not exit after shutdown")
	}
}

type errDialForTest struct{}

func (errDialForTest) Error() string { return "dial refused" }

func readFull(conn net.Conn, buf []byte) (int, error) {
	r := bufio.NewReader(conn)
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
