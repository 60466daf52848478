package pipeline

import "testing"

func TestBufferPoolAcquireMissThenReuse(t *testing.T) {
	p := NewBufferPool(4, 16)
	b1 := p.Acquire()
	if p.Misses() != 1 {
		t.Fatalf("misses = %d, want 1", p.Misses())
	}
	b1.Append([]byte("hello"))
	p.Release(b1)

	b2 := p.Acquire()
	if p.Misses() != 1 {
		t.Fatalf("misses after reuse = %d, want 1 (should reuse, not allocate)", p.Misses())
	}
	if len(b2.Bytes) != 0 {
		t.Fatalf("reused buffer should be reset, got len %d", len(b2.Bytes))
	}
}

func TestBufferPoolDiscardsOversizedBuffers(t *testing.T) {
	p := NewBufferPool(4, 16)
	big := &PooledBuf{Bytes: make([]byte, 0, 64)} // > 2x default cap
	p.Release(big)

	b := p.Acquire()
	if cap(b.Bytes) == 64 {
		t.Fatalf("oversized buffer should have been discarded, not reused")
	}
	if p.Misses() != 1 {
		t.Fatalf("misses = %d, want 1 (oversized buffer must not satisfy Acquire)", p.Misses())
	}
}

func TestBufferPoolFullDropsOnRelease(t *testing.T) {
	p := NewBufferPool(1, 16)
	p.Release(&PooledBuf{Bytes: make([]byte, 0, 16)})
	p.Release(&PooledBuf{Bytes: make([]byte, 0, 16)})
	if p.PoolFulls() != 1 {
		t.Fatalf("poolFulls = %d, want 1", p.PoolFulls())
	}
}
