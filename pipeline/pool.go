package pipeline

import "sync/atomic"

// PooledBuf is a byte buffer checked out from a BufferPool. The length of
// Bytes is the in-use data and its capacity the pooled backing array;
// callers fill it with Reset+Append or by appending to Bytes directly.
type PooledBuf struct {
	Bytes []byte
}

// Reset truncates the buffer to zero length, retaining its capacity.
func (b *PooledBuf) Reset() { b.Bytes = b.Bytes[:0] }

// Append appends p to the buffer, growing its backing array if needed.
func (b *PooledBuf) Append(p []byte) { b.Bytes = append(b.Bytes, p...) }

// poolNode is one link of the free list's Treiber stack; next is captured
// at push time and never mutated afterward, so a popped node is safe to
// reuse immediately without racing a concurrent reader of the old chain.
type poolNode struct {
	buf  *PooledBuf
	next *poolNode
}

// BufferPool hands out pooled byte buffers of a default capacity, bounded
// to at most itemsMax outstanding-but-released buffers. One pool exists per
// writer; producers targeting that writer's shard call Acquire/Release
// concurrently from many goroutines, so the free list is a lock-free
// CAS-linked stack rather than a mutex-guarded slice.
type BufferPool struct {
	top   atomic.Pointer[poolNode]
	count atomic.Int64

	itemsMax   int
	defaultCap int

	misses    atomic.Uint64
	poolFulls atomic.Uint64
}

// NewBufferPool builds a pool holding at most itemsMax idle buffers of
// defaultCap bytes each.
func NewBufferPool(itemsMax, defaultCap int) *BufferPool {
	if itemsMax < 0 {
		itemsMax = 0
	}
	if defaultCap < 0 {
		defaultCap = 0
	}
	return &BufferPool{itemsMax: itemsMax, defaultCap: defaultCap}
}

// Acquire pops an idle buffer off the free list, or allocates a new one
// (and counts a miss) if the list is empty. The pop is a standard Treiber-
// stack CAS loop: no lock is ever held across it.
func (p *BufferPool) Acquire() *PooledBuf {
	for {
		n := p.top.Load()
		if n == nil {
			p.misses.Add(1)
			return &PooledBuf{Bytes: make([]byte, 0, p.defaultCap)}
		}
		if p.top.CompareAndSwap(n, n.next) {
			p.count.Add(-1)
			return n.buf
		}
	}
}

// Release clears buf and returns it to the pool. Buffers grown beyond 2x
// the pool's default capacity are discarded instead of retained, so one
// oversized event does not permanently bloat steady-state memory. If the
// pool is already at itemsMax, buf is dropped (counted as pool_full); the
// count check races benignly with concurrent pushes, so the bound is
// approximate under contention rather than exact, the same trade-off the
// rest of this package's lock-free structures make.
func (p *BufferPool) Release(buf *PooledBuf) {
	if buf == nil {
		return
	}
	buf.Reset()
	if cap(buf.Bytes) > 2*p.defaultCap {
		return
	}
	if p.count.Load() >= int64(p.itemsMax) {
		p.poolFulls.Add(1)
		return
	}

	n := &poolNode{buf: buf}
	for {
		top := p.top.Load()
		n.next = top
		if p.top.CompareAndSwap(top, n) {
			p.count.Add(1)
			return
		}
	}
}

// Misses returns the number of Acquire calls that found the pool empty and
// allocated a fresh buffer.
func (p *BufferPool) Misses() uint64 { return p.misses.Load() }

// PoolFulls returns the number of Release calls that dropped a buffer
// because the pool was already at its item cap.
func (p *BufferPool) PoolFulls() uint64 { return p.poolFulls.Load() }
