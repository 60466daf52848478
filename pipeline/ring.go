// Package pipeline implements the sharded producer/pool stage: routing an
// event to exactly one writer, handing out pre-sized byte buffers, and
// applying the configured overflow policy.
package pipeline

import (
	"sync/atomic"
)

// Ring is a single-producer single-consumer ring buffer of pooled byte
// slices, with capacity rounded up to the next power of two. Only one
// goroutine may call the producer methods (TryPush, PushDropOldest) and
// only one goroutine may call the consumer method (Pop); Len may be called
// from either side.
type Ring struct {
	buf  []*PooledBuf
	mask uint64

	head atomic.Uint64 // next free slot index; published by producer
	tail atomic.Uint64 // next slot to consume; published by consumer
}

// NewRing builds a ring with capacity rounded up to the next power of two,
// at least 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	cap2 := nextPow2(uint64(capacity))
	return &Ring{
		buf:  make([]*PooledBuf, cap2),
		mask: cap2 - 1,
	}
}

func nextPow2(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}

// Cap returns the ring's fixed capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Len approximates the number of queued items using acquire loads of head
// and tail; it is exact when called by either the sole producer or the
// sole consumer between their own operations, and only approximate (though
// always within [0, cap]) when read concurrently from both sides.
func (r *Ring) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	n := int64(head - tail)
	if n < 0 {
		return 0
	}
	if n > int64(len(r.buf)) {
		return len(r.buf)
	}
	return int(n)
}

// TryPush attempts to enqueue buf. It returns true on success. On failure
// (ring full) it returns false and gives buf back to the caller unchanged,
// so the caller retains ownership and may apply its own overflow policy.
func (r *Ring) TryPush(buf *PooledBuf) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		return false
	}
	r.buf[head&r.mask] = buf
	// Release-store: publishes buf's writes (it must already be fully
	// written by the caller) before the consumer can observe head.
	r.head.Store(head + 1)
	return true
}

// PushDropOldest enqueues buf, and if the ring is full first pops and
// returns the oldest queued buffer to the caller so it can release it back
// to its pool. Returns (droppedOrNil, ok); ok is false only if the ring has
// zero capacity, which NewRing never produces.
func (r *Ring) PushDropOldest(buf *PooledBuf) (dropped *PooledBuf, ok bool) {
	if len(r.buf) == 0 {
		return nil, false
	}
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		dropped = r.buf[tail&r.mask]
		r.buf[tail&r.mask] = nil
		r.tail.Store(tail + 1)
	}
	head = r.head.Load()
	r.buf[head&r.mask] = buf
	r.head.Store(head + 1)
	return dropped, true
}

// Pop removes and returns the oldest item, or nil if the ring is empty.
// Consumer-only.
func (r *Ring) Pop() *PooledBuf {
	tail := r.tail.Load()
	// Acquire-load of head: synchronizes-with the producer's release
	// store so the buffer's contents are visible here.
	head := r.head.Load()
	if tail == head {
		return nil
	}
	idx := tail & r.mask
	buf := r.buf[idx]
	r.buf[idx] = nil
	r.tail.Store(tail + 1)
	return buf
}
