package pipeline

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// OverflowPolicy controls what happens when a shard's ring is full.
type OverflowPolicy int

const (
	// DropNewest discards the event currently being routed, leaving the
	// ring unchanged. This is the default.
	DropNewest OverflowPolicy = iota
	// DropOldest evicts the ring's oldest queued item to make room.
	DropOldest
	// Block spins with a yield hint until a slot frees or shutdown fires.
	Block
)

// WriterShard bundles the per-writer ring, buffer pool, and drop counter
// that together form one shard of the router.
type WriterShard struct {
	Ring *Ring
	Pool *BufferPool

	mu    sync.Mutex // serializes producers routing into Ring
	drops atomic.Uint64
}

// Drops returns the number of events dropped for this shard under the
// configured overflow policy.
func (w *WriterShard) Drops() uint64 { return w.drops.Load() }

// Router owns one WriterShard per writer and applies shard selection,
// buffer pooling, and overflow handling for every routed event. It has no
// exclusion between callers targeting distinct shards, matching the
// multi-producer model: producers only contend when they hash to the same
// shard, and even then only through that shard's own lock around its ring.
type Router struct {
	Shards   []*WriterShard
	Policy   OverflowPolicy
	ShedSet  *ShedSet
	shutdown *atomic.Bool
}

// NewRouter builds a router with writerCount shards, each with a ring of
// the given queue capacity and a buffer pool sized by poolItemsMax /
// poolDefaultCap.
func NewRouter(writerCount, queueCapacity, poolItemsMax, poolDefaultCap int, policy OverflowPolicy, shutdown *atomic.Bool) *Router {
	shards := make([]*WriterShard, writerCount)
	for i := range shards {
		shards[i] = &WriterShard{
			Ring: NewRing(queueCapacity),
			Pool: NewBufferPool(poolItemsMax, poolDefaultCap),
		}
	}
	return &Router{
		Shards:   shards,
		Policy:   policy,
		ShedSet:  NewShedSet(500 * time.Millisecond),
		shutdown: shutdown,
	}
}

// Acquire returns a pooled buffer from the pool of the shard at shardIdx.
// Callers write the encoded frame into the returned buffer and hand it to
// Route with the same index.
func (r *Router) Acquire(shardIdx int) *PooledBuf {
	return r.Shards[shardIdx].Pool.Acquire()
}

// ShardCount returns the number of writer shards.
func (r *Router) ShardCount() int { return len(r.Shards) }

// Route enqueues buf onto the shard at shardIdx, applying the router's
// overflow policy on a full ring. Under DropNewest, and under Block once
// shutdown is signalled, buf itself is released back to its pool and a
// CapacityError is returned; under DropOldest the evicted oldest buffer is
// released and counted instead, and Route returns nil. With zero shards it
// returns a no_writer CapacityError and leaves buf with the caller. A
// CapacityError is never fatal; the caller should count it and continue.
func (r *Router) Route(shardIdx int, buf *PooledBuf) error {
	if len(r.Shards) == 0 {
		return newCapacityError(ReasonNoWriter, shardIdx)
	}
	shard := r.Shards[shardIdx]
	shard.mu.Lock()
	defer shard.mu.Unlock()

	switch r.Policy {
	case DropOldest:
		dropped, ok := shard.Ring.PushDropOldest(buf)
		if !ok {
			shard.Pool.Release(buf)
			shard.drops.Add(1)
			return newCapacityError(ReasonQueueFull, shardIdx)
		}
		if dropped != nil {
			shard.Pool.Release(dropped)
			shard.drops.Add(1)
		}
		return nil

	case Block:
		for {
			if shard.Ring.TryPush(buf) {
				return nil
			}
			if r.shutdown != nil && r.shutdown.Load() {
				shard.Pool.Release(buf)
				shard.drops.Add(1)
				return newCapacityError(ReasonQueueFull, shardIdx)
			}
			runtime.Gosched()
		}

	default: // DropNewest
		if shard.Ring.TryPush(buf) {
			return nil
		}
		shard.Pool.Release(buf)
		shard.drops.Add(1)
		return newCapacityError(ReasonQueueFull, shardIdx)
	}
}
