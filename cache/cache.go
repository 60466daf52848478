package cache

import (
	"sync/atomic"
)

// Cache provides O(1) lock-free reads of per-pubkey account state at the
// latest published slot. Its only mutable shared cell is the snapshot
// pointer; everything reachable from a given snapshot is immutable.
type Cache struct {
	shardCount int
	snapshot   atomic.Pointer[[]ShardMap]
	slot       atomic.Uint64
}

// New builds an empty cache with shardCount shards, rounded up to the next
// power of two (default 128 when shardCount <= 0).
func New(shardCount int) *Cache {
	if shardCount <= 0 {
		shardCount = 128
	}
	shardCount = int(nextPow2(uint(shardCount)))
	shards := make([]ShardMap, shardCount)
	c := &Cache{shardCount: shardCount}
	c.snapshot.Store(&shards)
	return c
}

func nextPow2(v uint) uint {
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

// ShardCount returns the number of shards.
func (c *Cache) ShardCount() int { return c.shardCount }

// ShardIndex computes the shard for a pubkey: its first byte masked by
// shardCount-1.
func (c *Cache) ShardIndex(pubkey [32]byte) int {
	return int(pubkey[0]) & (c.shardCount - 1)
}

// Snapshot returns the current, stable slice of shard maps. The returned
// slice and every ShardMap within it are immutable; callers may retain the
// reference across an arbitrarily long read without blocking publishers.
func (c *Cache) Snapshot() []ShardMap {
	return *c.snapshot.Load()
}

// Get looks up pubkey against the current snapshot. It never blocks and
// never copies account data.
func (c *Cache) Get(pubkey [32]byte) *AccountRecord {
	shards := c.Snapshot()
	return shards[c.ShardIndex(pubkey)].Get(pubkey)
}

// Slot returns the tracked slot, exposed to RPC responses as the context
// slot.
func (c *Cache) Slot() uint64 { return c.slot.Load() }

// AdvanceSlot moves the slot tracker forward to max(current, slot) using a
// relaxed fetch-max; it never moves backward.
func (c *Cache) AdvanceSlot(slot uint64) {
	for {
		cur := c.slot.Load()
		if slot <= cur {
			return
		}
		if c.slot.CompareAndSwap(cur, slot) {
			return
		}
	}
}

// Builder accumulates a batch of upserts/removals against a base snapshot,
// cloning only the shards it touches, and commits them as one atomic
// publish so that no reader ever observes a partially-applied batch.
type Builder struct {
	cache   *Cache
	base    []ShardMap
	touched map[int]*builder
	maxSlot uint64
}

// NewBuilder starts a batch against the cache's current snapshot. Only one
// builder should be committed at a time per cache (the ingest stage
// serializes publishers).
func (c *Cache) NewBuilder() *Builder {
	return &Builder{
		cache:   c,
		base:    c.Snapshot(),
		touched: make(map[int]*builder),
	}
}

func (b *Builder) shardBuilder(idx int) *builder {
	if sb, ok := b.touched[idx]; ok {
		return sb
	}
	sb := newBuilder(b.base[idx])
	b.touched[idx] = sb
	return sb
}

// Upsert inserts or replaces rec in its shard.
func (b *Builder) Upsert(rec *AccountRecord) {
	idx := b.cache.ShardIndex(rec.Pubkey)
	b.shardBuilder(idx).upsert(rec)
	if rec.Slot > b.maxSlot {
		b.maxSlot = rec.Slot
	}
}

// Remove deletes the record for key from its shard, if present.
func (b *Builder) Remove(key [32]byte) {
	idx := b.cache.ShardIndex(key)
	b.shardBuilder(idx).remove(key)
}

// Publish atomically installs the new snapshot (base with touched shards
// replaced) and advances the slot tracker to at least slot. A batch that
// did not touch any shard still advances the slot if slot is provided.
func (b *Builder) Publish(slot uint64) {
	next := make([]ShardMap, len(b.base))
	copy(next, b.base)
	for idx, sb := range b.touched {
		next[idx] = sb.finish()
	}
	b.cache.snapshot.Store(&next)
	if slot > b.maxSlot {
		b.maxSlot = slot
	}
	b.cache.AdvanceSlot(b.maxSlot)
}

// SnapshotSegment is a chunk of the bootstrap hydration stream: a base slot
// and the account records as of that slot.
type SnapshotSegment struct {
	BaseSlot uint64
	Accounts []*AccountRecord
}

// Hydrate applies a bootstrap snapshot segment by upserting every record at
// BaseSlot. Multiple segments compose by repeated calls; each is applied as
// its own atomic publish.
func (c *Cache) Hydrate(seg SnapshotSegment) {
	b := c.NewBuilder()
	for _, rec := range seg.Accounts {
		b.Upsert(rec)
	}
	b.Publish(seg.BaseSlot)
}
