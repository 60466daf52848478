package cache

import "testing"

func pk(b byte) [32]byte {
	var p [32]byte
	p[0] = b
	return p
}

func TestCacheGetMissOnEmpty(t *testing.T) {
	c := New(8)
	if c.Get(pk(1)) != nil {
		t.Fatalf("expected miss on empty cache")
	}
}

func TestBuilderPublishIsVisibleAfterCommit(t *testing.T) {
	c := New(8)
	rec := NewAccountRecord(10, pk(1), 100, pk(2), false, 0, []byte("hello"))

	b := c.NewBuilder()
	b.Upsert(rec)
	if c.Get(pk(1)) != nil {
		t.Fatalf("update must not be visible before Publish")
	}
	b.Publish(10)
	got := c.Get(pk(1))
	if got == nil || got.Lamports != 100 {
		t.Fatalf("expected published record, got %v", got)
	}
	if c.Slot() != 10 {
		t.Fatalf("slot = %d, want 10", c.Slot())
	}
}

func TestCachePublishIsolation(t *testing.T) {
	c := New(8)
	k1, k2 := pk(1), pk(2)
	seed := c.NewBuilder()
	seed.Upsert(NewAccountRecord(1, k1, 111, k1, false, 0, []byte("v1")))
	seed.Publish(1)

	b := c.NewBuilder()
	b.Upsert(NewAccountRecord(2, k2, 222, k2, false, 0, []byte("v2")))
	b.Remove(k1)

	// Before publish, a reader still sees the old state entirely.
	if c.Get(k1) == nil {
		t.Fatalf("k1 should still be visible before publish")
	}
	if c.Get(k2) != nil {
		t.Fatalf("k2 should not be visible before publish")
	}

	b.Publish(2)

	if c.Get(k1) != nil {
		t.Fatalf("k1 should be gone after publish")
	}
	got2 := c.Get(k2)
	if got2 == nil || got2.Lamports != 222 {
		t.Fatalf("k2 should be visible with lamports=222 after publish, got %v", got2)
	}
	if c.Slot() != 2 {
		t.Fatalf("slot = %d, want 2", c.Slot())
	}
}

func TestShardConfinement(t *testing.T) {
	c := New(8) // shardCount=8
	a := pk(3)  // shard = 3 & 7 = 3
	b := pk(11) // shard = 11 & 7 = 3
	if c.ShardIndex(a) != c.ShardIndex(b) {
		t.Fatalf("expected same shard for keys sharing low bits")
	}
	other := pk(4) // shard = 4
	if c.ShardIndex(a) == c.ShardIndex(other) {
		t.Fatalf("expected different shards")
	}

	builder := c.NewBuilder()
	builder.Upsert(NewAccountRecord(5, a, 1, a, false, 0, nil))
	builder.Publish(5)

	snap := c.Snapshot()
	touchedShard := c.ShardIndex(a)
	for i, sm := range snap {
		if i == touchedShard {
			continue
		}
		if sm.Len() != 0 {
			t.Fatalf("shard %d should remain empty, modifying key touched only shard %d", i, touchedShard)
		}
	}
}

func TestSlotMonotonicity(t *testing.T) {
	c := New(4)
	c.AdvanceSlot(5)
	c.AdvanceSlot(3)
	if c.Slot() != 5 {
		t.Fatalf("slot regressed: got %d, want 5", c.Slot())
	}
	c.AdvanceSlot(9)
	if c.Slot() != 9 {
		t.Fatalf("slot = %d, want 9", c.Slot())
	}
}

func TestHydrateComposesAcrossSegments(t *testing.T) {
	c := New(8)
	c.Hydrate(SnapshotSegment{BaseSlot: 100, Accounts: []*AccountRecord{
		NewAccountRecord(100, pk(1), 1, pk(1), false, 0, nil),
	}})
	c.Hydrate(SnapshotSegment{BaseSlot: 100, Accounts: []*AccountRecord{
		NewAccountRecord(100, pk(2), 2, pk(2), false, 0, nil),
	}})
	if c.Get(pk(1)) == nil || c.Get(pk(2)) == nil {
		t.Fatalf("both hydrated segments should be visible")
	}
	if c.Slot() != 100 {
		t.Fatalf("slot = %d, want 100", c.Slot())
	}
}

func TestShardMapBinarySearchOrdering(t *testing.T) {
	c := New(1) // single shard forces many keys into one ShardMap
	b := c.NewBuilder()
	for i := byte(0); i < 20; i += 2 {
		var key [32]byte
		key[0] = 0
		key[31] = i
		b.Upsert(NewAccountRecord(1, key, uint64(i), key, false, 0, nil))
	}
	b.Publish(1)

	for i := byte(0); i < 20; i += 2 {
		var key [32]byte
		key[31] = i
		got := c.Get(key)
		if got == nil || got.Lamports != uint64(i) {
			t.Fatalf("key %d: got %v", i, got)
		}
	}
	var missing [32]byte
	missing[31] = 1
	if c.Get(missing) != nil {
		t.Fatalf("expected miss for never-inserted key")
	}
}
