package pipeline

import "testing"

func TestShardForKeySingleWriterSkipsHashing(t *testing.T) {
	if got := ShardForKey([]byte{1, 2, 3}, 1); got != 0 {
		t.Fatalf("shard = %d, want 0 for n=1", got)
	}
	if got := ShardForKey([]byte{1, 2, 3}, 0); got != 0 {
		t.Fatalf("shard = %d, want 0 for n=0", got)
	}
}

func TestShardForKeyIsDeterministic(t *testing.T) {
	key := []byte("some-pubkey-bytes")
	a := ShardForKey(key, 16)
	b := ShardForKey(key, 16)
	if a != b {
		t.Fatalf("shard selection not deterministic: %d vs %d", a, b)
	}
	if a < 0 || a >= 16 {
		t.Fatalf("shard %d out of range", a)
	}
}

func TestShardForSlotDeterministic(t *testing.T) {
	a := ShardForSlot(42, 8)
	b := ShardForSlot(42, 8)
	if a != b {
		t.Fatalf("slot shard not deterministic: %d vs %d", a, b)
	}
	if ShardForSlot(42, 1) != 0 {
		t.Fatalf("single-shard case should bypass hashing")
	}
}
