package pipeline

import (
	"encoding/binary"
	"hash/fnv"
)

// ShardForKey reduces a natural key (a pubkey or signature's raw bytes) to
// a shard index in [0, n) via FNV-1a. n <= 0 always yields 0; n == 1 skips
// hashing entirely.
func ShardForKey(key []byte, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New64a()
	h.Write(key)
	return int(h.Sum64() % uint64(n))
}

// ShardForSlot reduces a slot number to a shard index using the same
// FNV-1a reduction over its 8-byte little-endian representation.
func ShardForSlot(slot uint64, n int) int {
	if n <= 1 {
		return 0
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], slot)
	return ShardForKey(b[:], n)
}
