package cache

import "bytes"

// ShardMap is an immutable, sorted-by-pubkey slice of account records,
// generalizing the sorted-slice-plus-binary-search technique of
// NonLockingReadMap (github.com/launix-de/NonLockingReadMap) to this
// package's bulk copy-on-write workload: a batch touching a shard clones
// the whole shard once and splices every change into the clone before it
// is ever published, rather than rebuilding the sorted slice once per
// changed key the way NonLockingReadMap.Set does. The zero value is an
// empty, valid ShardMap.
type ShardMap struct {
	items []*AccountRecord // sorted ascending by Pubkey
}

func (s ShardMap) find(key [32]byte) (idx int, found bool) {
	lower, upper := 0, len(s.items)
	for lower < upper {
		pivot := (lower + upper) / 2
		cmp := bytes.Compare(key[:], s.items[pivot].Pubkey[:])
		switch {
		case cmp == 0:
			return pivot, true
		case cmp < 0:
			upper = pivot
		default:
			lower = pivot + 1
		}
	}
	return lower, false
}

// Get returns the record for key, or nil if absent. Never blocks, never
// copies the record itself (only a pointer is returned).
func (s ShardMap) Get(key [32]byte) *AccountRecord {
	idx, found := s.find(key)
	if !found {
		return nil
	}
	return s.items[idx]
}

// Len returns the number of records in the shard.
func (s ShardMap) Len() int { return len(s.items) }

// All returns the shard's records in sorted-by-key order. The returned
// slice must not be mutated by the caller; it aliases the shard's own
// backing array.
func (s ShardMap) All() []*AccountRecord { return s.items }

// builder is a mutable, privately-held clone of a ShardMap used by
// cache.Builder to accumulate inserts/removals before publishing. It is
// never shared with readers until Builder.Publish swaps it in.
type builder struct {
	items []*AccountRecord
}

func newBuilder(from ShardMap) *builder {
	items := make([]*AccountRecord, len(from.items))
	copy(items, from.items)
	return &builder{items: items}
}

func (b *builder) upsert(rec *AccountRecord) {
	lower, upper := 0, len(b.items)
	for lower < upper {
		pivot := (lower + upper) / 2
		cmp := bytes.Compare(rec.Pubkey[:], b.items[pivot].Pubkey[:])
		switch {
		case cmp == 0:
			b.items[pivot] = rec
			return
		case cmp < 0:
			upper = pivot
		default:
			lower = pivot + 1
		}
	}
	b.items = append(b.items, nil)
	copy(b.items[lower+1:], b.items[lower:])
	b.items[lower] = rec
}

func (b *builder) remove(key [32]byte) {
	lower, upper := 0, len(b.items)
	for lower < upper {
		pivot := (lower + upper) / 2
		cmp := bytes.Compare(key[:], b.items[pivot].Pubkey[:])
		switch {
		case cmp == 0:
			b.items = append(b.items[:pivot], b.items[pivot+1:]...)
			return
		case cmp < 0:
			upper = pivot
		default:
			lower = pivot + 1
		}
	}
}

func (b *builder) finish() ShardMap { return ShardMap{items: b.items} }
