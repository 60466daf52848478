// Package ingest converts a sequence of delta batches into cache publishes
// with bounded service latency, sequencing snapshot hydration before any
// delta is applied.
package ingest

import "github.com/launix-de/ultra-geyser-pipeline/cache"

// AccountUpdate is a single account change to fold into the cache: either
// an upsert (Remove == false) or a deletion.
type AccountUpdate struct {
	Slot   uint64
	Record *cache.AccountRecord // nil when Remove is true
	Key    [32]byte
	Remove bool
}

// Apply folds the update into an in-flight builder.
func (u AccountUpdate) Apply(b *cache.Builder) {
	if u.Remove {
		b.Remove(u.Key)
		return
	}
	b.Upsert(u.Record)
}
