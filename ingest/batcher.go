package ingest

import (
	"time"

	"github.com/launix-de/ultra-geyser-pipeline/cache"
	"github.com/launix-de/ultra-geyser-pipeline/metrics"
)

const (
	// DefaultMaxMicrobatchUpdates is M: the item-count bound on a single
	// publish chunk.
	DefaultMaxMicrobatchUpdates = 1024
	// DefaultMaxMicrobatchLatency is D: the wall-clock service-time
	// budget per chunk.
	DefaultMaxMicrobatchLatency = time.Millisecond
)

// Batcher drives the publish cycle: small batches are applied in one shot,
// large batches are split into chunks bounded by both item count and a
// per-chunk wall-clock budget, each chunk published independently so a
// single oversized batch cannot hold touched shards in an inconsistent
// window for longer than the budget allows.
type Batcher struct {
	Cache      *cache.Cache
	MaxUpdates int
	MaxLatency time.Duration
	Metrics    *metrics.Registry
}

// NewBatcher builds a batcher with the default M/D bounds.
func NewBatcher(c *cache.Cache, reg *metrics.Registry) *Batcher {
	return &Batcher{
		Cache:      c,
		MaxUpdates: DefaultMaxMicrobatchUpdates,
		MaxLatency: DefaultMaxMicrobatchLatency,
		Metrics:    reg,
	}
}

// PublishUpdates applies batch to the cache, chunking it when it exceeds
// MaxUpdates so that no single publish holds touched shards open longer
// than MaxLatency allows.
func (ba *Batcher) PublishUpdates(batch []AccountUpdate) {
	if len(batch) == 0 {
		return
	}
	if ba.Metrics != nil {
		ba.Metrics.HistogramFor("ingest_batch_len").Observe("items", float64(len(batch)))
	}

	maxUpdates := ba.MaxUpdates
	if maxUpdates <= 0 {
		maxUpdates = DefaultMaxMicrobatchUpdates
	}
	maxLatency := ba.MaxLatency
	if maxLatency <= 0 {
		maxLatency = DefaultMaxMicrobatchLatency
	}

	if len(batch) <= maxUpdates {
		ba.publishChunk(batch, maxUpdates, maxLatency)
		return
	}

	total := len(batch)
	processed := 0
	chunks := 0
	for processed < total {
		remaining := batch[processed:]
		n := ba.publishChunk(remaining, maxUpdates, maxLatency)
		if n == 0 {
			break
		}
		processed += n
		chunks++
	}
	if ba.Metrics != nil {
		ba.Metrics.CounterFor("ultra_ingest_publish_chunks").Add("total", uint64(chunks))
	}
}

// publishChunk applies a prefix of batch bounded by maxUpdates items and
// maxLatency wall-clock time, publishes it, and returns how many updates
// were consumed.
func (ba *Batcher) publishChunk(batch []AccountUpdate, maxUpdates int, maxLatency time.Duration) int {
	if len(batch) == 0 {
		return 0
	}
	start := time.Now()
	builder := ba.Cache.NewBuilder()

	count := 0
	reason := "items"
	var maxSlot uint64
	for count < maxUpdates && count < len(batch) {
		u := batch[count]
		u.Apply(builder)
		if u.Slot > maxSlot {
			maxSlot = u.Slot
		}
		count++
		if time.Since(start) >= maxLatency {
			reason = "timer"
			break
		}
	}
	svcMs := float64(time.Since(start)) / float64(time.Millisecond)
	builder.Publish(maxSlot)

	if ba.Metrics != nil {
		ba.Metrics.HistogramFor("ultra_ingest_publish_ms").Observe("publish", svcMs)
		ba.Metrics.HistogramFor("ultra_ingest_publish_updates").Observe("publish", float64(count))
		ba.Metrics.HistogramFor("microbatch_size").Observe("publish", float64(count))
		ba.Metrics.HistogramFor("microbatch_service_ms").Observe("publish", svcMs)
		ba.Metrics.CounterFor("microbatch_flush_reason").Add(reason, 1)
	}
	return count
}
