// Package geyserhost wires the sharded producer/pool stage to a pool of
// writer sessions, presenting the single entry point a validator plugin
// calls on every account/transaction/block/slot event: Publish*.
package geyserhost

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/launix-de/ultra-geyser-pipeline/affinity"
	"github.com/launix-de/ultra-geyser-pipeline/config"
	"github.com/launix-de/ultra-geyser-pipeline/frame"
	"github.com/launix-de/ultra-geyser-pipeline/internal/logging"
	"github.com/launix-de/ultra-geyser-pipeline/pipeline"
	"github.com/launix-de/ultra-geyser-pipeline/writer"
)

// Host owns the router, the shed-set, and one writer session per shard. It
// is the long-lived object a plugin host's on_load constructs once and
// calls Publish* on for the remainder of the process's life.
type Host struct {
	cfg      config.ValidatedConfig
	router   *pipeline.Router
	opts     frame.EncodeOptions
	sessions []*writer.Session
	registry *writer.Registry
	shutdown atomic.Bool
	log      *logging.Logger
}

// New builds a Host from a validated config: one writer shard per
// writer_threads, each pinned to a core selected by
// affinity.SelectWriterCores when pin_core is set, and each draining into
// its own Session dialing socket_path. writer_threads=0 is a valid
// configuration: PublishAccount and PublishTx then shed their key on first
// sight, and every Publish call returns nil without touching a ring, per
// the pipeline's "no writer" edge case.
func New(cfg config.ValidatedConfig) *Host {
	writerCount := cfg.WriterThreads
	if writerCount < 0 {
		writerCount = 0
	}

	var policy pipeline.OverflowPolicy
	switch cfg.QueueDropPolicy {
	case config.DropOldest:
		policy = pipeline.DropOldest
	case config.DropBlock:
		policy = pipeline.Block
	default:
		policy = pipeline.DropNewest
	}

	h := &Host{
		cfg:      cfg,
		opts:     frame.LatencyUDS(),
		registry: writer.NewRegistry(),
		log:      logging.New("geyserhost"),
	}
	h.router = pipeline.NewRouter(writerCount, cfg.QueueCapacity, cfg.PoolItemsMax, int(cfg.PoolDefaultCapBytes), policy, &h.shutdown)
	h.router.ShedSet = pipeline.NewShedSet(time.Duration(cfg.ShedThrottleMs) * time.Millisecond)

	cores := h.selectCores(writerCount)

	h.sessions = make([]*writer.Session, writerCount)
	for i := 0; i < writerCount; i++ {
		wcfg := writer.Config{
			SocketPath:     cfg.SocketPath,
			BatchMax:       cfg.BatchMax,
			BatchBytesMax:  int(cfg.BatchBytesMaxBytes),
			FlushAfterMs:   cfg.FlushAfterMs,
			WriteTimeoutMs: cfg.WriteTimeoutMs,
		}
		sess := writer.NewSession(i, wcfg, h.router.Shards[i].Ring, h.router.Shards[i].Pool, writer.DialSocket, &h.shutdown)
		h.sessions[i] = sess
		if i < len(cores) {
			core := cores[i]
			h.log.Infof("writer %d pinned to logical CPU %d", i, core)
		}
	}
	return h
}

// selectCores resolves affinity.SelectWriterCores against the configured
// pin_core (the producer's own pinned core), returning up to writerCount
// candidate logical CPUs. A nil/empty result means affinity pinning is
// skipped entirely (non-Linux hosts, or no topology information).
func (h *Host) selectCores(writerCount int) []int {
	if h.cfg.PinCore == nil {
		return nil
	}
	cpus := affinity.AvailableCPUs()
	if len(cpus) == 0 {
		return nil
	}
	return affinity.SelectWriterCores(cpus, h.cfg.PinCore, writerCount)
}

// Run starts every writer session's drain loop; it returns once Shutdown
// has been called and every session has stopped.
func (h *Host) Run() {
	cores := h.selectCores(len(h.sessions))
	done := make(chan struct{}, len(h.sessions))
	for i, s := range h.sessions {
		sess := s
		core := -1
		if i < len(cores) {
			core = cores[i]
		}
		go func() {
			if core >= 0 {
				runtime.LockOSThread()
				if err := affinity.Pin(core); err != nil {
					h.log.Warnf("writer %d: %v", sess.ID, err)
				}
			}
			h.registry.Publish(sess.ID, writer.Disconnected)
			sess.Run()
			h.registry.Remove(sess.ID)
			done <- struct{}{}
		}()
	}
	for range h.sessions {
		<-done
	}
}

// Shutdown signals every writer session to stop after flushing its
// in-flight batch.
func (h *Host) Shutdown() {
	h.shutdown.Store(true)
}

// Registry exposes live writer-session state for metrics/RPC introspection.
func (h *Host) Registry() *writer.Registry { return h.registry }

func (h *Host) shardFor(key []byte) int {
	return pipeline.ShardForKey(key, h.router.ShardCount())
}

// noWriter reports whether the router has zero shards, the configuration
// the pipeline treats as "no writer": account and transaction publishes
// shed their key on first sight, and every publish returns success without
// touching a ring or pool.
func (h *Host) noWriter() bool { return h.router.ShardCount() == 0 }

// PublishAccount routes one account update to its shard, encoding a
// zero-copy AccountRef frame. If the pubkey is currently shed (a prior drop
// marked it within the last shed_throttle_ms), the call returns immediately
// without doing any work, per the shed-set's pressure-relief contract. A
// fresh drop marks the key so a burst of retries for the same pubkey does
// not keep contending for the same full ring.
func (h *Host) PublishAccount(ref frame.AccountRef) error {
	now := time.Now()
	if h.router.ShedSet.IsShed(ref.Pubkey, now) {
		return nil
	}
	if h.noWriter() {
		h.router.ShedSet.Mark(ref.Pubkey, now)
		return nil
	}
	idx := h.shardFor(ref.Pubkey[:])
	buf := h.router.Acquire(idx)
	if err := frame.EncodeAccountRef(ref, &buf.Bytes, h.opts); err != nil {
		h.router.Shards[idx].Pool.Release(buf)
		return err
	}
	if err := h.router.Route(idx, buf); err != nil {
		h.router.ShedSet.Mark(ref.Pubkey, now)
		return err
	}
	return nil
}

// PublishTx routes one transaction status update, sharded by signature.
// The shed key is the signature truncated to its leading 32 bytes, matching
// the ShedSet's fixed key width.
func (h *Host) PublishTx(tx frame.Tx) error {
	now := time.Now()
	var shedKey [32]byte
	copy(shedKey[:], tx.Signature[:32])
	if h.router.ShedSet.IsShed(shedKey, now) {
		return nil
	}
	if h.noWriter() {
		h.router.ShedSet.Mark(shedKey, now)
		return nil
	}
	idx := h.shardFor(tx.Signature[:])
	buf := h.router.Acquire(idx)
	if err := frame.EncodeInto(tx, &buf.Bytes, h.opts); err != nil {
		h.router.Shards[idx].Pool.Release(buf)
		return err
	}
	if err := h.router.Route(idx, buf); err != nil {
		h.router.ShedSet.Mark(shedKey, now)
		return err
	}
	return nil
}

// PublishBlock routes one block metadata record, sharded by slot so every
// record for a given slot lands on the same writer.
func (h *Host) PublishBlock(b frame.Block) error {
	if h.noWriter() {
		return nil
	}
	idx := pipeline.ShardForSlot(b.Slot, h.router.ShardCount())
	buf := h.router.Acquire(idx)
	if err := frame.EncodeInto(b, &buf.Bytes, h.opts); err != nil {
		h.router.Shards[idx].Pool.Release(buf)
		return err
	}
	return h.router.Route(idx, buf)
}

// PublishSlot routes one slot status record, broadcast to every shard since
// downstream consumers on any writer need slot-status continuity.
func (h *Host) PublishSlot(s frame.Slot) error {
	if h.noWriter() {
		return nil
	}
	var firstErr error
	for idx := range h.router.Shards {
		buf := h.router.Acquire(idx)
		if err := frame.EncodeInto(s, &buf.Bytes, h.opts); err != nil {
			h.router.Shards[idx].Pool.Release(buf)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := h.router.Route(idx, buf); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishEndOfStartup broadcasts the startup-replay boundary to every
// shard.
func (h *Host) PublishEndOfStartup() error {
	if h.noWriter() {
		return nil
	}
	var firstErr error
	for idx := range h.router.Shards {
		buf := h.router.Acquire(idx)
		if err := frame.EncodeInto(frame.EndOfStartup{}, &buf.Bytes, h.opts); err != nil {
			h.router.Shards[idx].Pool.Release(buf)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := h.router.Route(idx, buf); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
