package config

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/docker/go-units"
)

// maxSocketPathLen is the Linux sun_path limit. The BSD limit of 104 bytes
// is not enforced, so a path of 105-108 bytes passes validation here.
const maxSocketPathLen = 108

// ValidationError reports a single rejected field with enough context for
// an operator to fix the config file; Validate returns the first one it
// encounters.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func fieldErr(field, reason string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(reason, args...)}
}

// ValidatedConfig is a Config whose fields have been range-checked and
// whose byte-size strings have been parsed to integer byte counts.
type ValidatedConfig struct {
	Config

	BatchBytesMaxBytes   uint64
	PoolDefaultCapBytes  uint64
	MemoryBudgetBytes    uint64
}

// parseBytes parses a byte-size field using go-units' human-readable
// suffix support ("64MiB", "512kB"), falling back to a bare integer byte
// count when no suffix is present.
func parseBytes(field, raw string) (uint64, error) {
	if raw == "" {
		return 0, fieldErr(field, "must not be empty")
	}
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return n, nil
	}
	n, err := units.RAMInBytes(raw)
	if err != nil {
		return 0, fieldErr(field, "invalid byte size %q: %v", raw, err)
	}
	if n < 0 {
		return 0, fieldErr(field, "byte size %q must not be negative", raw)
	}
	return uint64(n), nil
}

// Validate range-checks c and parses its byte-size fields, returning a
// ValidatedConfig ready for use, or the first ValidationError encountered.
func (c Config) Validate() (ValidatedConfig, error) {
	if !filepath.IsAbs(c.SocketPath) {
		return ValidatedConfig{}, fieldErr("socket_path", "must be an absolute path")
	}
	if len(c.SocketPath) > maxSocketPathLen {
		return ValidatedConfig{}, fieldErr("socket_path", "length %d exceeds %d bytes", len(c.SocketPath), maxSocketPathLen)
	}

	if c.QueueCapacity < 1 || c.QueueCapacity > 1_000_000 {
		return ValidatedConfig{}, fieldErr("queue_capacity", "must be in [1, 1000000], got %d", c.QueueCapacity)
	}
	if c.WriterThreads < 0 {
		return ValidatedConfig{}, fieldErr("writer_threads", "must be >= 0, got %d", c.WriterThreads)
	}
	switch c.QueueDropPolicy {
	case DropNewest, DropOldest, DropBlock, "":
	default:
		return ValidatedConfig{}, fieldErr("queue_drop_policy", "unknown policy %q", c.QueueDropPolicy)
	}

	batchBytesMax, err := parseBytes("batch_bytes_max", c.BatchBytesMax)
	if err != nil {
		return ValidatedConfig{}, err
	}
	if batchBytesMax < units.KiB || batchBytesMax > 64*units.MiB {
		return ValidatedConfig{}, fieldErr("batch_bytes_max", "must be in [1KiB, 64MiB], got %d bytes", batchBytesMax)
	}

	switch c.SchedPolicy {
	case SchedNone, SchedFIFO, SchedRR:
	default:
		return ValidatedConfig{}, fieldErr("sched_policy", "unknown policy %q", c.SchedPolicy)
	}

	if c.PoolItemsMax < 1 || c.PoolItemsMax > c.QueueCapacity {
		return ValidatedConfig{}, fieldErr("pool_items_max", "must be in [1, queue_capacity=%d], got %d", c.QueueCapacity, c.PoolItemsMax)
	}

	var poolDefaultCap uint64
	if c.PoolDefaultCap == "" {
		poolDefaultCap = batchBytesMax
		if poolDefaultCap > uint64(units.MiB) {
			poolDefaultCap = uint64(units.MiB)
		}
	} else {
		poolDefaultCap, err = parseBytes("pool_default_cap", c.PoolDefaultCap)
		if err != nil {
			return ValidatedConfig{}, err
		}
	}

	memoryBudget, err := parseBytes("memory_budget_bytes", c.MemoryBudgetBytes)
	if err != nil {
		return ValidatedConfig{}, err
	}
	if uint64(c.PoolItemsMax)*poolDefaultCap > memoryBudget {
		return ValidatedConfig{}, fieldErr("memory_budget_bytes", "pool_items_max(%d) * pool_default_cap(%d) = %d exceeds budget %d",
			c.PoolItemsMax, poolDefaultCap, uint64(c.PoolItemsMax)*poolDefaultCap, memoryBudget)
	}

	return ValidatedConfig{
		Config:              c,
		BatchBytesMaxBytes:  batchBytesMax,
		PoolDefaultCapBytes: poolDefaultCap,
		MemoryBudgetBytes:   memoryBudget,
	}, nil
}
