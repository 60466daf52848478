// Package config loads and validates the pipeline's JSON configuration,
// mirroring the teacher's load-then-validate split between raw settings
// and a checked, ready-to-use form.
package config

import (
	"encoding/json"
	"os"
)

// DropPolicy names the configured overflow policy for a full ring.
type DropPolicy string

const (
	DropNewest DropPolicy = "DropNewest"
	DropOldest DropPolicy = "DropOldest"
	DropBlock  DropPolicy = "Block"
)

// SchedPolicy names a real-time scheduling policy for writer threads.
type SchedPolicy string

const (
	SchedNone SchedPolicy = ""
	SchedFIFO SchedPolicy = "fifo"
	SchedRR   SchedPolicy = "rr"
)

// StreamsSelector enables or disables ingest for each record kind.
type StreamsSelector struct {
	Accounts     bool `json:"accounts"`
	Transactions bool `json:"transactions"`
	Blocks       bool `json:"blocks"`
	Slots        bool `json:"slots"`
}

// Config is the raw, as-loaded JSON configuration. Byte-size fields accept
// either a bare integer or a human-readable suffix ("64MiB") and are parsed
// lazily in Validate.
type Config struct {
	SocketPath string `json:"socket_path"`

	QueueCapacity  int        `json:"queue_capacity"`
	WriterThreads  int        `json:"writer_threads"`
	QueueDropPolicy DropPolicy `json:"queue_drop_policy"`

	BatchMax       int    `json:"batch_max"`
	BatchBytesMax  string `json:"batch_bytes_max"`
	FlushAfterMs   int    `json:"flush_after_ms"`
	WriteTimeoutMs int    `json:"write_timeout_ms"`

	PinCore     *int        `json:"pin_core"`
	RTPriority  int         `json:"rt_priority"`
	SchedPolicy SchedPolicy `json:"sched_policy"`

	PoolItemsMax     int    `json:"pool_items_max"`
	PoolDefaultCap   string `json:"pool_default_cap"`
	MemoryBudgetBytes string `json:"memory_budget_bytes"`

	Streams        StreamsSelector `json:"streams"`
	ShedThrottleMs int             `json:"shed_throttle_ms"`
}

// Load reads and JSON-decodes a Config from path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	var c Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
