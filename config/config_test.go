package config

import "testing"

func baseConfig() Config {
	return Config{
		SocketPath:        "/var/run/ultra-geyser.sock",
		QueueCapacity:     4096,
		WriterThreads:     2,
		QueueDropPolicy:   DropNewest,
		BatchMax:          256,
		BatchBytesMax:     "4MiB",
		FlushAfterMs:      5,
		WriteTimeoutMs:    50,
		PoolItemsMax:      4096,
		PoolDefaultCap:    "",
		MemoryBudgetBytes: "4GiB",
		ShedThrottleMs:    500,
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	vc, err := baseConfig().Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if vc.BatchBytesMaxBytes != 4*1024*1024 {
		t.Fatalf("batch_bytes_max = %d, want 4MiB", vc.BatchBytesMaxBytes)
	}
	if vc.PoolDefaultCapBytes != 1024*1024 {
		t.Fatalf("pool_default_cap default should be min(batch_bytes_max, 1MiB), got %d", vc.PoolDefaultCapBytes)
	}
}

func TestValidateRejectsRelativeSocketPath(t *testing.T) {
	c := baseConfig()
	c.SocketPath = "relative/path.sock"
	if _, err := c.Validate(); err == nil {
		t.Fatalf("expected rejection of relative socket_path")
	}
}

func TestValidateRejectsOutOfRangeQueueCapacity(t *testing.T) {
	c := baseConfig()
	c.QueueCapacity = 0
	if _, err := c.Validate(); err == nil {
		t.Fatalf("expected rejection of queue_capacity=0")
	}
	c = baseConfig()
	c.QueueCapacity = 2_000_000
	if _, err := c.Validate(); err == nil {
		t.Fatalf("expected rejection of queue_capacity over 1,000,000")
	}
}

func TestValidateParsesBareIntegerByteSizes(t *testing.T) {
	c := baseConfig()
	c.BatchBytesMax = "8388608" // bare integer, 8MiB
	vc, err := c.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if vc.BatchBytesMaxBytes != 8*1024*1024 {
		t.Fatalf("got %d, want 8MiB", vc.BatchBytesMaxBytes)
	}
}

func TestValidateRejectsPoolBudgetOverflow(t *testing.T) {
	c := baseConfig()
	c.MemoryBudgetBytes = "1KiB"
	if _, err := c.Validate(); err == nil {
		t.Fatalf("expected pool budget overflow rejection")
	}
}

func TestValidateRejectsBatchBytesMaxOutOfRange(t *testing.T) {
	c := baseConfig()
	c.BatchBytesMax = "128MiB"
	if _, err := c.Validate(); err == nil {
		t.Fatalf("expected rejection of batch_bytes_max above 64MiB")
	}
}

func TestValidateRejectsUnknownDropPolicy(t *testing.T) {
	c := baseConfig()
	c.QueueDropPolicy = "Bogus"
	if _, err := c.Validate(); err == nil {
		t.Fatalf("expected rejection of unknown queue_drop_policy")
	}
}
