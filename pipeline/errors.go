package pipeline

import "fmt"

// CapacityReason labels why an event could not be enqueued.
type CapacityReason string

const (
	ReasonQueueFull CapacityReason = "queue_full"
	ReasonNoWriter  CapacityReason = "no_writer"
	ReasonOversize  CapacityReason = "oversize"
)

// CapacityError reports a per-event capacity failure: the event was
// dropped under the configured overflow policy rather than causing the
// pipeline to fail. Callers count it by Reason and move on.
type CapacityError struct {
	Reason CapacityReason
	Shard  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("pipeline: dropped event for shard %d: %s", e.Shard, e.Reason)
}

func newCapacityError(reason CapacityReason, shard int) error {
	return &CapacityError{Reason: reason, Shard: shard}
}
