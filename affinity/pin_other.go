//go:build !linux

package affinity

import "fmt"

// Pin is a no-op stub on platforms without sched_setaffinity; callers
// should treat its error as "affinity unsupported here" and continue
// without pinning.
func Pin(cpuID int) error {
	return fmt.Errorf("affinity: CPU pinning not supported on this platform")
}

// SchedPolicy names a real-time scheduling policy (unsupported here).
type SchedPolicy int

const (
	SchedOther SchedPolicy = iota
	SchedFIFO
	SchedRR
)

// SetRealtimePriority is a no-op stub on platforms without
// sched_setscheduler.
func SetRealtimePriority(policy SchedPolicy, priority int) error {
	return fmt.Errorf("affinity: real-time scheduling not supported on this platform")
}
