//go:build linux

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Pin restricts the calling OS thread to run only on cpuID. Callers must
// have already called runtime.LockOSThread, since Go may otherwise migrate
// the goroutine to a different OS thread after this call.
func Pin(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity cpu %d: %w", cpuID, err)
	}
	return nil
}

// SchedPolicy names a POSIX real-time scheduling policy.
type SchedPolicy int

const (
	SchedOther SchedPolicy = unix.SCHED_OTHER
	SchedFIFO  SchedPolicy = unix.SCHED_FIFO
	SchedRR    SchedPolicy = unix.SCHED_RR
)

// SetRealtimePriority applies policy and priority to the calling thread.
// priority is only meaningful for SchedFIFO/SchedRR.
func SetRealtimePriority(policy SchedPolicy, priority int) error {
	param := unix.SchedParam{Priority: int32(priority)}
	if err := unix.SchedSetscheduler(0, int(policy), &param); err != nil {
		return fmt.Errorf("affinity: sched_setscheduler policy=%d priority=%d: %w", policy, priority, err)
	}
	return nil
}
