// Package affinity selects and applies CPU pinning for writer threads:
// scanning /sys topology to prefer a core on the producer's NUMA node but a
// distinct physical core (filtering hyperthread siblings), then pinning via
// raw scheduler syscalls.
package affinity

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// CPUTopology describes one logical CPU's placement.
type CPUTopology struct {
	LogicalID int
	PackageID int // -1 if unknown
	CoreID    int // -1 if unknown
	NUMANode  int // -1 if unknown
}

type physicalCore struct {
	packageID, coreID int
}

func readUintFile(path string) (int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0, false
	}
	var v int
	if _, err := fmt.Sscanf(sc.Text(), "%d", &v); err != nil {
		return 0, false
	}
	return v, true
}

// topoForCPUHook is indirected so tests can substitute a synthetic
// topology without requiring a real /sys/devices/system/cpu tree.
var topoForCPUHook = topoForCPU

func topoForCPU(cpu int) CPUTopology {
	e := CPUTopology{LogicalID: cpu, PackageID: -1, CoreID: -1, NUMANode: -1}
	base := filepath.Join("/sys/devices/system/cpu", fmt.Sprintf("cpu%d", cpu))
	if v, ok := readUintFile(filepath.Join(base, "topology", "physical_package_id")); ok {
		e.PackageID = v
	}
	if v, ok := readUintFile(filepath.Join(base, "topology", "core_id")); ok {
		e.CoreID = v
	}
	for node := 0; node < 8; node++ {
		p := filepath.Join("/sys/devices/system/node", fmt.Sprintf("node%d", node), fmt.Sprintf("cpu%d", cpu))
		if _, err := os.Stat(p); err == nil {
			e.NUMANode = node
			break
		}
	}
	return e
}

// AvailableCPUs lists logical CPU indices found under /sys/devices/system/cpu
// (cpu0, cpu1, ...). Returns nil if the directory can't be read (e.g. a
// non-Linux host), signaling callers to skip affinity entirely.
func AvailableCPUs() []int {
	entries, err := os.ReadDir("/sys/devices/system/cpu")
	if err != nil {
		return nil
	}
	var cpus []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(e.Name(), "cpu%d", &n); err == nil {
			cpus = append(cpus, n)
		}
	}
	sort.Ints(cpus)
	return cpus
}

// SelectWriterCores picks up to writerThreads logical CPU IDs for writer
// pinning. When prodCore is non-nil, candidates are restricted to the same
// NUMA node as prodCore (when known) and filtered to one logical CPU per
// distinct physical core, excluding prodCore's own physical core entirely.
// Falls back to any CPU other than prodCore if no same-NUMA candidate
// exists, and to all CPUs if prodCore is nil.
func SelectWriterCores(cpus []int, prodCore *int, writerThreads int) []int {
	if writerThreads <= 0 || len(cpus) == 0 {
		return nil
	}

	topo := make(map[int]CPUTopology, len(cpus))
	for _, c := range cpus {
		topo[c] = topoForCPUHook(c)
	}

	var candidates []int
	if prodCore != nil {
		if prod, ok := topo[*prodCore]; ok {
			seen := make(map[physicalCore]bool)
			for _, c := range cpus {
				if c == *prodCore {
					continue
				}
				ent := topo[c]
				if prod.NUMANode >= 0 && ent.NUMANode != prod.NUMANode {
					continue
				}
				phys := physicalCore{ent.PackageID, ent.CoreID}
				if phys == (physicalCore{prod.PackageID, prod.CoreID}) {
					continue
				}
				if !seen[phys] {
					seen[phys] = true
					candidates = append(candidates, c)
				}
			}
		}
	}

	if len(candidates) == 0 {
		for _, c := range cpus {
			if prodCore == nil || c != *prodCore {
				candidates = append(candidates, c)
			}
		}
	}

	if len(candidates) > writerThreads {
		candidates = candidates[:writerThreads]
	}
	return candidates
}
