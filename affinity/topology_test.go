package affinity

import "testing"

func TestSelectWriterCoresPrefersSameNUMADifferentPhysicalCore(t *testing.T) {
	orig := topoForCPUHook
	defer func() { topoForCPUHook = orig }()

	topoForCPUHook = func(cpu int) CPUTopology {
		table := map[int]CPUTopology{
			0: {LogicalID: 0, PackageID: 0, CoreID: 0, NUMANode: 0}, // producer
			1: {LogicalID: 1, PackageID: 0, CoreID: 0, NUMANode: 0}, // HT sibling of 0, same core
			2: {LogicalID: 2, PackageID: 0, CoreID: 1, NUMANode: 0}, // same NUMA, different core
			3: {LogicalID: 3, PackageID: 0, CoreID: 2, NUMANode: 0}, // same NUMA, different core
			4: {LogicalID: 4, PackageID: 1, CoreID: 0, NUMANode: 1}, // different NUMA
		}
		return table[cpu]
	}

	prod := 0
	got := SelectWriterCores([]int{0, 1, 2, 3, 4}, &prod, 2)
	want := []int{2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSelectWriterCoresFallsBackWithoutNUMAInfo(t *testing.T) {
	orig := topoForCPUHook
	defer func() { topoForCPUHook = orig }()
	topoForCPUHook = func(cpu int) CPUTopology {
		return CPUTopology{LogicalID: cpu, PackageID: -1, CoreID: -1, NUMANode: -1}
	}

	got := SelectWriterCores([]int{0, 1, 2}, nil, 5)
	if len(got) != 3 {
		t.Fatalf("expected all 3 cpus as candidates, got %v", got)
	}
}

func TestSelectWriterCoresZeroWriterThreads(t *testing.T) {
	if got := SelectWriterCores([]int{0, 1}, nil, 0); got != nil {
		t.Fatalf("expected nil for zero writer threads, got %v", got)
	}
}
