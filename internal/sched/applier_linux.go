//go:build linux

package sched

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/rttune/rttune/pkg/cpuset"
	"github.com/rttune/rttune/pkg/types"
)

// schedParam mirrors struct sched_param; the kernel ABI has a single
// sched_priority member.
type schedParam struct {
	priority int32
}

type linuxApplier struct {
	mu     sync.Mutex
	ranges map[types.Policy][2]int // policy -> {min, max} native priority
}

func newPlatformApplier() Applier {
	return &linuxApplier{ranges: make(map[types.Policy][2]int)}
}

func policyToNative(p types.Policy) (int, error) {
	switch p {
	case types.PolicyOther:
		return unix.SCHED_NORMAL, nil
	case types.PolicyFifo:
		return unix.SCHED_FIFO, nil
	case types.PolicyRR:
		return unix.SCHED_RR, nil
	case types.PolicyBatch:
		return unix.SCHED_BATCH, nil
	case types.PolicyIdle:
		return unix.SCHED_IDLE, nil
	}
	return 0, fmt.Errorf("sched: unknown policy %q", p)
}

func policyFromNative(n int) types.Policy {
	switch n {
	case unix.SCHED_NORMAL:
		return types.PolicyOther
	case unix.SCHED_FIFO:
		return types.PolicyFifo
	case unix.SCHED_RR:
		return types.PolicyRR
	case unix.SCHED_BATCH:
		return types.PolicyBatch
	case unix.SCHED_IDLE:
		return types.PolicyIdle
	}
	return ""
}

func (a *linuxApplier) Read(tid int) (Attrs, error) {
	r1, _, errno := unix.Syscall(unix.SYS_SCHED_GETSCHEDULER, uintptr(tid), 0, 0)
	if errno != 0 {
		return Attrs{}, fmt.Errorf("sched_getscheduler tid %d: %w", tid, errno)
	}
	// Strip SCHED_RESET_ON_FORK if a parent set it.
	native := int(r1) &^ unix.SCHED_RESET_ON_FORK

	var param schedParam
	if _, _, errno := unix.Syscall(unix.SYS_SCHED_GETPARAM, uintptr(tid), uintptr(unsafe.Pointer(&param)), 0); errno != 0 {
		return Attrs{}, fmt.Errorf("sched_getparam tid %d: %w", tid, errno)
	}

	return Attrs{Policy: policyFromNative(native), NativePriority: int(param.priority)}, nil
}

func (a *linuxApplier) Commit(tid int, attrs Attrs) error {
	native, err := policyToNative(attrs.Policy)
	if err != nil {
		return err
	}
	param := schedParam{priority: int32(attrs.NativePriority)}
	if _, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, uintptr(tid), uintptr(native), uintptr(unsafe.Pointer(&param))); errno != 0 {
		return fmt.Errorf("sched_setscheduler tid %d: %w", tid, errno)
	}
	return nil
}

// priorityRange returns the native priority range for a policy, cached
// after the first kernel query.
func (a *linuxApplier) priorityRange(p types.Policy) (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.ranges[p]; ok {
		return r[0], r[1]
	}
	native, err := policyToNative(p)
	if err != nil {
		return 0, 0
	}
	lo, _, errno := unix.Syscall(unix.SYS_SCHED_GET_PRIORITY_MIN, uintptr(native), 0, 0)
	if errno != 0 {
		return 0, 0
	}
	hi, _, errno := unix.Syscall(unix.SYS_SCHED_GET_PRIORITY_MAX, uintptr(native), 0, 0)
	if errno != 0 {
		return 0, 0
	}
	a.ranges[p] = [2]int{int(lo), int(hi)}
	return int(lo), int(hi)
}

func (a *linuxApplier) NativePriority(policy types.Policy, osiPriority int) int {
	lo, hi := a.priorityRange(policy)
	if hi <= lo {
		return 0
	}
	osi := ClampOSI(osiPriority)
	return lo + osi*(hi-lo)/(types.OSIPriorityMax-types.OSIPriorityMin)
}

func (a *linuxApplier) AbstractPriority(policy types.Policy, nativePriority int) int {
	lo, hi := a.priorityRange(policy)
	if hi <= lo {
		return types.OSIPriorityMin
	}
	if nativePriority < lo {
		nativePriority = lo
	}
	if nativePriority > hi {
		nativePriority = hi
	}
	return (nativePriority - lo) * (types.OSIPriorityMax - types.OSIPriorityMin) / (hi - lo)
}

func (a *linuxApplier) SetAffinity(tid int, set cpuset.Set) error {
	var mask unix.CPUSet
	for _, cpu := range set.List() {
		if cpu < len(mask)*64 {
			mask.Set(cpu)
		}
	}
	if err := unix.SchedSetaffinity(tid, &mask); err != nil {
		return fmt.Errorf("sched_setaffinity tid %d: %w", tid, err)
	}
	return nil
}

func (a *linuxApplier) Affinity(tid int) (cpuset.Set, error) {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(tid, &mask); err != nil {
		return cpuset.Set{}, fmt.Errorf("sched_getaffinity tid %d: %w", tid, err)
	}
	var set cpuset.Set
	for cpu := 0; cpu < runtime.NumCPU(); cpu++ {
		if mask.IsSet(cpu) {
			set.Add(cpu)
		}
	}
	return set, nil
}
