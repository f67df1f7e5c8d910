// Package sched reads and commits kernel-thread scheduling attributes:
// policy, priority and CPU affinity.
package sched

import (
	"errors"

	"github.com/rttune/rttune/pkg/cpuset"
	"github.com/rttune/rttune/pkg/types"
)

// ErrUnsupported is returned on platforms without thread scheduling control.
var ErrUnsupported = errors.New("sched: not supported on this platform")

// Attrs is a point-in-time view of a thread's scheduling attributes.
type Attrs struct {
	Policy         types.Policy
	NativePriority int
}

// Applier reads and writes scheduling attributes of a kernel thread
// identified by its tid. Implementations are safe for concurrent use.
type Applier interface {
	// Read returns the thread's current policy and native priority.
	Read(tid int) (Attrs, error)

	// Commit pushes policy and native priority in a single scheduler call.
	Commit(tid int, attrs Attrs) error

	// NativePriority translates an abstract priority into the native value
	// for the given policy. Real-time policies scale into the kernel's
	// priority range; the others always map to 0.
	NativePriority(policy types.Policy, osiPriority int) int

	// AbstractPriority is the inverse translation, used when rendering
	// a thread's OS state.
	AbstractPriority(policy types.Policy, nativePriority int) int

	// SetAffinity pins the thread to the given CPU set.
	SetAffinity(tid int, set cpuset.Set) error

	// Affinity reads the thread's current CPU set, truncated to the
	// configured processor count.
	Affinity(tid int) (cpuset.Set, error)
}

// ClampOSI clamps an abstract priority into the valid OSI range.
func ClampOSI(p int) int {
	if p > types.OSIPriorityMax {
		return types.OSIPriorityMax
	}
	if p < types.OSIPriorityMin {
		return types.OSIPriorityMin
	}
	return p
}

// New returns the platform applier.
func New() Applier {
	return newPlatformApplier()
}
