package threads

import (
	"sync"

	"github.com/rttune/rttune/pkg/types"
)

// Thread is the handle for one registered kernel thread. Scheduling
// attributes are the last values this process committed or read back;
// the kernel remains the source of truth.
type Thread struct {
	ID   string
	TID  int
	Name string

	mu          sync.Mutex
	osiPriority int
	policy      types.Policy
	realTime    bool
	suspended   bool
}

// SchedState returns the last-known policy, abstract priority and
// real-time flag.
func (t *Thread) SchedState() (types.Policy, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.policy, t.osiPriority, t.realTime
}

// SetSchedState records the attributes just committed for this thread.
func (t *Thread) SetSchedState(policy types.Policy, osiPriority int, realTime bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.policy = policy
	t.osiPriority = osiPriority
	t.realTime = realTime
}

// SetSuspended flags the thread as suspended for listings.
func (t *Thread) SetSuspended(s bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = s
}

// Snapshot returns a copy of the handle for listings.
func (t *Thread) Snapshot() types.ThreadInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return types.ThreadInfo{
		ID:          t.ID,
		TID:         t.TID,
		Name:        t.Name,
		OSIPriority: t.osiPriority,
		Policy:      t.policy,
		RealTime:    t.realTime,
		Suspended:   t.suspended,
	}
}
