package rules

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rttune/rttune/internal/sched"
	"github.com/rttune/rttune/internal/threads"
	"github.com/rttune/rttune/pkg/cpuset"
	"github.com/rttune/rttune/pkg/types"
)

// fakeApplier keeps per-tid scheduling state in memory and records commits.
// Real-time policies scale abstract priorities into 1..99; the others pin
// native priority to 0, like the Linux applier.
type fakeApplier struct {
	mu       sync.Mutex
	attrs    map[int]sched.Attrs
	affinity map[int]cpuset.Set
	commits  []sched.Attrs
	readErr  error
	writeErr error
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{
		attrs:    make(map[int]sched.Attrs),
		affinity: make(map[int]cpuset.Set),
	}
}

func (f *fakeApplier) Read(tid int) (sched.Attrs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return sched.Attrs{}, f.readErr
	}
	if a, ok := f.attrs[tid]; ok {
		return a, nil
	}
	return sched.Attrs{Policy: types.PolicyOther}, nil
}

func (f *fakeApplier) Commit(tid int, attrs sched.Attrs) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.attrs[tid] = attrs
	f.commits = append(f.commits, attrs)
	return nil
}

func (f *fakeApplier) NativePriority(policy types.Policy, osi int) int {
	if !policy.IsRealTime() {
		return 0
	}
	osi = sched.ClampOSI(osi)
	return 1 + osi*98/99
}

func (f *fakeApplier) AbstractPriority(policy types.Policy, native int) int {
	if !policy.IsRealTime() {
		return 0
	}
	return (native - 1) * 99 / 98
}

func (f *fakeApplier) SetAffinity(tid int, set cpuset.Set) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.affinity[tid] = set
	return nil
}

func (f *fakeApplier) Affinity(tid int) (cpuset.Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.affinity[tid], nil
}

func newTestThread(t *testing.T, r *threads.Registry, name string, tid int) *threads.Thread {
	t.Helper()
	th, err := r.RegisterTID(name, tid)
	require.NoError(t, err)
	return th
}

func TestApplyRelativeChainsOffPreviousRule(t *testing.T) {
	store := NewStore(quietLogger())
	ap := newFakeApplier()
	e := NewEngine(store, ap, quietLogger())
	reg := threads.NewRegistry()
	th := newTestThread(t, reg, "netWorker", 100)
	th.SetSchedState(types.PolicyFifo, 10, true)

	require.NoError(t, store.Add("base", "*", "10", "*", "Worker"))
	require.NoError(t, store.Add("bump", "*", "+5", "*", "Worker"))

	e.ApplyToThread(th)

	_, osi, _ := th.SchedState()
	require.Equal(t, 15, osi)
}

func TestLaterRuleOverridesPerProperty(t *testing.T) {
	store := NewStore(quietLogger())
	ap := newFakeApplier()
	e := NewEngine(store, ap, quietLogger())
	reg := threads.NewRegistry()
	th := newTestThread(t, reg, "dbWriter", 101)

	// Broad rule sets policy and priority; narrower later rule overrides
	// only the priority, so the earlier policy persists.
	require.NoError(t, store.Add("broad", "fifo", "30", "0-1", "db"))
	require.NoError(t, store.Add("narrow", "*", "70", "*", "Writer"))

	e.ApplyToThread(th)

	policy, osi, rt := th.SchedState()
	require.Equal(t, types.PolicyFifo, policy)
	require.Equal(t, 70, osi)
	require.True(t, rt)

	set, err := ap.Affinity(101)
	require.NoError(t, err)
	require.Equal(t, "0-1", set.String())
}

func TestApplySkipsSchedReadWhenOnlyAffinitySet(t *testing.T) {
	store := NewStore(quietLogger())
	ap := newFakeApplier()
	ap.readErr = errors.New("must not be called")
	e := NewEngine(store, ap, quietLogger())
	reg := threads.NewRegistry()
	th := newTestThread(t, reg, "pinned", 102)

	require.NoError(t, store.Add("pin", "*", "*", "2-3", "pinned"))
	e.ApplyToThread(th)

	require.Empty(t, ap.commits)
	set, err := ap.Affinity(102)
	require.NoError(t, err)
	require.Equal(t, "2-3", set.String())
}

func TestFailedCommitsDoNotUpdateHandle(t *testing.T) {
	store := NewStore(quietLogger())
	ap := newFakeApplier()
	e := NewEngine(store, ap, quietLogger())
	reg := threads.NewRegistry()
	th := newTestThread(t, reg, "mixed", 103)

	require.NoError(t, store.Add("all", "rr", "40", "1", "mixed"))

	ap.writeErr = errors.New("EPERM")
	e.ApplyToThread(th)

	// Neither property committed, and the handle kept its old state.
	policy, _, _ := th.SchedState()
	require.Equal(t, types.PolicyOther, policy)

	// A later pass with permissions applies both independently.
	ap.writeErr = nil
	e.ApplyToThread(th)
	policy, osi, rt := th.SchedState()
	require.Equal(t, types.PolicyRR, policy)
	require.Equal(t, 40, osi)
	require.True(t, rt)
	set, err := ap.Affinity(103)
	require.NoError(t, err)
	require.Equal(t, "1", set.String())
}

func TestReadFailureFallsBackToLastKnown(t *testing.T) {
	store := NewStore(quietLogger())
	ap := newFakeApplier()
	ap.readErr = errors.New("ESRCH")
	e := NewEngine(store, ap, quietLogger(), WithVerbose(true))
	reg := threads.NewRegistry()
	th := newTestThread(t, reg, "ghost", 104)
	th.SetSchedState(types.PolicyFifo, 20, true)

	require.NoError(t, store.Add("bump", "*", "+10", "*", "ghost"))
	e.ApplyToThread(th)

	policy, osi, _ := th.SchedState()
	require.Equal(t, types.PolicyFifo, policy)
	require.Equal(t, 30, osi)
}

func TestRelativeClampAtApply(t *testing.T) {
	store := NewStore(quietLogger())
	ap := newFakeApplier()
	e := NewEngine(store, ap, quietLogger())
	reg := threads.NewRegistry()
	th := newTestThread(t, reg, "hot", 105)
	th.SetSchedState(types.PolicyFifo, 95, true)

	require.NoError(t, store.Add("up", "*", "+50", "*", "hot"))
	e.ApplyToThread(th)

	_, osi, _ := th.SchedState()
	require.Equal(t, types.OSIPriorityMax, osi)
}

func TestModifyThreadBypassesStore(t *testing.T) {
	store := NewStore(quietLogger())
	ap := newFakeApplier()
	e := NewEngine(store, ap, quietLogger())
	reg := threads.NewRegistry()
	th := newTestThread(t, reg, "adhoc", 106)

	e.ModifyThread(th, "fifo", "25", "0,2")

	policy, osi, rt := th.SchedState()
	require.Equal(t, types.PolicyFifo, policy)
	require.Equal(t, 25, osi)
	require.True(t, rt)
	set, err := ap.Affinity(106)
	require.NoError(t, err)
	require.Equal(t, "0,2", set.String())
	require.Equal(t, 0, store.Len())
}

func TestEmptyStoreFastPath(t *testing.T) {
	store := NewStore(quietLogger())
	ap := newFakeApplier()
	ap.readErr = errors.New("must not be called")
	e := NewEngine(store, ap, quietLogger())
	reg := threads.NewRegistry()
	th := newTestThread(t, reg, "quiet", 107)

	e.ApplyToThread(th)
	require.Empty(t, ap.commits)
}

func TestEmptyStoreFastPathSkipsStoreLock(t *testing.T) {
	store := NewStore(quietLogger())
	ap := newFakeApplier()
	e := NewEngine(store, ap, quietLogger())
	reg := threads.NewRegistry()
	th := newTestThread(t, reg, "quiet", 109)

	// A writer holding the store lock must not stall startup of threads
	// that no rule could match anyway.
	store.mu.Lock()
	defer store.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.ApplyToThread(th)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("thread-start hook blocked on the store lock with no rules")
	}
	require.Empty(t, ap.commits)
}

func TestEngineEmitsEvents(t *testing.T) {
	store := NewStore(quietLogger())
	ap := newFakeApplier()
	var got []types.Event
	e := NewEngine(store, ap, quietLogger(), WithEmitter(func(ev types.Event) { got = append(got, ev) }))
	reg := threads.NewRegistry()
	th := newTestThread(t, reg, "audited", 108)

	require.NoError(t, store.Add("r", "fifo", "10", "0", "audited"))
	e.ApplyToThread(th)

	require.Len(t, got, 2)
	require.Equal(t, types.EventSchedApplied, got[0].Type)
	require.Equal(t, "r", got[0].Rule)
	require.Equal(t, "audited", got[0].Thread)
	require.Equal(t, types.EventSchedApplied, got[1].Type)
	require.Equal(t, "0", got[1].Fields["cpus"])
}

func TestThreadStormAgainstMutatingStore(t *testing.T) {
	store := NewStore(quietLogger())
	ap := newFakeApplier()
	e := NewEngine(store, ap, quietLogger())
	reg := threads.NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("rule%d", i%3)
			require.NoError(t, store.Add(name, "fifo", "+1", "0", "storm"))
			store.Delete(name)
		}(i)
		go func(i int) {
			defer wg.Done()
			th := newTestThread(t, reg, "storm", 2000+i)
			for j := 0; j < 20; j++ {
				e.ApplyToThread(th)
			}
		}(i)
	}
	wg.Wait()
}
