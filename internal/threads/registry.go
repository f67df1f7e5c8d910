// Package threads tracks the kernel threads of this process that opted into
// scheduling management, and fires start hooks as they register.
package threads

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/rttune/rttune/pkg/types"
)

// StartHook runs synchronously on the registering thread, before
// Register returns. It must stay fast: it sits on the startup path of
// every managed thread.
type StartHook func(*Thread)

// Registry is the process-wide collection of managed threads. Construct
// one at startup and share the reference; there is no ambient global.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Thread
	byTID  map[int]*Thread
	order  []*Thread
	hooks  []StartHook
	hookMu sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[string]*Thread),
		byTID: make(map[int]*Thread),
	}
}

// OnThreadStart adds a listener invoked for every subsequent Register.
func (r *Registry) OnThreadStart(h StartHook) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Register records the calling goroutine's kernel thread under the given
// name and fires start hooks before returning. The caller must have pinned
// the goroutine with runtime.LockOSThread and keep it pinned for as long
// as the registration is live.
func (r *Registry) Register(name string) (*Thread, error) {
	return r.RegisterTID(name, currentTID())
}

// RegisterTID adopts an already-running kernel thread under the given
// name. Start hooks fire exactly as for Register, but on the calling
// thread rather than the adopted one.
func (r *Registry) RegisterTID(name string, tid int) (*Thread, error) {
	if name == "" {
		return nil, fmt.Errorf("threads: empty thread name")
	}
	t := &Thread{
		ID:     uuid.NewString(),
		TID:    tid,
		Name:   name,
		policy: types.PolicyOther,
	}

	r.mu.Lock()
	r.byID[t.ID] = t
	r.byTID[tid] = t
	r.order = append(r.order, t)
	r.mu.Unlock()

	// Hooks run outside the registry lock so they may consult it.
	r.hookMu.RLock()
	hooks := r.hooks
	r.hookMu.RUnlock()
	for _, h := range hooks {
		h(t)
	}
	return t, nil
}

// Unregister drops the handle. Silent no-op for unknown threads.
func (r *Registry) Unregister(t *Thread) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, t.ID)
	if cur, ok := r.byTID[t.TID]; ok && cur == t {
		delete(r.byTID, t.TID)
	}
	for i, cur := range r.order {
		if cur == t {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Lookup resolves a thread reference: a numeric kernel tid, or a thread
// name. Names resolve to the first registered thread with that name.
func (r *Registry) Lookup(ref string) (*Thread, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tid, err := strconv.Atoi(ref); err == nil {
		t, ok := r.byTID[tid]
		return t, ok
	}
	for _, t := range r.order {
		if t.Name == ref {
			return t, true
		}
	}
	return nil, false
}

// ForEach visits a snapshot of the registered threads in registration
// order.
func (r *Registry) ForEach(fn func(*Thread)) {
	r.mu.RLock()
	list := make([]*Thread, len(r.order))
	copy(list, r.order)
	r.mu.RUnlock()
	for _, t := range list {
		fn(t)
	}
}

// Len returns the number of registered threads.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
