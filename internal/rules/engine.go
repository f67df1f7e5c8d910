package rules

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rttune/rttune/internal/sched"
	"github.com/rttune/rttune/internal/threads"
	"github.com/rttune/rttune/pkg/types"
)

// Emitter receives engine events (applied changes, OS errors). Wired to
// the event broker and audit sinks by the server; nil disables emission.
type Emitter func(types.Event)

// Engine applies matching rules to threads. Rules are applied in store
// order and each application commits directly to the thread, so a later
// matching rule's explicit settings overwrite an earlier one's for the
// same property: last matching rule wins, per property.
type Engine struct {
	store   *Store
	applier sched.Applier
	logger  *slog.Logger
	verbose bool
	emit    Emitter
}

type EngineOption func(*Engine)

// WithVerbose raises OS-call failure logging from debug to error,
// mirroring the verbose error reporting toggle of the admin surface.
func WithVerbose(v bool) EngineOption {
	return func(e *Engine) { e.verbose = v }
}

func WithEmitter(emit Emitter) EngineOption {
	return func(e *Engine) { e.emit = emit }
}

func NewEngine(store *Store, applier sched.Applier, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{store: store, applier: applier, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Store returns the rule store the engine consults.
func (e *Engine) Store() *Store { return e.store }

// ApplyToThread runs every matching rule against the thread, in store
// order. This is the thread-start hook body; the empty-store check keeps
// the common no-rules case off the store lock.
func (e *Engine) ApplyToThread(t *threads.Thread) {
	if e.store.Len() == 0 {
		return
	}
	e.store.ForEachMatching(t.Name, func(r *Rule) {
		e.computeAndCommit(t, r.fragment, r.name)
	})
}

// ModifyThread applies a one-shot transient fragment built from the three
// spec strings. It bypasses the store entirely and takes no store lock.
func (e *Engine) ModifyThread(t *threads.Thread, policySpec, prioritySpec, cpuSpec string) {
	frag := parseFragment(e.logger.With("thread", t.Name), policySpec, prioritySpec, cpuSpec)
	e.computeAndCommit(t, frag, "")
}

// computeAndCommit applies one fragment to one thread. The step order
// matters: policy must be settled before the priority translation, because
// native priority ranges depend on the policy.
func (e *Engine) computeAndCommit(t *threads.Thread, frag fragment, ruleName string) {
	policy, osi, realTime := t.SchedState()

	if frag.hasPolicy || frag.hasPriority {
		attrs, err := e.applier.Read(t.TID)
		if err != nil {
			// Best effort: keep the last-known attributes and continue.
			e.osError("read sched attrs", t, ruleName, err)
		} else if attrs.Policy != "" {
			policy = attrs.Policy
		}

		if frag.hasPolicy {
			policy = frag.policy
			realTime = policy.IsRealTime()
		}

		if frag.hasPriority {
			v := frag.priority.Value
			if frag.priority.Relative {
				v += osi
			}
			osi = sched.ClampOSI(v)
		}

		native := e.applier.NativePriority(policy, osi)
		if err := e.applier.Commit(t.TID, sched.Attrs{Policy: policy, NativePriority: native}); err != nil {
			e.osError("commit sched attrs", t, ruleName, err)
		} else {
			t.SetSchedState(policy, osi, realTime)
			e.applied(t, ruleName, map[string]any{
				"policy":          string(policy),
				"osi_priority":    osi,
				"native_priority": native,
			})
		}
	}

	// Affinity commits independently; a scheduler failure above does not
	// block it and an affinity failure rolls nothing back.
	if frag.hasCPUs {
		if err := e.applier.SetAffinity(t.TID, frag.cpus); err != nil {
			e.osError("set affinity", t, ruleName, err)
		} else {
			e.applied(t, ruleName, map[string]any{"cpus": frag.cpuSpec})
		}
	}
}

func (e *Engine) osError(op string, t *threads.Thread, ruleName string, err error) {
	args := []any{"op", op, "thread", t.Name, "tid", t.TID, "error", err}
	if ruleName != "" {
		args = append(args, "rule", ruleName)
	}
	if e.verbose {
		e.logger.Error("scheduling call failed", args...)
	} else {
		e.logger.Debug("scheduling call failed", args...)
	}
	e.publish(types.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      types.EventSchedError,
		Thread:    t.Name,
		TID:       t.TID,
		Rule:      ruleName,
		Fields:    map[string]any{"op": op, "error": err.Error()},
	})
}

func (e *Engine) applied(t *threads.Thread, ruleName string, fields map[string]any) {
	e.publish(types.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      types.EventSchedApplied,
		Thread:    t.Name,
		TID:       t.TID,
		Rule:      ruleName,
		Fields:    fields,
	})
}

func (e *Engine) publish(ev types.Event) {
	if e.emit != nil {
		e.emit(ev)
	}
}
