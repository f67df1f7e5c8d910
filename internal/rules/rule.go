package rules

import (
	"log/slog"
	"regexp"

	"github.com/rttune/rttune/pkg/cpuset"
	"github.com/rttune/rttune/pkg/types"
)

// fragment is the set of property modifiers a rule (or a one-shot modify
// call) applies to a thread. Each property is independently optional.
type fragment struct {
	hasPolicy   bool
	policy      types.Policy
	hasPriority bool
	priority    types.Priority
	hasCPUs     bool
	cpus        cpuset.Set
	cpuSpec     string
}

// parseFragment interprets the three modifier specs. Malformed specs
// degrade to unset for that property and are logged; they never fail the
// caller. A fragment with nothing set is legal and a no-op.
func parseFragment(logger *slog.Logger, policySpec, prioritySpec, cpuSpec string) fragment {
	var f fragment

	policy, ok, err := ParsePolicy(policySpec)
	if err != nil {
		logger.Error("invalid policy spec, property left unset", "spec", policySpec, "error", err)
	} else if ok {
		f.hasPolicy = true
		f.policy = policy
	}

	prio, err := ParsePriority(prioritySpec)
	if err != nil {
		logger.Error("invalid priority spec, property left unset", "spec", prioritySpec, "error", err)
	} else if prio != nil {
		f.hasPriority = true
		f.priority = *prio
	}

	if !isUnset(cpuSpec) {
		set, err := cpuset.Parse(cpuSpec)
		if err != nil {
			logger.Error("invalid cpu spec, property left unset", "spec", cpuSpec, "error", err)
		} else {
			f.hasCPUs = true
			f.cpus = set
			f.cpuSpec = set.String()
		}
	}
	return f
}

// Rule is one named entry of the store. The compiled pattern is owned by
// the rule and dropped with it on delete or replace.
type Rule struct {
	fragment

	name    string
	pattern string
	re      *regexp.Regexp
}

func (r *Rule) matches(threadName string) bool {
	return r.re.MatchString(threadName)
}

// snapshot converts to the read-only wire representation.
func (r *Rule) snapshot() types.Rule {
	out := types.Rule{
		Name:    r.name,
		Pattern: r.pattern,
	}
	if r.hasPolicy {
		p := r.policy
		out.Policy = &p
	}
	if r.hasPriority {
		prio := r.priority
		out.Priority = &prio
	}
	if r.hasCPUs {
		out.CPUs = r.cpuSpec
	}
	return out
}
