package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rttune/rttune/internal/sched"
	"github.com/rttune/rttune/pkg/types"
)

// ErrInvalidSpec marks a malformed policy, priority or cpu specification.
// An invalid spec degrades that one property to unset; it never fails a
// whole rule add.
var ErrInvalidSpec = errors.New("invalid spec")

// Unset marker in spec strings. An empty string means the same.
const specUnset = "*"

func isUnset(s string) bool { return s == "" || s == specUnset }

// policyOrder is the fixed resolution order for abbreviated policy names.
// The first name the given text is a prefix of wins.
var policyOrder = []types.Policy{
	types.PolicyOther,
	types.PolicyFifo,
	types.PolicyRR,
	types.PolicyBatch,
	types.PolicyIdle,
}

// ParsePolicy resolves a policy specification. An optional case-insensitive
// "SCHED_" prefix is stripped; the rest selects the first policy name it is
// a case-insensitive prefix of. Returns ok=false for the unset markers.
func ParsePolicy(s string) (types.Policy, bool, error) {
	if isUnset(s) {
		return "", false, nil
	}
	name := s
	if len(name) >= 6 && strings.EqualFold(name[:6], "SCHED_") {
		name = name[6:]
	}
	for _, p := range policyOrder {
		if len(name) > 0 && len(name) <= len(p) && strings.EqualFold(name, string(p)[:len(name)]) {
			return p, true, nil
		}
	}
	return "", false, fmt.Errorf("policy %q: %w", s, ErrInvalidSpec)
}

// ParsePriority resolves a priority specification. A leading '+' or '-'
// marks the value as relative to the thread's current abstract priority.
// Absolute values clamp into the OSI range here; relative values clamp
// only at apply time, against the runtime current value.
func ParsePriority(s string) (*types.Priority, error) {
	if isUnset(s) {
		return nil, nil
	}
	relative := s[0] == '+' || s[0] == '-'
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("priority %q: %w", s, ErrInvalidSpec)
	}
	if !relative {
		v = sched.ClampOSI(v)
	}
	return &types.Priority{Value: v, Relative: relative}, nil
}
