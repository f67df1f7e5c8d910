package types

// Policy is a Linux scheduling policy name.
type Policy string

const (
	PolicyOther Policy = "OTHER"
	PolicyFifo  Policy = "FIFO"
	PolicyRR    Policy = "RR"
	PolicyBatch Policy = "BATCH"
	PolicyIdle  Policy = "IDLE"
)

// IsRealTime reports whether the policy is one of the real-time classes.
func (p Policy) IsRealTime() bool {
	return p == PolicyFifo || p == PolicyRR
}

// Abstract (OSI) priority range. Native values are derived from this range
// depending on the scheduling policy in effect.
const (
	OSIPriorityMin = 0
	OSIPriorityMax = 99
)

// Priority is an abstract priority setting. Relative values are deltas
// against the thread's current abstract priority at apply time.
type Priority struct {
	Value    int  `json:"value"`
	Relative bool `json:"relative,omitempty"`
}

// Rule is a read-only snapshot of a thread rule. Unset properties are nil.
type Rule struct {
	Name     string    `json:"name"`
	Pattern  string    `json:"pattern"`
	Policy   *Policy   `json:"policy,omitempty"`
	Priority *Priority `json:"priority,omitempty"`
	CPUs     string    `json:"cpus,omitempty"`
}

// ThreadInfo describes one registered thread and its last-known scheduling
// attributes. NativePriority and CPUSet are filled from a live OS read when
// the listing endpoint requests it.
type ThreadInfo struct {
	ID             string `json:"id"`
	TID            int    `json:"tid"`
	Name           string `json:"name"`
	OSIPriority    int    `json:"osi_priority"`
	Policy         Policy `json:"policy,omitempty"`
	NativePriority int    `json:"native_priority"`
	RealTime       bool   `json:"real_time"`
	Suspended      bool   `json:"suspended"`
	CPUSet         string `json:"cpu_set,omitempty"`
}

// ThreadModifyRequest is the admin one-shot modification payload. Each field
// uses the spec string syntax; "*" or empty means don't change.
type ThreadModifyRequest struct {
	Policy   string `json:"policy"`
	Priority string `json:"priority"`
	CPUs     string `json:"cpus"`
}

// RuleAddRequest is the admin rule creation payload.
type RuleAddRequest struct {
	Name     string `json:"name"`
	Policy   string `json:"policy"`
	Priority string `json:"priority"`
	CPUs     string `json:"cpus"`
	Pattern  string `json:"pattern"`
}
