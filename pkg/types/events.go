package types

import "time"

// Event types emitted by the rule engine and admin surface.
const (
	EventRuleAdded        = "rule_added"
	EventRuleDeleted      = "rule_deleted"
	EventRulesLoaded      = "rules_loaded"
	EventThreadRegistered = "thread_registered"
	EventSchedApplied     = "sched_applied"
	EventSchedError       = "sched_error"
	EventMemLocked        = "mem_locked"
	EventMemUnlocked      = "mem_unlocked"
)

type Event struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`

	// Common convenience fields for indexing/search.
	Thread string `json:"thread,omitempty"`
	TID    int    `json:"tid,omitempty"`
	Rule   string `json:"rule,omitempty"`

	Fields map[string]any `json:"fields,omitempty"`
}

type EventQuery struct {
	Thread string
	Rule   string
	Types  []string
	Since  *time.Time
	Until  *time.Time

	Limit  int
	Offset int
	Asc    bool
}
