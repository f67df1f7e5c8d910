package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerReportsCounters(t *testing.T) {
	c := New()
	c.IncEvent("sched_applied")
	c.IncEvent("sched_applied")
	c.IncEvent("rule_added")

	h := c.Handler(HandlerOptions{
		ThreadCount: func() int { return 4 },
		RuleCount:   func() int { return 2 },
		MemLocked:   func() bool { return true },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	out := string(body)
	require.Contains(t, out, "rttune_up 1")
	require.Contains(t, out, "rttune_events_total 3")
	require.Contains(t, out, `rttune_events_by_type_total{type="sched_applied"} 2`)
	require.Contains(t, out, "rttune_threads_managed 4")
	require.Contains(t, out, "rttune_rules 2")
	require.Contains(t, out, "rttune_memory_locked 1")
}

func TestNilGaugesAreOmitted(t *testing.T) {
	c := New()
	rec := httptest.NewRecorder()
	c.Handler(HandlerOptions{}).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	require.NotContains(t, string(body), "rttune_threads_managed")
	require.NotContains(t, string(body), "rttune_memory_locked")
}
