// Package metrics provides a minimal Prometheus-compatible text exporter
// for the scheduling daemon.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	startedAt time.Time

	eventsTotal atomic.Uint64
	byType      sync.Map // string -> *atomic.Uint64
}

func New() *Collector {
	return &Collector{startedAt: time.Now().UTC()}
}

func (c *Collector) IncEvent(eventType string) {
	if c == nil {
		return
	}
	c.eventsTotal.Add(1)
	if eventType == "" {
		eventType = "unknown"
	}
	ptr, _ := c.byType.LoadOrStore(eventType, &atomic.Uint64{})
	ptr.(*atomic.Uint64).Add(1)
}

// HandlerOptions supplies the live gauges. Nil funcs omit the gauge.
type HandlerOptions struct {
	ThreadCount func() int
	RuleCount   func() int
	MemLocked   func() bool
}

func (c *Collector) Handler(opts HandlerOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, "# HELP rttune_up Whether the rttune daemon is running.\n")
		fmt.Fprint(w, "# TYPE rttune_up gauge\n")
		fmt.Fprint(w, "rttune_up 1\n")

		fmt.Fprint(w, "# HELP rttune_events_total Total number of audit events appended.\n")
		fmt.Fprint(w, "# TYPE rttune_events_total counter\n")
		fmt.Fprintf(w, "rttune_events_total %d\n", c.eventsTotal.Load())

		types := snapshotKeys(&c.byType)
		if len(types) > 0 {
			fmt.Fprint(w, "# HELP rttune_events_by_type_total Total audit events appended by type.\n")
			fmt.Fprint(w, "# TYPE rttune_events_by_type_total counter\n")
			for _, t := range types {
				ptr, _ := c.byType.Load(t)
				n := uint64(0)
				if ptr != nil {
					n = ptr.(*atomic.Uint64).Load()
				}
				fmt.Fprintf(w, "rttune_events_by_type_total{type=%q} %d\n", escapeLabelValue(t), n)
			}
		}

		if opts.ThreadCount != nil {
			fmt.Fprint(w, "# HELP rttune_threads_managed Threads currently registered for scheduling management.\n")
			fmt.Fprint(w, "# TYPE rttune_threads_managed gauge\n")
			fmt.Fprintf(w, "rttune_threads_managed %d\n", opts.ThreadCount())
		}
		if opts.RuleCount != nil {
			fmt.Fprint(w, "# HELP rttune_rules Rules currently in the store.\n")
			fmt.Fprint(w, "# TYPE rttune_rules gauge\n")
			fmt.Fprintf(w, "rttune_rules %d\n", opts.RuleCount())
		}
		if opts.MemLocked != nil {
			locked := 0
			if opts.MemLocked() {
				locked = 1
			}
			fmt.Fprint(w, "# HELP rttune_memory_locked Whether process memory is locked into RAM.\n")
			fmt.Fprint(w, "# TYPE rttune_memory_locked gauge\n")
			fmt.Fprintf(w, "rttune_memory_locked %d\n", locked)
		}
	})
}

func snapshotKeys(m *sync.Map) []string {
	var out []string
	m.Range(func(k, _ any) bool {
		if s, ok := k.(string); ok {
			out = append(out, s)
		}
		return true
	})
	sort.Strings(out)
	return out
}

func escapeLabelValue(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\n", "\\n")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	return v
}
