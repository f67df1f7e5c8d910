// Package api is the admin HTTP surface: rule management, thread
// inspection and one-shot modification, memory locking and the audit
// event feed.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rttune/rttune/internal/config"
	"github.com/rttune/rttune/internal/events"
	"github.com/rttune/rttune/internal/memlock"
	"github.com/rttune/rttune/internal/metrics"
	"github.com/rttune/rttune/internal/rules"
	"github.com/rttune/rttune/internal/sched"
	"github.com/rttune/rttune/internal/store"
	"github.com/rttune/rttune/internal/threads"
	"github.com/rttune/rttune/pkg/types"
)

type App struct {
	cfg       *config.Config
	engine    *rules.Engine
	registry  *threads.Registry
	applier   sched.Applier
	locker    memlock.Locker
	store     store.EventStore
	broker    *events.Broker
	collector *metrics.Collector
	logger    *slog.Logger
}

func NewApp(cfg *config.Config, engine *rules.Engine, registry *threads.Registry, applier sched.Applier, locker memlock.Locker, st store.EventStore, broker *events.Broker, collector *metrics.Collector, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:       cfg,
		engine:    engine,
		registry:  registry,
		applier:   applier,
		locker:    locker,
		store:     st,
		broker:    broker,
		collector: collector,
		logger:    logger,
	}
}

func (a *App) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { writeText(w, http.StatusOK, "ok\n") })

	if a.cfg.Metrics.Enabled && a.collector != nil {
		r.Get(a.cfg.Metrics.Path, a.collector.Handler(metrics.HandlerOptions{
			ThreadCount: a.registry.Len,
			RuleCount:   func() int { return a.engine.Store().Len() },
			MemLocked:   a.locker.Locked,
		}).ServeHTTP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/rules", a.listRules)
		r.Post("/rules", a.addRule)
		r.Delete("/rules/{name}", a.deleteRule)

		r.Get("/threads", a.listThreads)
		r.Get("/threads/{ref}", a.getThread)
		r.Patch("/threads/{ref}", a.modifyThread)

		r.Get("/memlock", a.memlockStatus)
		r.Post("/memlock", a.memlockLock)
		r.Delete("/memlock", a.memlockUnlock)

		r.Get("/events", a.searchEvents)
		r.Get("/events/stream", a.streamEvents)
		r.Get("/events/ws", a.streamEventsWS)
	})

	return r
}

func (a *App) listRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rules": a.engine.Store().List()})
}

func (a *App) addRule(w http.ResponseWriter, r *http.Request) {
	var req types.RuleAddRequest
	if !readBody(w, r, &req, "rule") {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "rule name is required"})
		return
	}
	if req.Pattern == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "pattern is required"})
		return
	}
	if err := a.engine.Store().Add(req.Name, req.Policy, req.Priority, req.CPUs, req.Pattern); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	a.emit(r, types.Event{
		Type: types.EventRuleAdded,
		Rule: req.Name,
		Fields: map[string]any{
			"pattern":  req.Pattern,
			"policy":   req.Policy,
			"priority": req.Priority,
			"cpus":     req.CPUs,
		},
	})
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (a *App) deleteRule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a.engine.Store().Delete(name)
	a.emit(r, types.Event{Type: types.EventRuleDeleted, Rule: name})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *App) listThreads(w http.ResponseWriter, r *http.Request) {
	var infos []types.ThreadInfo
	a.registry.ForEach(func(t *threads.Thread) {
		infos = append(infos, a.threadInfo(t))
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].TID < infos[j].TID })
	writeJSON(w, http.StatusOK, map[string]any{"threads": infos})
}

func (a *App) getThread(w http.ResponseWriter, r *http.Request) {
	t, ok := a.registry.Lookup(chi.URLParam(r, "ref"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "thread not found"})
		return
	}
	writeJSON(w, http.StatusOK, a.threadInfo(t))
}

func (a *App) modifyThread(w http.ResponseWriter, r *http.Request) {
	t, ok := a.registry.Lookup(chi.URLParam(r, "ref"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "thread not found"})
		return
	}
	var req types.ThreadModifyRequest
	if !readBody(w, r, &req, "thread modification") {
		return
	}
	a.engine.ModifyThread(t, req.Policy, req.Priority, req.CPUs)
	writeJSON(w, http.StatusOK, a.threadInfo(t))
}

// threadInfo merges the handle's last-known state with a live OS read.
// The live read is best effort; without it the handle state stands alone.
func (a *App) threadInfo(t *threads.Thread) types.ThreadInfo {
	info := t.Snapshot()
	if attrs, err := a.applier.Read(t.TID); err == nil {
		info.Policy = attrs.Policy
		info.NativePriority = attrs.NativePriority
		info.OSIPriority = a.applier.AbstractPriority(attrs.Policy, attrs.NativePriority)
		info.RealTime = attrs.Policy.IsRealTime()
	}
	if set, err := a.applier.Affinity(t.TID); err == nil && !set.IsEmpty() {
		info.CPUSet = set.String()
	}
	return info
}

func (a *App) memlockStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"locked": a.locker.Locked()})
}

func (a *App) memlockLock(w http.ResponseWriter, r *http.Request) {
	if err := a.locker.Lock(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	a.emit(r, types.Event{Type: types.EventMemLocked})
	writeJSON(w, http.StatusOK, map[string]any{"locked": true})
}

func (a *App) memlockUnlock(w http.ResponseWriter, r *http.Request) {
	if err := a.locker.Unlock(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	a.emit(r, types.Event{Type: types.EventMemUnlocked})
	writeJSON(w, http.StatusOK, map[string]any{"locked": false})
}

func (a *App) searchEvents(w http.ResponseWriter, r *http.Request) {
	q, err := parseEventQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	evs, err := a.store.QueryEvents(r.Context(), q)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if evs == nil {
		evs = []types.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

// emit persists an admin event and fans it out to subscribers. Storage
// failures only log; the admin operation itself already succeeded.
func (a *App) emit(r *http.Request, ev types.Event) {
	ev.ID = uuid.NewString()
	ev.Timestamp = time.Now().UTC()
	if a.store != nil {
		if err := a.store.AppendEvent(r.Context(), ev); err != nil {
			a.logger.Warn("append audit event", "type", ev.Type, "error", err)
		}
	}
	if a.broker != nil {
		a.broker.Publish(ev)
	}
}

func parseEventQuery(r *http.Request) (types.EventQuery, error) {
	v := r.URL.Query()
	var q types.EventQuery
	q.Thread = v.Get("thread")
	q.Rule = v.Get("rule")
	if t := v.Get("type"); t != "" {
		q.Types = strings.Split(t, ",")
	}
	q.Limit, _ = strconv.Atoi(v.Get("limit"))
	q.Offset, _ = strconv.Atoi(v.Get("offset"))
	q.Asc = v.Get("order") == "asc"

	if since := v.Get("since"); since != "" {
		t, err := parseTimeOrAgo(since)
		if err != nil {
			return q, fmt.Errorf("since: %w", err)
		}
		q.Since = &t
	}
	if until := v.Get("until"); until != "" {
		t, err := parseTimeOrAgo(until)
		if err != nil {
			return q, fmt.Errorf("until: %w", err)
		}
		q.Until = &t
	}
	return q, nil
}

func parseTimeOrAgo(s string) (time.Time, error) {
	if strings.ContainsAny(s, "smhdw") && !strings.Contains(s, "T") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return time.Time{}, err
		}
		return time.Now().UTC().Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// readBody decodes a request body into dst, answering the request itself
// on failure. what names the payload in the error the client sees.
func readBody(w http.ResponseWriter, r *http.Request, dst any, what string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": what + " body exceeds the request size limit"})
		} else {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed " + what + " body"})
		}
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}
