// Package server wires the scheduling engine, thread registry, rule
// files and audit sinks into the admin HTTP daemon.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rttune/rttune/internal/api"
	"github.com/rttune/rttune/internal/config"
	"github.com/rttune/rttune/internal/events"
	"github.com/rttune/rttune/internal/memlock"
	"github.com/rttune/rttune/internal/metrics"
	"github.com/rttune/rttune/internal/rules"
	"github.com/rttune/rttune/internal/sched"
	storepkg "github.com/rttune/rttune/internal/store"
	"github.com/rttune/rttune/internal/store/composite"
	"github.com/rttune/rttune/internal/store/jsonl"
	"github.com/rttune/rttune/internal/store/sqlite"
	"github.com/rttune/rttune/internal/store/webhook"
	"github.com/rttune/rttune/internal/threads"
	"github.com/rttune/rttune/pkg/types"
)

type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	httpServer *http.Server
	httpLn     net.Listener

	store    *composite.Store
	broker   *events.Broker
	engine   *rules.Engine
	registry *threads.Registry
	locker   memlock.Locker
	watcher  *config.RulesWatcher
}

func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	var db *sqlite.Store
	if cfg.Audit.SQLitePath != "" {
		var err error
		db, err = sqlite.Open(cfg.Audit.SQLitePath)
		if err != nil {
			return nil, err
		}
	}

	var jsonlStore *jsonl.Store
	if cfg.Audit.Output != "" {
		var err error
		jsonlStore, err = jsonl.New(cfg.Audit.Output, cfg.Audit.Rotation.MaxSizeMB, cfg.Audit.Rotation.MaxBackups)
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, err
		}
	}

	var sinks []storepkg.EventStore
	if jsonlStore != nil {
		sinks = append(sinks, jsonlStore)
	}
	if cfg.Audit.Webhook.URL != "" {
		flushEvery, err := time.ParseDuration(cfg.Audit.Webhook.FlushInterval)
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, fmt.Errorf("parse audit.webhook.flush_interval: %w", err)
		}
		timeout, err := time.ParseDuration(cfg.Audit.Webhook.Timeout)
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, fmt.Errorf("parse audit.webhook.timeout: %w", err)
		}
		webhookStore, err := webhook.New(webhook.Options{
			URL:           cfg.Audit.Webhook.URL,
			BatchSize:     cfg.Audit.Webhook.BatchSize,
			FlushInterval: flushEvery,
			Timeout:       timeout,
			Headers:       cfg.Audit.Webhook.Headers,
		})
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, err
		}
		sinks = append(sinks, webhookStore)
	}

	collector := metrics.New()

	// Wrap the primary so metrics count each event exactly once.
	var primary storepkg.EventStore
	if db != nil {
		primary = metrics.WrapEventStore(db, collector)
	}
	store := composite.New(primary, sinks...)

	broker := events.NewBroker()
	emit := func(ev types.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.AppendEvent(ctx, ev); err != nil {
			logger.Warn("append audit event", "type", ev.Type, "error", err)
		}
		broker.Publish(ev)
	}

	applier := sched.New()
	ruleStore := rules.NewStore(logger)
	engine := rules.NewEngine(ruleStore, applier, logger,
		rules.WithVerbose(cfg.Logging.VerboseErrors),
		rules.WithEmitter(emit),
	)

	registry := threads.NewRegistry()
	// Registration event first, then rule application, so audit order
	// matches what actually happened on the thread.
	registry.OnThreadStart(func(t *threads.Thread) {
		emit(types.Event{
			ID:        uuid.NewString(),
			Timestamp: time.Now().UTC(),
			Type:      types.EventThreadRegistered,
			Thread:    t.Name,
			TID:       t.TID,
		})
	})
	registry.OnThreadStart(engine.ApplyToThread)

	count := config.LoadRules(logger, ruleStore, cfg.Rules)
	emit(types.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      types.EventRulesLoaded,
		Fields:    map[string]any{"count": count},
	})

	locker := memlock.New()
	if cfg.MemLock.OnStartup {
		if err := locker.Lock(); err != nil {
			logger.Error("memory lock on startup failed", "error", err)
		} else {
			logger.Info("process memory locked")
			emit(types.Event{
				ID:        uuid.NewString(),
				Timestamp: time.Now().UTC(),
				Type:      types.EventMemLocked,
			})
		}
	}

	var watcher *config.RulesWatcher
	if cfg.Rules.HotReload {
		debounce, err := time.ParseDuration(cfg.Rules.Debounce)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("parse rules.debounce: %w", err)
		}
		files := []string{cfg.Rules.SystemFile}
		if user, err := cfg.Rules.UserRulesPath(); err == nil {
			files = append(files, user)
		}
		watcher, err = config.NewRulesWatcher(config.WatcherConfig{
			Logger:   logger,
			Adder:    ruleStore,
			Files:    files,
			Debounce: debounce,
			OnReload: func(path string, count int, err error) {
				fields := map[string]any{"file": path, "count": count}
				if err != nil {
					fields["error"] = err.Error()
				}
				emit(types.Event{
					ID:        uuid.NewString(),
					Timestamp: time.Now().UTC(),
					Type:      types.EventRulesLoaded,
					Fields:    fields,
				})
			},
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	app := api.NewApp(cfg, engine, registry, applier, locker, store, broker, collector, logger)

	readTimeout, err := time.ParseDuration(cfg.Server.ReadTimeout)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("parse server.read_timeout: %w", err)
	}
	writeTimeout, err := time.ParseDuration(cfg.Server.WriteTimeout)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("parse server.write_timeout: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		httpLn:     ln,
		store:      store,
		broker:     broker,
		engine:     engine,
		registry:   registry,
		locker:     locker,
		watcher:    watcher,
	}, nil
}

// Registry exposes the thread registry for processes embedding the server.
func (s *Server) Registry() *threads.Registry { return s.registry }

// Engine exposes the rule engine for processes embedding the server.
func (s *Server) Engine() *rules.Engine { return s.engine }

// Addr is the bound listener address.
func (s *Server) Addr() string {
	if s == nil || s.httpLn == nil {
		return ""
	}
	return s.httpLn.Addr().String()
}

func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			return err
		}
	}

	for _, name := range s.cfg.Server.Workers {
		if err := s.registry.StartManaged(ctx, name, threads.Park); err != nil {
			s.logger.Error("spawn worker thread", "name", name, "error", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(s.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info("server listening", "addr", s.Addr())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
}

func (s *Server) Close() error {
	if s.httpLn != nil {
		_ = s.httpLn.Close()
		s.httpLn = nil
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	return nil
}
