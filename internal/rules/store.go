// Package rules implements the thread-rule store and the engine that
// matches rules against thread names and applies the winning scheduling
// attributes.
package rules

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/rttune/rttune/pkg/types"
)

// Store is an ordered, name-keyed collection of rules. One mutex guards
// the whole collection; mutation is rare and matching is cheap, so
// coarse-grained locking is fine.
type Store struct {
	mu     sync.Mutex
	rules  []*Rule
	count  atomic.Int64
	logger *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// Add compiles and appends a rule, atomically replacing any existing rule
// with the same name. Only a pattern that fails to compile aborts the add;
// malformed property specs degrade to unset and are logged.
func (s *Store) Add(name, policySpec, prioritySpec, cpuSpec, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("compile rule %q pattern %q: %w", name, pattern, err)
	}

	r := &Rule{
		fragment: parseFragment(s.logger.With("rule", name), policySpec, prioritySpec, cpuSpec),
		name:     name,
		pattern:  pattern,
		re:       re,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(name)
	s.rules = append(s.rules, r)
	s.count.Store(int64(len(s.rules)))
	return nil
}

// Delete removes the named rule. Silent no-op when absent.
func (s *Store) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(name)
	s.count.Store(int64(len(s.rules)))
}

func (s *Store) deleteLocked(name string) {
	for i, r := range s.rules {
		if r.name == name {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return
		}
	}
}

// ForEachMatching visits, in insertion order, every rule whose pattern
// matches anywhere in threadName. The store lock is held for the whole
// iteration: visit must not call back into Add or Delete.
func (s *Store) ForEachMatching(threadName string, visit func(*Rule)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.matches(threadName) {
			visit(r)
		}
	}
}

// List returns snapshots in insertion order.
func (s *Store) List() []types.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r.snapshot())
	}
	return out
}

// Len returns the number of rules without taking the store lock. The
// thread-start hook reads it as its empty-store fast path, so a slow
// mutation or match iteration must never stall it.
func (s *Store) Len() int {
	return int(s.count.Load())
}
