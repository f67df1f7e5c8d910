// Package jsonl is the flat-file audit sink: one scheduling event per
// line, size-rotated, meant for tailing and grepping on the box the
// daemon runs on. It is write-only; queries go to sqlite.
package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rttune/rttune/pkg/types"
)

type Store struct {
	path       string
	maxBytes   int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

// line is the on-disk shape of an event. The envelope every event carries
// comes first in a fixed order so the file stays friendly to cut and jq;
// thread, tid and rule are dropped when the event has none.
type line struct {
	Time   time.Time      `json:"ts"`
	Type   string         `json:"type"`
	Thread string         `json:"thread,omitempty"`
	TID    int            `json:"tid,omitempty"`
	Rule   string         `json:"rule,omitempty"`
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

func New(path string, maxSizeMB int, maxBackups int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("jsonl path is empty")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir audit dir: %w", err)
	}

	f, size, err := openAppend(path)
	if err != nil {
		return nil, err
	}

	return &Store{
		path:       path,
		maxBytes:   int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		file:       f,
		size:       size,
	}, nil
}

func openAppend(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("open audit file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat audit file: %w", err)
	}
	return f, st.Size(), nil
}

func (s *Store) AppendEvent(_ context.Context, ev types.Event) error {
	b, err := json.Marshal(line{
		Time:   ev.Timestamp,
		Type:   ev.Type,
		Thread: ev.Thread,
		TID:    ev.TID,
		Rule:   ev.Rule,
		ID:     ev.ID,
		Fields: ev.Fields,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("audit file not open")
	}
	if s.size >= s.maxBytes {
		if err := s.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := s.file.Write(b)
	s.size += int64(n)
	if err != nil {
		return fmt.Errorf("write audit line: %w", err)
	}
	return nil
}

func (s *Store) QueryEvents(_ context.Context, _ types.EventQuery) ([]types.Event, error) {
	return nil, fmt.Errorf("jsonl store does not support queries")
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// rotateLocked shifts audit.jsonl.N up by one, discards the oldest backup
// and reopens a fresh current file.
func (s *Store) rotateLocked() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close for rotate: %w", err)
	}
	s.file = nil

	for i := s.maxBackups - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", s.path, i)
		if _, err := os.Stat(from); err == nil {
			_ = os.Rename(from, fmt.Sprintf("%s.%d", s.path, i+1))
		}
	}
	_ = os.Rename(s.path, s.path+".1")

	f, size, err := openAppend(s.path)
	if err != nil {
		return err
	}
	s.file = f
	s.size = size
	return nil
}
