// Package composite fans event appends out to every configured sink and
// serves queries from the primary (queryable) store.
package composite

import (
	"context"
	"fmt"

	"github.com/rttune/rttune/internal/store"
	"github.com/rttune/rttune/pkg/types"
)

type Store struct {
	primary store.EventStore
	others  []store.EventStore
}

func New(primary store.EventStore, others ...store.EventStore) *Store {
	return &Store{primary: primary, others: others}
}

func (s *Store) AppendEvent(ctx context.Context, ev types.Event) error {
	var firstErr error
	if s.primary != nil {
		if err := s.primary.AppendEvent(ctx, ev); err != nil {
			firstErr = err
		}
	}
	for _, o := range s.others {
		if err := o.AppendEvent(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Store) QueryEvents(ctx context.Context, q types.EventQuery) ([]types.Event, error) {
	if s.primary == nil {
		return nil, fmt.Errorf("no queryable event store configured")
	}
	return s.primary.QueryEvents(ctx, q)
}

func (s *Store) Close() error {
	var firstErr error
	if s.primary != nil {
		if err := s.primary.Close(); err != nil {
			firstErr = err
		}
	}
	for _, o := range s.others {
		if err := o.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
