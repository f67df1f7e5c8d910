// Package store defines the audit event sinks.
package store

import (
	"context"

	"github.com/rttune/rttune/pkg/types"
)

type EventStore interface {
	AppendEvent(ctx context.Context, ev types.Event) error
	QueryEvents(ctx context.Context, q types.EventQuery) ([]types.Event, error)
	Close() error
}
