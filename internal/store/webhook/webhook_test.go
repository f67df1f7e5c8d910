package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rttune/rttune/pkg/types"
)

func TestBatchPostedWhenFull(t *testing.T) {
	var mu sync.Mutex
	var batches [][]types.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "secret", r.Header.Get("X-Token"))
		var batch []types.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		mu.Lock()
		batches = append(batches, batch)
		mu.Unlock()
	}))
	defer srv.Close()

	s, err := New(Options{
		URL:           srv.URL,
		BatchSize:     2,
		FlushInterval: time.Hour,
		Headers:       map[string]string{"X-Token": "secret"},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.AppendEvent(ctx, types.Event{ID: "1", Type: "t"}))
	mu.Lock()
	require.Empty(t, batches)
	mu.Unlock()

	require.NoError(t, s.AppendEvent(ctx, types.Event{ID: "2", Type: "t"}))
	mu.Lock()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	mu.Unlock()
}

func TestCloseFlushesBuffer(t *testing.T) {
	var got int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []types.Event
		_ = json.NewDecoder(r.Body).Decode(&batch)
		got = len(batch)
	}))
	defer srv.Close()

	s, err := New(Options{URL: srv.URL, BatchSize: 100, FlushInterval: time.Hour})
	require.NoError(t, err)
	require.NoError(t, s.AppendEvent(context.Background(), types.Event{ID: "1", Type: "t"}))
	require.NoError(t, s.Close())
	require.Equal(t, 1, got)

	err = s.AppendEvent(context.Background(), types.Event{ID: "2", Type: "t"})
	require.Error(t, err)
}

func TestServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s, err := New(Options{URL: srv.URL, BatchSize: 1})
	require.NoError(t, err)
	err = s.AppendEvent(context.Background(), types.Event{ID: "1", Type: "t"})
	require.Error(t, err)
}

func TestEmptyURLRejected(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
