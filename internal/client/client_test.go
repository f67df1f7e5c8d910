package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rttune/rttune/pkg/types"
)

func TestListRules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v1/rules", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rules": []types.Rule{{Name: "rt", Pattern: "^net"}},
		})
	}))
	defer srv.Close()

	got, err := New(srv.URL).ListRules(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "rt", got[0].Name)
}

func TestAddRuleSendsPayload(t *testing.T) {
	var received types.RuleAddRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	err := New(srv.URL).AddRule(context.Background(), types.RuleAddRequest{
		Name: "rt", Policy: "FIFO", Priority: "50", Pattern: "^net",
	})
	require.NoError(t, err)
	require.Equal(t, "FIFO", received.Policy)
}

func TestErrorIncludesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"pattern is required"}`))
	}))
	defer srv.Close()

	err := New(srv.URL).AddRule(context.Background(), types.RuleAddRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "pattern is required")
}

func TestModifyThreadEscapesRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/v1/threads/netWorker", r.URL.Path)
		_ = json.NewEncoder(w).Encode(types.ThreadInfo{Name: "netWorker", TID: 42})
	}))
	defer srv.Close()

	info, err := New(srv.URL).ModifyThread(context.Background(), "netWorker", types.ThreadModifyRequest{Priority: "+5"})
	require.NoError(t, err)
	require.Equal(t, 42, info.TID)
}
