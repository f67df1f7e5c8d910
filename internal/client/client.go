// Package client is the HTTP client for the admin API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rttune/rttune/pkg/types"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) ListRules(ctx context.Context) ([]types.Rule, error) {
	var out struct {
		Rules []types.Rule `json:"rules"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/rules", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Rules, nil
}

func (c *Client) AddRule(ctx context.Context, req types.RuleAddRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/rules", nil, req, nil)
}

func (c *Client) DeleteRule(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/rules/"+url.PathEscape(name), nil, nil, nil)
}

func (c *Client) ListThreads(ctx context.Context) ([]types.ThreadInfo, error) {
	var out struct {
		Threads []types.ThreadInfo `json:"threads"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/threads", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Threads, nil
}

func (c *Client) GetThread(ctx context.Context, ref string) (types.ThreadInfo, error) {
	var out types.ThreadInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/threads/"+url.PathEscape(ref), nil, nil, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) ModifyThread(ctx context.Context, ref string, req types.ThreadModifyRequest) (types.ThreadInfo, error) {
	var out types.ThreadInfo
	if err := c.doJSON(ctx, http.MethodPatch, "/api/v1/threads/"+url.PathEscape(ref), nil, req, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) MemLock(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/memlock", nil, nil, nil)
}

func (c *Client) MemUnlock(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/memlock", nil, nil, nil)
}

func (c *Client) MemLockStatus(ctx context.Context) (bool, error) {
	var out struct {
		Locked bool `json:"locked"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/memlock", nil, nil, &out); err != nil {
		return false, err
	}
	return out.Locked, nil
}

func (c *Client) SearchEvents(ctx context.Context, q url.Values) ([]types.Event, error) {
	var out struct {
		Events []types.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/events", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// StreamEvents opens the server-sent events feed. The caller is
// responsible for closing the returned body.
func (c *Client) StreamEvents(ctx context.Context) (io.ReadCloser, error) {
	u := c.baseURL + "/api/v1/events/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return nil, fmt.Errorf("stream events: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return resp.Body, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(b)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
