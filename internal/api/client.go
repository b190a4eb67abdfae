package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/banshee-data/roadagent/internal/httputil"
)

// Client talks to a running Server.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient returns a client for the server at baseURL. A nil hc uses
// http.DefaultClient.
func NewClient(baseURL string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = httputil.NewStandardClient(nil)
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// Agents fetches every agent's latest snapshot in the given units; empty
// units means the server default.
func (c *Client) Agents(ctx context.Context, u string) (AgentsResponse, error) {
	path := "/api/agents"
	if u != "" {
		path += "?units=" + url.QueryEscape(u)
	}
	var resp AgentsResponse
	err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &resp)
	return resp, err
}

// SetTunables queues req for the named agent.
func (c *Client) SetTunables(ctx context.Context, agent string, req TunablesRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode tunables: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/api/agents/"+url.PathEscape(agent)+"/tunables", body, http.StatusAccepted, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, want int, out interface{}) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %d: %s", method, path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
