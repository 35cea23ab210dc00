package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goodtune/timekeeper/internal/usage"
)

// Error is a non-2xx response from the API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Client talks to a running timekeeper daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Status returns the current tracking state.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping sends an activity signal.
func (c *Client) Ping(ctx context.Context, source string) error {
	return c.do(ctx, http.MethodPost, "/api/activity", ActivityRequest{Source: source}, nil)
}

// SetGoal sets the daily goal.
func (c *Client) SetGoal(ctx context.Context, hours, minutes int) (*GoalResponse, error) {
	var resp GoalResponse
	req := GoalRequest{Hours: &hours, Minutes: &minutes}
	if err := c.do(ctx, http.MethodPut, "/api/goal", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History lists finalized days, most recent first.
func (c *Client) History(ctx context.Context) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/api/history", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryFor returns one finalized day.
func (c *Client) HistoryFor(ctx context.Context, day usage.Day) (*HistoryEntryResponse, error) {
	var resp HistoryEntryResponse
	path := fmt.Sprintf("/api/history/%04d-%02d-%02d", day.Year, int(day.Month), day.Day)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach timekeeper at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return &Error{StatusCode: resp.StatusCode, Message: errResp.Message}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
