// Package client is the typed HTTP client the dashboard uses against the
// activity API. It implements the grid engine's Fetcher and Updater
// ports.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kenrgriggs/whatskennethdoing/analytics"
	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
	"github.com/kenrgriggs/whatskennethdoing/grid"
	"github.com/kenrgriggs/whatskennethdoing/modules/activity"
)

// Client talks to the activity API.
type Client struct {
	baseURL string
	viewer  string
	http    *http.Client
}

// Compile-time port checks.
var (
	_ grid.Fetcher = (*Client)(nil)
	_ grid.Updater = (*Client)(nil)
)

// New creates a Client. viewer is sent on every request and resolved to a
// role server-side.
func New(baseURL, viewer string) *Client {
	return &Client{
		baseURL: baseURL,
		viewer:  viewer,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Current fetches the subject's current activity.
func (c *Client) Current(ctx context.Context) (*domain.ActiveRecord, error) {
	var resp struct {
		Current *domain.ActiveRecord `json:"current"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/current", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Current, nil
}

// Start starts a new task or records a closed historical entry.
func (c *Client) Start(ctx context.Context, req activity.StartRequest) (*domain.ActiveRecord, error) {
	var resp struct {
		Active *domain.ActiveRecord `json:"active"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/current", req, &resp); err != nil {
		return nil, err
	}
	return resp.Active, nil
}

// Stop stops the current task.
func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/current/stop", nil, nil)
}

// FetchEvents implements grid.Fetcher.
func (c *Client) FetchEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	path := "/api/v1/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Events []domain.Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// UpdateEvent implements grid.Updater.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, patch grid.Patch) (domain.Event, error) {
	var resp struct {
		Event domain.Event `json:"event"`
	}
	path := "/api/v1/events/" + url.PathEscape(eventID)
	if err := c.do(ctx, http.MethodPatch, path, patch, &resp); err != nil {
		return domain.Event{}, err
	}
	return resp.Event, nil
}

// Suggestions fetches entry-form prefill lists.
func (c *Client) Suggestions(ctx context.Context) (*activity.Suggestions, error) {
	var resp activity.Suggestions
	if err := c.do(ctx, http.MethodGet, "/api/v1/suggestions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Analytics fetches today/week totals.
func (c *Client) Analytics(ctx context.Context) (*analytics.Report, error) {
	var resp analytics.Report
	if err := c.do(ctx, http.MethodGet, "/api/v1/analytics", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// APIError is a non-2xx response with the server's message preserved so
// the grid can show it next to the offending row.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
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
	req.Header.Set("Content-Type", "application/json")
	if c.viewer != "" {
		req.Header.Set("X-Viewer", c.viewer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Code = body.Error
			apiErr.Message = body.Message
		}
		return apiErr
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
