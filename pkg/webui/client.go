// Package webui is the HTTP client for the web UI backend's internal
// API. The backend runs as a separate local process; all calls carry a
// shared bearer secret and any non-2xx status is treated uniformly as a
// failure (the status code only shows up in logs for diagnosis).
package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	healthPath   = "/api/health"
	pendingPath  = "/api/internal/pending"
	ackPath      = "/api/internal/ack"
	deliverPath  = "/api/internal/deliver"
	typingPath   = "/api/internal/typing"
	statusPath   = "/api/internal/container-status"
	snapshotPath = "/api/internal/workspace-snapshot"
)

// Client talks to one web UI backend. It is safe for concurrent use;
// all state is read-only after construction.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL. No per-request
// timeout is imposed; callers rely on transport-level errors and context
// cancellation for failure detection.
func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{},
	}
}

// Health probes backend reachability.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, healthPath, nil)
}

// Pending fetches the next batch of registrations and messages.
func (c *Client) Pending(ctx context.Context) (*PendingBatch, error) {
	var batch PendingBatch
	if err := c.get(ctx, pendingPath, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Ack marks a batch consumed. Nil slices are normalized to empty ones so
// the backend always sees JSON arrays.
func (c *Client) Ack(ctx context.Context, req AckRequest) error {
	if req.MessageIDs == nil {
		req.MessageIDs = []string{}
	}
	if req.ConversationIDs == nil {
		req.ConversationIDs = []string{}
	}
	return c.post(ctx, ackPath, req)
}

// Deliver pushes an agent reply.
func (c *Client) Deliver(ctx context.Context, d Delivery) error {
	return c.post(ctx, deliverPath, d)
}

// Typing pushes a typing indicator update.
func (c *Client) Typing(ctx context.Context, t TypingUpdate) error {
	return c.post(ctx, typingPath, t)
}

// ContainerStatus pushes agent execution status.
func (c *Client) ContainerStatus(ctx context.Context, s ContainerStatus) error {
	return c.post(ctx, statusPath, s)
}

// WorkspaceSnapshot pushes a conversation's workspace file tree.
func (c *Client) WorkspaceSnapshot(ctx context.Context, s WorkspaceSnapshot) error {
	return c.post(ctx, snapshotPath, s)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}
