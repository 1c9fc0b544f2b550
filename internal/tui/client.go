package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/git6keen/Levelset-sub001/internal/models"
	"github.com/git6keen/Levelset-sub001/internal/relay"
	"github.com/git6keen/Levelset-sub001/internal/tools"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the levelset API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no timeout; chat streams last as long as the model talks.
	streamClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: DefaultClientTimeout},
		streamClient: &http.Client{},
	}
}

// CheckHealth fetches the daemon health report.
func (c *Client) CheckHealth(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.getJSON(ctx, "/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ListTasks fetches the active tasks.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.getJSON(ctx, "/tasks", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Catalog fetches the tool catalog text.
func (c *Client) Catalog(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/tools/catalog", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ExecuteTool runs a tool on the daemon. Tool failures come back in the
// result; the error is reserved for transport problems.
func (c *Client) ExecuteTool(ctx context.Context, name string, args map[string]any) (tools.Result, error) {
	var res tools.Result
	body, err := c.do(ctx, http.MethodPost, "/tools/execute", map[string]any{"name": name, "args": args})
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return res, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

// Stream sends one chat turn and calls fn for each frame until the stream
// ends. Cancelling ctx closes the connection.
func (c *Client) Stream(ctx context.Context, req relay.ChatRequest, fn func(relay.Frame)) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}
	return ReadFrames(resp.Body, fn)
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

func (c *Client) do(ctx context.Context, method, path string, data any) ([]byte, error) {
	var reader io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
