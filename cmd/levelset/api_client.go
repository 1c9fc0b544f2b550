package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/git6keen/Levelset-sub001/internal/tools"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// apiClient is the shared HTTP client with timeout.
var apiClient = &http.Client{
	Timeout: DefaultClientTimeout,
}

// apiGet performs a GET request to the API with timeout.
func apiGet(path string) ([]byte, error) {
	resp, err := apiClient.Get(apiAddr + path)
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

// apiPost performs a POST request to the API with timeout.
func apiPost(path string, data any) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	resp, err := apiClient.Post(apiAddr+path, "application/json", bytes.NewReader(jsonData))
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

// executeTool runs a tool on the daemon and turns a failed Result into an
// error carrying its code.
func executeTool(name string, args map[string]any) (any, error) {
	body, err := apiPost("/tools/execute", map[string]any{"name": name, "args": args})
	if err != nil {
		return nil, err
	}

	var res tools.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	if !res.OK {
		return nil, toolError(res.Error)
	}
	return res.Result, nil
}

func toolError(e *tools.Error) error {
	if e == nil {
		return fmt.Errorf("tool failed")
	}
	if len(e.Missing) > 0 {
		return fmt.Errorf("%s: %s %v", e.Code, e.Message, e.Missing)
	}
	if e.Detail != "" {
		return fmt.Errorf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Errorf("%s: %s", e.Code, e.Message)
}

// isDaemonRunning reports whether /health answers at addr.
func isDaemonRunning(addr string) bool {
	client := http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(addr + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
