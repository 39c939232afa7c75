// Package client provides an HTTP client for the tool server that
// tracks the server-issued session token automatically.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/pkg/errors"

	"github.com/forgeline/sitesmith/pkg/types"
)

// Options represents client configuration options
type Options struct {
	// BaseURL of the server, e.g. http://localhost:8080
	BaseURL string
	// HTTPClient to use; defaults to http.DefaultClient
	HTTPClient *http.Client
	// AuthToken is sent as a Bearer token when non-empty
	AuthToken string
}

// Client talks to a tool server over the HTTP transport. The first
// request runs without a session id; the id issued by the server is
// captured from the response header and echoed on every later call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string

	mu        sync.Mutex
	sessionID string
}

// New creates a new client
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: httpClient,
		authToken:  opts.AuthToken,
	}, nil
}

// SessionID returns the current session token, empty before the first
// successful call.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Reset drops the current session token. The next call starts a fresh
// session; use after an UnknownSession error.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = ""
}

// Initialize performs the session handshake
func (c *Client) Initialize(ctx context.Context, info types.Implementation) (*types.InitializeResponse, error) {
	var resp types.InitializeResponse
	err := c.call(ctx, types.MethodInitialize, types.InitializeRequest{
		ProtocolVersion: "2024-11-05",
		ClientInfo:      info,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping checks that the session is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, types.MethodPing, nil, nil)
}

// ListTools returns the server's registered tools
func (c *Client) ListTools(ctx context.Context) ([]types.ToolInfo, error) {
	var tools []types.ToolInfo
	if err := c.call(ctx, types.MethodListTools, nil, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// CallTool invokes a named tool
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	var result map[string]interface{}
	err := c.call(ctx, types.MethodCallTool, types.CallToolRequest{Name: name, Args: args}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close terminates the session on the server. Safe to call without a
// session.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	id := c.sessionID
	c.sessionID = ""
	c.mu.Unlock()
	if id == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/mcp", nil)
	if err != nil {
		return errors.Wrap(err, "failed to build close request")
	}
	req.Header.Set(types.HeaderSessionID, id)
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "close request failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return errors.Wrap(err, "failed to encode params")
		}
		raw = data
	}
	body, err := json.Marshal(types.Request{Method: method, Params: raw})
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	if c.sessionID != "" {
		req.Header.Set(types.HeaderSessionID, c.sessionID)
	}
	c.mu.Unlock()
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get(types.HeaderSessionID); sid != "" {
		c.mu.Lock()
		c.sessionID = sid
		c.mu.Unlock()
	}

	var envelope struct {
		Result json.RawMessage `json:"result,omitempty"`
		Error  *types.Error    `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return errors.Wrap(err, "failed to decode result")
		}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}
