// Package panel provides a client for the hosting panel application API.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned when the client has no URL or API key.
var ErrNotConfigured = errors.New("panel client not configured")

// Client wraps the panel's application and client APIs.
type Client struct {
	baseURL    string
	apiKey     string
	clientKey  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a panel client. clientKey is only needed for power
// actions and falls back to apiKey when empty.
func NewClient(baseURL, apiKey, clientKey string, timeout time.Duration, logger zerolog.Logger) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout

	if clientKey == "" {
		clientKey = apiKey
	}

	return &Client{
		baseURL:    normalizeBaseURL(baseURL),
		apiKey:     apiKey,
		clientKey:  clientKey,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "panel").Logger(),
	}
}

func normalizeBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base
}

// BaseURL returns the panel address handed to customers.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Configured reports whether the client can make calls.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

// CreateUser creates a panel account.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var resp object[User]
	if err := c.application(ctx, http.MethodPost, "/users", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Attributes, nil
}

// DeleteUser removes a panel account.
func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.application(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil)
}

// CreateServer creates a server owned by req.User.
func (c *Client) CreateServer(ctx context.Context, req CreateServerRequest) (*Server, error) {
	var resp object[Server]
	if err := c.application(ctx, http.MethodPost, "/servers", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Attributes, nil
}

// ServerByExternalID looks a server up by the external id it was created
// with. It returns nil, nil when no server carries that id.
func (c *Client) ServerByExternalID(ctx context.Context, externalID string) (*Server, error) {
	var resp object[Server]
	err := c.application(ctx, http.MethodGet, "/servers/external/"+url.PathEscape(externalID), nil, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &resp.Attributes, nil
}

// GetServer returns a server by its numeric panel id.
func (c *Client) GetServer(ctx context.Context, id int) (*Server, error) {
	var resp object[Server]
	if err := c.application(ctx, http.MethodGet, fmt.Sprintf("/servers/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Attributes, nil
}

// SuspendServer suspends a server.
func (c *Client) SuspendServer(ctx context.Context, id int) error {
	return c.application(ctx, http.MethodPost, fmt.Sprintf("/servers/%d/suspend", id), nil, nil)
}

// UnsuspendServer lifts a suspension.
func (c *Client) UnsuspendServer(ctx context.Context, id int) error {
	return c.application(ctx, http.MethodPost, fmt.Sprintf("/servers/%d/unsuspend", id), nil, nil)
}

// Power sends a power signal (start, stop, restart, kill) through the
// client API. identifier is the server's short identifier.
func (c *Client) Power(ctx context.Context, identifier, signal string) error {
	body := map[string]string{"signal": signal}
	return c.do(ctx, c.clientKey, http.MethodPost, "/api/client/servers/"+url.PathEscape(identifier)+"/power", body, nil)
}

// ListNodes returns the panel nodes. It doubles as a connectivity check.
func (c *Client) ListNodes(ctx context.Context) ([]Node, error) {
	var resp list[Node]
	if err := c.application(ctx, http.MethodGet, "/nodes", nil, &resp); err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(resp.Data))
	for _, n := range resp.Data {
		nodes = append(nodes, n.Attributes)
	}
	return nodes, nil
}

func (c *Client) application(ctx context.Context, method, path string, in, out any) error {
	return c.do(ctx, c.apiKey, method, "/api/application"+path, in, out)
}

func (c *Client) do(ctx context.Context, key, method, path string, in, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("panel request")

	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(method, path, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
