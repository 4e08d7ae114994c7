package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/malbeclabs/routeman/internal/routes"
	"github.com/malbeclabs/routeman/internal/server"
)

// Client talks to the routemand HTTP API.
type Client struct {
	log   *slog.Logger
	base  string
	token string
	http  *http.Client
}

func NewClient(log *slog.Logger, serverURL, token string) *Client {
	return &Client{
		log:   log,
		base:  strings.TrimRight(serverURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ListRoutes fetches the stored routes and the kernel routing table.
func (c *Client) ListRoutes(ctx context.Context) (*server.RoutesResponse, error) {
	raw, err := c.do(ctx, http.MethodGet, server.RoutesPath, nil)
	if err != nil {
		return nil, err
	}
	var out server.RoutesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// DeletedRoutes fetches the deletion history.
func (c *Client) DeletedRoutes(ctx context.Context) (*server.DeletedRoutesResponse, error) {
	raw, err := c.do(ctx, http.MethodGet, server.DeletedRoutesPath, nil)
	if err != nil {
		return nil, err
	}
	var out server.DeletedRoutesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// AddRoute schedules a route and returns the server's message.
func (c *Client) AddRoute(ctx context.Context, req routes.RouteRequest) (string, error) {
	return c.message(ctx, http.MethodPut, server.RouteItemPath, req)
}

// UpdateRoute patches an existing route and returns the server's message.
func (c *Client) UpdateRoute(ctx context.Context, req routes.RouteUpdate) (string, error) {
	return c.message(ctx, http.MethodPatch, server.RouteItemPath, req)
}

// DeleteRoute removes a route and returns the server's message.
func (c *Client) DeleteRoute(ctx context.Context, to string) (string, error) {
	return c.message(ctx, http.MethodDelete, server.RouteItemPath, server.RouteRef{To: to})
}

// PauseRoute pauses an active route and returns the server's message.
func (c *Client) PauseRoute(ctx context.Context, to string) (string, error) {
	return c.message(ctx, http.MethodPatch, server.RoutePausePath, server.RouteRef{To: to})
}

// ActivateRoute re-activates a paused route and returns the server's
// message.
func (c *Client) ActivateRoute(ctx context.Context, to string) (string, error) {
	return c.message(ctx, http.MethodPatch, server.RouteActivatePath, server.RouteRef{To: to})
}

// Raw sends the request and returns the raw response body, for --json
// output.
func (c *Client) Raw(ctx context.Context, method, path string, body any) ([]byte, error) {
	return c.do(ctx, method, path, body)
}

func (c *Client) message(ctx context.Context, method, path string, body any) (string, error) {
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return "", err
	}
	var out server.MessageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Message, nil
}

// do sends one API request and returns the raw response body. Error
// statuses are turned into errors carrying the server's message.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	url := c.base + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug("sending request", "method", method, "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	c.log.Debug("received response", "status", resp.StatusCode, "bytes", len(raw))

	if resp.StatusCode >= 400 {
		var apiErr server.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("request failed: status=%d body=%s", resp.StatusCode, raw)
	}
	return raw, nil
}
