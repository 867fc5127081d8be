// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tombee/webhost/internal/config"
	"github.com/tombee/webhost/internal/daemon/api"
	"github.com/tombee/webhost/internal/daemon/auth"
	"github.com/tombee/webhost/internal/daemon/httputil"
	"github.com/tombee/webhost/pkg/httpclient"
)

// baseURL is a placeholder host; the dialer decides where requests go.
const baseURL = "http://webhostd"

// Client is a client for the webhostd control API.
type Client struct {
	httpClient *http.Client
	endpoint   string

	// jwt is set when requests must carry a bearer token.
	jwt *auth.JWTConfig
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger  *slog.Logger
	timeout time.Duration
}

// WithLogger sets the logger for request logs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithTimeout bounds each request. Deploys download whole archives, so the
// default is generous.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// New creates a client for the control endpoint in cfg. TCPAddr wins over
// SocketPath when both are set. TCP requests carry a bearer token signed
// with cfg.AuthSecret when one is configured.
func New(cfg config.ControlConfig, opts ...Option) (*Client, error) {
	o := clientOptions{timeout: 10 * time.Minute}
	for _, opt := range opts {
		opt(&o)
	}

	network, addr := "unix", cfg.SocketPath
	if cfg.TCPAddr != "" {
		network, addr = "tcp", cfg.TCPAddr
	}
	if addr == "" {
		return nil, fmt.Errorf("no control endpoint configured")
	}

	hc := httpclient.DefaultConfig()
	hc.Timeout = o.timeout
	hc.UserAgent = "webhost-cli/1.0"
	hc.Logger = o.logger
	hc.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
		d := net.Dialer{Timeout: 5 * time.Second}
		return d.DialContext(ctx, network, addr)
	}
	httpClient, err := httpclient.New(hc)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}

	c := &Client{httpClient: httpClient, endpoint: network + "://" + addr}
	if network == "tcp" && cfg.AuthSecret != "" {
		c.jwt = &auth.JWTConfig{Secret: []byte(cfg.AuthSecret)}
	}
	return c, nil
}

// Endpoint describes where the client connects, e.g. "unix:///path".
func (c *Client) Endpoint() string { return c.endpoint }

// HTTPClient returns the underlying client, e.g. for health polling.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// HealthURL is the health endpoint as seen through HTTPClient.
func (c *Client) HealthURL() string { return baseURL + "/v1/health" }

// Health returns the daemon health status.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/v1/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version returns the daemon version information.
func (c *Client) Version(ctx context.Context) (*api.VersionResponse, error) {
	var out api.VersionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/version", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartServer starts the web listener and returns its display address.
func (c *Client) StartServer(ctx context.Context) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.do(ctx, http.MethodPost, "/v1/server/start", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StopServer stops the web listener.
func (c *Client) StopServer(ctx context.Context) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.do(ctx, http.MethodPost, "/v1/server/stop", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the web listener status.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/server/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetLogging turns the access log on or off.
func (c *Client) SetLogging(ctx context.Context, enabled bool) error {
	return c.do(ctx, http.MethodPut, "/v1/server/logging", api.LoggingRequest{Enabled: enabled}, nil)
}

// ListApps returns the registered app prefixes.
func (c *Client) ListApps(ctx context.Context) ([]string, error) {
	var out api.AppsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/apps", nil, &out); err != nil {
		return nil, err
	}
	return out.Apps, nil
}

// Deploy asks the daemon to fetch and deploy an archive.
func (c *Client) Deploy(ctx context.Context, rawURL string) (*api.DeployResponse, error) {
	var out api.DeployResponse
	if err := c.do(ctx, http.MethodPost, "/v1/apps/deploy", api.DeployRequest{URL: rawURL}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rescan deploys archives found on disk and returns the app list.
func (c *Client) Rescan(ctx context.Context) ([]string, error) {
	var out api.AppsResponse
	if err := c.do(ctx, http.MethodPost, "/v1/apps/rescan", nil, &out); err != nil {
		return nil, err
	}
	return out.Apps, nil
}

// AppInfo describes one app.
func (c *Client) AppInfo(ctx context.Context, name string) (*api.AppInfoResponse, error) {
	var out api.AppInfoResponse
	if err := c.do(ctx, http.MethodGet, appPath(name, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StopApp stops an app's handler.
func (c *Client) StopApp(ctx context.Context, name string) ([]string, error) {
	var out api.AppsResponse
	if err := c.do(ctx, http.MethodPost, appPath(name, "/stop"), nil, &out); err != nil {
		return nil, err
	}
	return out.Apps, nil
}

// RedeployApp redeploys an app from its archive.
func (c *Client) RedeployApp(ctx context.Context, name string) ([]string, error) {
	var out api.AppsResponse
	if err := c.do(ctx, http.MethodPost, appPath(name, "/redeploy"), nil, &out); err != nil {
		return nil, err
	}
	return out.Apps, nil
}

// RemoveApp deletes an app.
func (c *Client) RemoveApp(ctx context.Context, name string) ([]string, error) {
	var out api.AppsResponse
	if err := c.do(ctx, http.MethodDelete, appPath(name, ""), nil, &out); err != nil {
		return nil, err
	}
	return out.Apps, nil
}

func appPath(name, suffix string) string {
	return "/v1/apps/" + url.PathEscape(name) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.jwt != nil {
		token, err := auth.GenerateJWT("webhost-cli", auth.DefaultTokenTTL, *c.jwt)
		if err != nil {
			return fmt.Errorf("failed to sign control token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isUnreachable(err) {
			return &DaemonNotRunningError{Endpoint: c.endpoint, Err: err}
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: resp.Header.Get(api.RequestIDHeader)}
		var er httputil.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er); err == nil {
			apiErr.Message = er.Error
			apiErr.Type = er.Type
			apiErr.Hint = er.Suggestion
		} else {
			apiErr.Message = resp.Status
		}
		if resp.StatusCode == http.StatusUnauthorized && apiErr.Hint == "" {
			apiErr.Hint = "Set control.auth_secret or WEBHOST_AUTH_SECRET to the daemon's secret"
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
