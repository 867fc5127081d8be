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

// Package api provides the HTTP control API for the daemon.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tombee/webhost/internal/controller"
	"github.com/tombee/webhost/internal/daemon/auth"
	"github.com/tombee/webhost/internal/daemon/httputil"
	"github.com/tombee/webhost/internal/log"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	Version   string
	Commit    string
	BuildDate string

	// RateLimit is the sustained rate of mutating requests per client.
	// Zero disables limiting.
	RateLimit float64
	RateBurst int

	// Auth, when set, requires a bearer token on every route but health.
	Auth *auth.JWTConfig

	Logger *slog.Logger
}

// Backend is the command surface the API exposes.
type Backend interface {
	Start(ctx context.Context) (string, error)
	Stop() error
	Status() controller.Status
	SetLogging(enable bool) error
	ListApps() []string
	DeployFromURL(ctx context.Context, rawURL string) string
	RescanApps(ctx context.Context) []string
	AppInfo(name string) (string, bool)
	StopApp(ctx context.Context, name string) ([]string, error)
	RemoveApp(ctx context.Context, name string) error
	RedeployApp(ctx context.Context, name string) ([]string, error)
}

// Router wraps an http.ServeMux with request IDs, logging and rate limiting.
type Router struct {
	mux     *http.ServeMux
	config  RouterConfig
	backend Backend
	limiter *RateLimiter
	logger  *slog.Logger
	handler http.Handler
}

// NewRouter creates a new HTTP router with all API endpoints.
func NewRouter(cfg RouterConfig, backend Backend) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.FromEnv())
	}
	r := &Router{
		mux:     http.NewServeMux(),
		config:  cfg,
		backend: backend,
		logger:  log.WithComponent(logger, "api"),
	}
	r.limiter = NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit,
		BurstSize:         cfg.RateBurst,
		Enabled:           cfg.RateLimit > 0,
	})

	r.mux.HandleFunc("GET /v1/health", r.handleHealth)
	r.mux.HandleFunc("GET /v1/version", r.handleVersion)

	r.mux.HandleFunc("GET /v1/server/status", r.handleStatus)
	r.mux.Handle("POST /v1/server/start", r.limited(r.handleStart))
	r.mux.Handle("POST /v1/server/stop", r.limited(r.handleStop))
	r.mux.Handle("PUT /v1/server/logging", r.limited(r.handleLogging))

	r.mux.HandleFunc("GET /v1/apps", r.handleListApps)
	r.mux.Handle("POST /v1/apps/deploy", r.limited(r.handleDeploy))
	r.mux.Handle("POST /v1/apps/rescan", r.limited(r.handleRescan))
	r.mux.HandleFunc("GET /v1/apps/{name}", r.handleAppInfo)
	r.mux.Handle("POST /v1/apps/{name}/stop", r.limited(r.handleStopApp))
	r.mux.Handle("POST /v1/apps/{name}/redeploy", r.limited(r.handleRedeployApp))
	r.mux.Handle("DELETE /v1/apps/{name}", r.limited(r.handleRemoveApp))

	// Root endpoint for basic connectivity check
	r.mux.HandleFunc("GET /{$}", r.handleRoot)

	var h http.Handler = r.mux
	if cfg.Auth != nil {
		h = auth.NewMiddleware(*cfg.Auth, r.logger).Wrap(h)
	}
	r.handler = RequestID(log.Middleware(r.logger)(h))
	return r
}

// SetMetricsHandler registers the Prometheus metrics endpoint.
func (r *Router) SetMetricsHandler(handler http.Handler) {
	if handler != nil {
		r.mux.Handle("GET /metrics", handler)
	}
}

// Limiter returns the mutating-route rate limiter.
func (r *Router) Limiter() *RateLimiter {
	return r.limiter
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) limited(fn http.HandlerFunc) http.Handler {
	return r.limiter.Middleware(fn)
}

// handleRoot handles GET / for basic connectivity.
func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"name":    "webhostd",
		"version": r.config.Version,
	})
}
