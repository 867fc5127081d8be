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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/webhost/internal/controller"
	"github.com/tombee/webhost/internal/daemon/auth"
	"github.com/tombee/webhost/internal/daemon/httputil"
	"github.com/tombee/webhost/internal/log"
	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

type fakeBackend struct {
	status   controller.Status
	apps     []string
	startErr error
	logging  bool
	deployed []string
	removed  []string
	calls    []string
}

func (f *fakeBackend) Start(context.Context) (string, error) {
	f.calls = append(f.calls, "start")
	if f.startErr != nil {
		f.status = controller.StatusErrored
		return "", f.startErr
	}
	f.status = controller.StatusRunning
	return "host.example", nil
}

func (f *fakeBackend) Stop() error {
	f.calls = append(f.calls, "stop")
	f.status = controller.StatusStopped
	return nil
}

func (f *fakeBackend) Status() controller.Status { return f.status }

func (f *fakeBackend) SetLogging(enable bool) error {
	f.logging = enable
	return nil
}

func (f *fakeBackend) ListApps() []string { return f.apps }

func (f *fakeBackend) DeployFromURL(_ context.Context, rawURL string) string {
	if !strings.HasSuffix(rawURL, ".war") {
		return "Invalid extension for web archive file"
	}
	f.deployed = append(f.deployed, rawURL)
	f.apps = append(f.apps, "/shop/*")
	return ""
}

func (f *fakeBackend) RescanApps(context.Context) []string {
	f.calls = append(f.calls, "rescan")
	return f.apps
}

func (f *fakeBackend) AppInfo(name string) (string, bool) {
	if name != "shop" {
		return "", false
	}
	return "shop at /shop/*", true
}

func (f *fakeBackend) StopApp(_ context.Context, name string) ([]string, error) {
	if name == "bad" {
		return f.apps, &webhosterrors.ValidationError{Field: "name", Message: "bad"}
	}
	f.calls = append(f.calls, "stop:"+name)
	return f.apps, nil
}

func (f *fakeBackend) RemoveApp(_ context.Context, name string) error {
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeBackend) RedeployApp(_ context.Context, name string) ([]string, error) {
	if name == "broken" {
		return f.apps, &webhosterrors.DeployError{App: name, Reason: "package missing"}
	}
	return f.apps, nil
}

func newTestRouter(backend Backend) *Router {
	return NewRouter(RouterConfig{Version: "1.2.3", Commit: "abc", Logger: log.Discard()}, backend)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestRouter_ServerLifecycle(t *testing.T) {
	b := &fakeBackend{}
	r := newTestRouter(b)

	w := do(t, r, http.MethodGet, "/v1/server/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StatusResponse{Status: 0, State: "stopped"}, decode[StatusResponse](t, w))

	w = do(t, r, http.MethodPost, "/v1/server/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StatusResponse{Status: 1, State: "running", Address: "host.example"}, decode[StatusResponse](t, w))

	w = do(t, r, http.MethodPost, "/v1/server/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[StatusResponse](t, w).Status)

	w = do(t, r, http.MethodGet, "/v1/server/start", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_StartFailure(t *testing.T) {
	b := &fakeBackend{startErr: errors.New("address in use")}
	w := do(t, newTestRouter(b), http.MethodPost, "/v1/server/start", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode[httputil.ErrorResponse](t, w).Error, "address in use")
	assert.Equal(t, controller.StatusErrored, b.status)
}

func TestRouter_Logging(t *testing.T) {
	b := &fakeBackend{}
	r := newTestRouter(b)

	w := do(t, r, http.MethodPut, "/v1/server/logging", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, b.logging)

	w = do(t, r, http.MethodPut, "/v1/server/logging", `{"enabled":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Deploy(t *testing.T) {
	b := &fakeBackend{}
	r := newTestRouter(b)

	w := do(t, r, http.MethodPost, "/v1/apps/deploy", `{"url":"http://files/shop.war"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[DeployResponse](t, w)
	assert.True(t, resp.OK)
	assert.Equal(t, []string{"/shop/*"}, resp.Apps)

	w = do(t, r, http.MethodPost, "/v1/apps/deploy", `{"url":"http://files/notes.txt"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[DeployResponse](t, w)
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Message, "Invalid extension")

	w = do(t, r, http.MethodPost, "/v1/apps/deploy", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Apps(t *testing.T) {
	b := &fakeBackend{apps: []string{"/shop/*"}}
	r := newTestRouter(b)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"list", http.MethodGet, "/v1/apps", http.StatusOK},
		{"rescan", http.MethodPost, "/v1/apps/rescan", http.StatusOK},
		{"info", http.MethodGet, "/v1/apps/shop", http.StatusOK},
		{"info missing", http.MethodGet, "/v1/apps/nope", http.StatusNotFound},
		{"stop", http.MethodPost, "/v1/apps/shop/stop", http.StatusOK},
		{"stop invalid", http.MethodPost, "/v1/apps/bad/stop", http.StatusBadRequest},
		{"redeploy", http.MethodPost, "/v1/apps/shop/redeploy", http.StatusOK},
		{"redeploy broken", http.MethodPost, "/v1/apps/broken/redeploy", http.StatusUnprocessableEntity},
		{"remove", http.MethodDelete, "/v1/apps/shop", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, tt.method, tt.path, "")
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}

	assert.Equal(t, []string{"shop"}, b.removed)
	assert.Contains(t, b.calls, "stop:shop")
	assert.Contains(t, b.calls, "rescan")
}

func TestRouter_AppsEmptyList(t *testing.T) {
	w := do(t, newTestRouter(&fakeBackend{}), http.MethodGet, "/v1/apps", "")
	assert.JSONEq(t, `{"apps":[]}`, w.Body.String())
}

func TestRouter_RequestID(t *testing.T) {
	r := newTestRouter(&fakeBackend{})

	w := do(t, r, http.MethodGet, "/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/v1/version", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "1.2.3", decode[VersionResponse](t, w).Version)
}

func TestRouter_Health(t *testing.T) {
	w := do(t, newTestRouter(&fakeBackend{apps: []string{"/a/*", "/b/*"}}), http.MethodGet, "/v1/health", "")
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "stopped", resp.Checks["server"])
	assert.Equal(t, "2", resp.Checks["apps"])
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(&fakeBackend{})
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/metrics", "").Code)

	r.SetMetricsHandler(promhttp.Handler())
	w := do(t, r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRouter_RateLimit(t *testing.T) {
	b := &fakeBackend{}
	r := NewRouter(RouterConfig{RateLimit: 0.001, RateBurst: 2, Logger: log.Discard()}, b)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/v1/apps/rescan", "").Code)
	}
	w := do(t, r, http.MethodPost, "/v1/apps/rescan", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// reads are never limited
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/v1/apps", "").Code)
}

func TestRouter_BearerAuth(t *testing.T) {
	jwtCfg := auth.JWTConfig{Secret: []byte("0123456789abcdef0123456789abcdef")}
	r := NewRouter(RouterConfig{Auth: &jwtCfg, Logger: log.Discard()}, &fakeBackend{apps: []string{"/shop/*"}})

	w := do(t, r, http.MethodGet, "/v1/apps", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	// health stays open for liveness checks
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/v1/health", "").Code)

	token, err := auth.GenerateJWT("tester", time.Minute, jwtCfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/apps", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"/shop/*"}, decode[AppsResponse](t, w).Apps)

	forged, err := auth.GenerateJWT("tester", time.Minute, auth.JWTConfig{Secret: []byte("another-secret-another-secret-xx")})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/v1/apps/rescan", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
