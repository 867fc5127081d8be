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

package daemon

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/webhost/internal/config"
	"github.com/tombee/webhost/internal/daemon/api"
	"github.com/tombee/webhost/internal/lifecycle"
	"github.com/tombee/webhost/internal/log"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StorageRoot = t.TempDir()
	cfg.Control.SocketPath = filepath.Join(cfg.StorageRoot, "ctl.sock")
	cfg.Server.Port = 0
	return cfg
}

func socketClient(path string) *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", path)
			},
		},
	}
}

func startDaemon(t *testing.T, cfg *config.Config) (*Daemon, context.CancelFunc, chan error) {
	t.Helper()
	d, err := New(cfg, Options{Version: "test", Logger: log.Discard()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	select {
	case <-d.Ready():
	case err := <-errCh:
		cancel()
		t.Fatalf("daemon did not start: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("daemon did not become ready")
	}
	return d, cancel, errCh
}

func TestDaemon_StartShutdown(t *testing.T) {
	cfg := testConfig(t)
	d, cancel, errCh := startDaemon(t, cfg)

	assert.FileExists(t, cfg.PIDPath())
	require.NotNil(t, d.Addr())

	client := socketClient(cfg.Control.SocketPath)

	resp, err := client.Get("http://webhostd/v1/health")
	require.NoError(t, err)
	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "healthy", health.Status)
	assert.NotEmpty(t, resp.Header.Get(api.RequestIDHeader))

	resp, err = client.Get("http://webhostd/v1/server/status")
	require.NoError(t, err)
	var status api.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, 0, status.Status)

	resp, err = client.Get("http://webhostd/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-errCh)
	require.NoError(t, d.Shutdown(context.Background()))

	assert.NoFileExists(t, cfg.PIDPath())
	assert.NoFileExists(t, cfg.Control.SocketPath)

	// shutting down twice is harmless
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDaemon_SecondInstanceRefused(t *testing.T) {
	cfg := testConfig(t)
	d, cancel, errCh := startDaemon(t, cfg)
	defer func() {
		cancel()
		<-errCh
		_ = d.Shutdown(context.Background())
	}()

	other := *cfg
	other.Control.SocketPath = filepath.Join(cfg.StorageRoot, "other.sock")
	second, err := New(&other, Options{Logger: log.Discard()})
	require.NoError(t, err)

	err = second.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lifecycle.ErrPIDFileLocked)
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	applyOverrides(cfg, RunOptions{
		StorageRoot: "/srv/webhost",
		TCPAddr:     "127.0.0.1:9876",
		AllowRemote: true,
		Port:        9090,
	})

	assert.Equal(t, "/srv/webhost", cfg.StorageRoot)
	assert.Equal(t, "127.0.0.1:9876", cfg.Control.TCPAddr)
	assert.True(t, cfg.Control.AllowRemote)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestNew_RemoteControlNeedsSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Control.TCPAddr = "127.0.0.1:0"
	cfg.Control.AllowRemote = true

	_, err := New(cfg, Options{Logger: log.Discard()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth secret")

	cfg.Control.AuthSecret = "0123456789abcdef0123456789abcdef"
	d, err := New(cfg, Options{Logger: log.Discard()})
	require.NoError(t, err)
	assert.NotNil(t, d.router)
}
