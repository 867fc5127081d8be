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


// Package daemontest runs a real webhostd in-process for command tests.
package daemontest

import (
	"archive/zip"
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tombee/webhost/internal/config"
	"github.com/tombee/webhost/internal/daemon"
	"github.com/tombee/webhost/internal/log"
)

// Instance is a running daemon backed by a temporary storage root.
type Instance struct {
	Config     *config.Config
	ConfigPath string
	Daemon     *daemon.Daemon
}

// Config returns a config rooted in a fresh temp dir, listening on a
// socket inside it. The web port is a free loopback port since a zero
// port in a saved file is replaced by the default on reload.
func Config(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StorageRoot = t.TempDir()
	cfg.Control.SocketPath = filepath.Join(cfg.StorageRoot, "ctl.sock")
	cfg.Server.Port = FreePort(t)
	return cfg
}

// FreePort returns a loopback TCP port that was free a moment ago.
func FreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// Start writes cfg (or a fresh Config) to a YAML file and runs a daemon
// against it until the test ends.
func Start(t *testing.T, cfg *config.Config) *Instance {
	t.Helper()
	if cfg == nil {
		cfg = Config(t)
	}

	path := filepath.Join(cfg.StorageRoot, "config.yaml")
	require.NoError(t, config.SaveSettings(path, cfg))

	d, err := daemon.New(cfg, daemon.Options{
		Version:    "test",
		ConfigPath: path,
		Logger:     log.Discard(),
	})
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

	t.Cleanup(func() {
		cancel()
		<-errCh
		_ = d.Shutdown(context.Background())
	})

	return &Instance{Config: cfg, ConfigPath: path, Daemon: d}
}

// Archive builds a zip holding files.
func Archive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// ServeFiles serves the given path to body mapping over HTTP and returns
// the base URL.
func ServeFiles(t *testing.T, files map[string][]byte) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}
