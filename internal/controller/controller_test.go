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

package controller

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/webhost/internal/config"
	"github.com/tombee/webhost/internal/log"
	"github.com/tombee/webhost/internal/netbind"
)

type fixedSelector struct {
	res   netbind.Result
	calls int
}

func (s *fixedSelector) Select(context.Context, string, netbind.Mode) (netbind.Result, error) {
	s.calls++
	return s.res, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StorageRoot = t.TempDir()
	cfg.Server.Port = 0
	return cfg
}

func newController(t *testing.T, cfg *config.Config, opts Options) *Controller {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Selector == nil {
		opts.Selector = &fixedSelector{res: netbind.Result{BindAddr: "127.0.0.1", Display: "127.0.0.1"}}
	}
	c, err := New(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func archiveBytes(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("page.html")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestController_StartStop(t *testing.T) {
	c := newController(t, testConfig(t), Options{})
	require.NoError(t, c.Init(context.Background()))
	assert.Equal(t, StatusStopped, c.Status())

	display, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", display)
	assert.Equal(t, StatusRunning, c.Status())

	addr := c.Addr()
	require.NotNil(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/settings", addr))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "status = running")
	assert.Contains(t, string(body), "server.port = 0")

	// a second start only refreshes settings
	_, err = c.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, addr.String(), c.Addr().String())

	require.NoError(t, c.Stop())
	assert.Equal(t, StatusStopped, c.Status())
	assert.Nil(t, c.Addr())

	_, err = net.Dial("tcp", addr.String())
	assert.Error(t, err)

	// stopping twice is harmless
	require.NoError(t, c.Stop())
}

func TestController_StopRightAfterStart(t *testing.T) {
	c := newController(t, testConfig(t), Options{})
	require.NoError(t, c.Init(context.Background()))

	for i := 0; i < 20; i++ {
		_, err := c.Start(context.Background())
		require.NoError(t, err)

		stopped := make(chan error, 1)
		go func() { stopped <- c.Stop() }()
		select {
		case err := <-stopped:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatalf("iteration %d: Stop did not return (status=%s)", i, c.Status())
		}
		assert.Equal(t, StatusStopped, c.Status())
		assert.Nil(t, c.Addr())
	}
}

func TestController_StartListenFailure(t *testing.T) {
	c := newController(t, testConfig(t), Options{
		Listen: func(string, int, *tls.Config) (net.Listener, error) {
			return nil, errors.New("address in use")
		},
	})

	_, err := c.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusErrored, c.Status())
}

func TestController_StartMissingKeystore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.TLS = true
	c := newController(t, cfg, Options{})

	_, err := c.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusErrored, c.Status())
}

func TestController_StartReloadsSettings(t *testing.T) {
	cfg := testConfig(t)
	sel := &fixedSelector{res: netbind.Result{BindAddr: "127.0.0.1", Display: "host.example"}}
	reloads := 0
	c := newController(t, cfg, Options{
		Selector: sel,
		Reload: func() (*config.Config, error) {
			reloads++
			fresh := *cfg
			fresh.Server.AdminPassword = "secret"
			return &fresh, nil
		},
	})

	display, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "host.example", display)
	assert.Equal(t, 1, reloads)
	assert.Equal(t, 1, sel.calls)
	assert.Equal(t, "secret", c.Config().Server.AdminPassword)

	resp, err := http.Get(fmt.Sprintf("http://%s/settings", c.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestController_SetLogging(t *testing.T) {
	cfg := testConfig(t)
	c := newController(t, cfg, Options{})

	require.NoError(t, c.SetLogging(true))
	assert.True(t, c.Engine().AccessLogEnabled())

	entries, err := os.ReadDir(cfg.LogDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^access-\d+\.log$`, entries[0].Name())

	// enabling again keeps the same file
	require.NoError(t, c.SetLogging(true))
	entries, err = os.ReadDir(cfg.LogDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, c.SetLogging(false))
	assert.False(t, c.Engine().AccessLogEnabled())
}

func TestController_DeployFromURL(t *testing.T) {
	data := archiveBytes(t, "fetched")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.war" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	c := newController(t, testConfig(t), Options{})

	assert.Empty(t, c.DeployFromURL(context.Background(), srv.URL+"/shop.war"))
	assert.Equal(t, []string{"/shop/*"}, c.ListApps())

	rec := httptest.NewRecorder()
	c.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shop/page.html", nil))
	assert.Equal(t, "fetched", rec.Body.String())

	msg := c.DeployFromURL(context.Background(), srv.URL+"/notes.txt")
	assert.Contains(t, msg, "Invalid extension")

	assert.NotEmpty(t, c.DeployFromURL(context.Background(), srv.URL+"/missing.war"))
	assert.NotEmpty(t, c.DeployFromURL(context.Background(), "ftp://example.com/a.war"))
	assert.Equal(t, []string{"/shop/*"}, c.ListApps())
}

func TestController_AppCommands(t *testing.T) {
	cfg := testConfig(t)
	c := newController(t, cfg, Options{})
	require.NoError(t, os.WriteFile(filepath.Join(cfg.WebappsDir(), "blog.war"), archiveBytes(t, "blog"), 0o644))

	assert.Equal(t, []string{"/blog/*"}, c.RescanApps(context.Background()))

	info, ok := c.AppInfo("/blog/*")
	require.True(t, ok)
	assert.NotEmpty(t, info)

	_, ok = c.AppInfo("nope")
	assert.False(t, ok)

	// stop unregisters the handler but leaves the archive for a later redeploy
	apps, err := c.StopApp(context.Background(), "/blog")
	require.NoError(t, err)
	assert.Empty(t, apps)
	assert.FileExists(t, filepath.Join(cfg.WebappsDir(), "blog.war"))

	rec := httptest.NewRecorder()
	c.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blog/page.html", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, ok = c.AppInfo("blog")
	assert.False(t, ok)

	apps, err = c.RedeployApp(context.Background(), "blog")
	require.NoError(t, err)
	assert.Equal(t, []string{"/blog/*"}, apps)

	rec = httptest.NewRecorder()
	c.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blog/page.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, c.RemoveApp(context.Background(), "blog"))
	assert.Empty(t, c.ListApps())
	assert.NoFileExists(t, filepath.Join(cfg.WebappsDir(), "blog.war"))

	// removing again is only logged
	require.NoError(t, c.RemoveApp(context.Background(), "blog"))

	_, err = c.StopApp(context.Background(), "../etc")
	assert.Error(t, err)
}

func TestController_RootStatic(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.RootApp = config.RootStatic
	require.NoError(t, os.MkdirAll(cfg.WWWDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.WWWDir(), "hello.txt"), []byte("hi"), 0o644))

	c := newController(t, cfg, Options{})
	require.NoError(t, c.Init(context.Background()))

	rec := httptest.NewRecorder()
	c.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
}

func TestController_InitBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Apps.RescanSchedule = "not a schedule"
	c := newController(t, cfg, Options{})

	err := c.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apps.rescan_schedule")
}
