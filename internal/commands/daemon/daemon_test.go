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
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/webhost/internal/client"
	"github.com/tombee/webhost/internal/commands/shared"
	"github.com/tombee/webhost/internal/config"
	"github.com/tombee/webhost/internal/lifecycle"
	"github.com/tombee/webhost/internal/testing/daemontest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// offline writes a config whose daemon is not running.
func offline(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(client.HostEnv, "")
	cfg := daemontest.Config(t)
	path := filepath.Join(cfg.StorageRoot, "config.yaml")
	require.NoError(t, config.SaveSettings(path, cfg))
	shared.SetConfigPathForTest(path)
	t.Cleanup(func() { shared.SetConfigPathForTest("") })
	return cfg
}

func TestDaemonStatusAndPing(t *testing.T) {
	t.Setenv(client.HostEnv, "")
	inst := daemontest.Start(t, nil)
	shared.SetConfigPathForTest(inst.ConfigPath)
	defer shared.SetConfigPathForTest("")

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "healthy")
	assert.Contains(t, out, strconv.Itoa(os.Getpid()))
	assert.Contains(t, out, inst.Config.Control.SocketPath)

	out, err = execute(t, "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "webhostd is running")

	out, err = execute(t, "start")
	require.NoError(t, err)
	assert.Contains(t, out, "already running")
}

func TestDaemonStatusNotRunning(t *testing.T) {
	offline(t)

	_, err := execute(t, "status")
	require.Error(t, err)
	assert.Equal(t, shared.ExitDaemonUnavailable, shared.ExitCodeFor(err))
}

func TestDaemonStop(t *testing.T) {
	t.Run("no pid file", func(t *testing.T) {
		offline(t)

		out, err := execute(t, "stop")
		require.NoError(t, err)
		assert.Contains(t, out, "not running (no PID file)")
	})

	t.Run("stale pid file", func(t *testing.T) {
		cfg := offline(t)
		child := exec.Command("true")
		require.NoError(t, child.Run())
		require.NoError(t, os.WriteFile(cfg.PIDPath(), []byte(fmt.Sprintf("%d\n", child.Process.Pid)), 0o600))

		out, err := execute(t, "stop")
		require.NoError(t, err)
		assert.Contains(t, out, "stale PID file")
	})

	t.Run("refuses other processes", func(t *testing.T) {
		cfg := offline(t)
		pf := lifecycle.NewPIDFile(cfg.PIDPath())
		require.NoError(t, pf.Acquire(os.Getpid()))
		defer pf.Release()

		_, err := execute(t, "stop")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not webhostd")
	})
}

func TestFindDaemonBinary(t *testing.T) {
	_, err := findDaemonBinary(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCodeFor(err))

	bin := filepath.Join(t.TempDir(), "webhostd")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	got, err := findDaemonBinary(bin)
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

func TestDaemonArgs(t *testing.T) {
	shared.SetConfigPathForTest("/etc/webhost/config.yaml")
	defer shared.SetConfigPathForTest("")

	assert.Equal(t, []string{"--config", "/etc/webhost/config.yaml"}, daemonArgs())
}
