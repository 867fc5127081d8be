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


package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/webhost/internal/commands/shared"
	"github.com/tombee/webhost/internal/config"
)

func useConfigFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	shared.SetConfigPathForTest(path)
	t.Cleanup(func() { shared.SetConfigPathForTest("") })
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewConfigCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigSetGet(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := useConfigFile(t, name)

			out, err := execute(t, "set", "server.port", "8443")
			require.NoError(t, err)
			assert.Contains(t, out, "Set server.port")
			assert.FileExists(t, path)

			out, err = execute(t, "get", "server.port")
			require.NoError(t, err)
			assert.Equal(t, "8443\n", out)

			loaded, err := config.LoadSettings(path)
			require.NoError(t, err)
			assert.Equal(t, 8443, loaded.Server.Port)
		})
	}
}

func TestConfigSetRejected(t *testing.T) {
	path := useConfigFile(t, "config.yaml")
	_, err := execute(t, "set", "server.port", "9000")
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	tests := []struct {
		name     string
		key      string
		value    string
		wantCode int
	}{
		{"not a number", "server.port", "abc", shared.ExitFailure},
		{"out of range", "server.port", "70000", shared.ExitFailure},
		{"bad bool", "server.tls", "maybe", shared.ExitFailure},
		{"unknown key", "server.colour", "blue", shared.ExitInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "set", tt.key, tt.value)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, shared.ExitCodeFor(err))

			after, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, string(before), string(after))
		})
	}
}

func TestConfigShow(t *testing.T) {
	useConfigFile(t, "config.yaml")
	_, err := execute(t, "set", "server.admin_password", "hunter2")
	require.NoError(t, err)

	out, err := execute(t, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "server.admin_password = [REDACTED]")
	assert.Contains(t, out, "server.bind_mode = loopback")
	assert.NotContains(t, out, "hunter2")

	out, err = execute(t, "show", "--yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "hunter2")
}

func TestConfigPath(t *testing.T) {
	path := useConfigFile(t, "custom.yaml")

	out, err := execute(t, "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestValidateConfig(t *testing.T) {
	root := t.TempDir()
	base := func() *config.Config {
		cfg := config.Default()
		cfg.StorageRoot = root
		return cfg
	}

	t.Run("defaults are clean", func(t *testing.T) {
		result := validateConfig(base())
		assert.True(t, result.Valid)
		assert.Empty(t, result.Warnings)
	})

	t.Run("tls without keystore", func(t *testing.T) {
		cfg := base()
		cfg.Server.TLS = true
		result := validateConfig(cfg)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "keystore")
	})

	t.Run("root app without archive", func(t *testing.T) {
		cfg := base()
		cfg.Server.RootApp = "shop"
		result := validateConfig(cfg)
		assert.True(t, result.Valid)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "shop.war")
	})

	t.Run("exposed without password", func(t *testing.T) {
		cfg := base()
		cfg.Server.BindMode = config.BindNonLoopback
		cfg.Control.TCPAddr = "0.0.0.0:7070"
		cfg.Control.AllowRemote = true
		result := validateConfig(cfg)
		assert.True(t, result.Valid)
		assert.Len(t, result.Warnings, 2)
	})
}

func TestValidateCommandStrict(t *testing.T) {
	path := useConfigFile(t, "config.yaml")
	cfg := config.Default()
	cfg.StorageRoot = t.TempDir()
	cfg.Server.RootApp = "shop"
	require.NoError(t, config.SaveSettings(path, cfg))

	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "Warnings:")

	_, err = execute(t, "validate", "--strict")
	require.Error(t, err)
	assert.Equal(t, shared.ExitFailure, shared.ExitCodeFor(err))
}
