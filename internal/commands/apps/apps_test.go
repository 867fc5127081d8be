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


package apps

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/webhost/internal/client"
	"github.com/tombee/webhost/internal/commands/shared"
	"github.com/tombee/webhost/internal/testing/daemontest"
)

func setup(t *testing.T) *daemontest.Instance {
	t.Helper()
	t.Setenv(client.HostEnv, "")
	inst := daemontest.Start(t, nil)
	shared.SetConfigPathForTest(inst.ConfigPath)
	t.Cleanup(func() { shared.SetConfigPathForTest("") })
	return inst
}

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

func TestAppsDeployFromURL(t *testing.T) {
	setup(t)
	base := daemontest.ServeFiles(t, map[string][]byte{
		"/shop.war":  daemontest.Archive(t, map[string]string{"index.html": "shop"}),
		"/notes.txt": []byte("not an archive"),
	})

	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No apps deployed")

	out, err = execute(t, "deploy", base+"/shop.war")
	require.NoError(t, err)
	assert.Contains(t, out, "Deployed")

	out, err = execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "/shop/*")

	_, err = execute(t, "deploy", base+"/notes.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid extension")
	assert.Equal(t, shared.ExitFailure, shared.ExitCodeFor(err))
}

func TestAppsLifecycle(t *testing.T) {
	inst := setup(t)
	dir := inst.Config.WebappsDir()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog.war"),
		daemontest.Archive(t, map[string]string{"page.html": "blog"}), 0o644))

	out, err := execute(t, "rescan")
	require.NoError(t, err)
	assert.Contains(t, out, "/blog/*")

	out, err = execute(t, "info", "blog")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	_, err = execute(t, "info", "nope")
	require.Error(t, err)
	assert.Equal(t, shared.ExitNotFound, shared.ExitCodeFor(err))

	out, err = execute(t, "stop", "/blog/*")
	require.NoError(t, err)
	assert.Contains(t, out, "/blog/*")

	out, err = execute(t, "redeploy", "blog")
	require.NoError(t, err)
	assert.Contains(t, out, "/blog/*")

	out, err = execute(t, "remove", "blog", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "No apps deployed")
	assert.NoFileExists(t, filepath.Join(dir, "blog.war"))
}

func TestAppsRemoveNeedsConfirmation(t *testing.T) {
	inst := setup(t)
	dir := inst.Config.WebappsDir()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	archive := filepath.Join(dir, "blog.war")
	require.NoError(t, os.WriteFile(archive, daemontest.Archive(t, map[string]string{"page.html": "blog"}), 0o644))

	t.Run("non-interactive without --yes", func(t *testing.T) {
		t.Setenv(shared.NonInteractiveEnv, "true")

		_, err := execute(t, "remove", "blog")
		require.Error(t, err)
		assert.Equal(t, shared.ExitInvalidInput, shared.ExitCodeFor(err))
		assert.FileExists(t, archive)
	})
}

func TestAppsListJSON(t *testing.T) {
	setup(t)

	var buf bytes.Buffer
	restore := shared.SetJSONOutputForTest(&buf)
	defer restore()
	shared.SetJSONForTest(true)
	defer shared.SetJSONForTest(false)

	_, err := execute(t, "list")
	require.NoError(t, err)

	var decoded struct {
		Command string   `json:"command"`
		Apps    []string `json:"apps"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "apps list", decoded.Command)
	assert.NotNil(t, decoded.Apps)
	assert.Empty(t, decoded.Apps)
}
