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


package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/webhost/internal/commands/shared"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "webhost", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.True(t, cmd.SilenceErrors)

	for _, name := range []string{"verbose", "quiet", "json", "config"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2025-12-22")
	defer SetVersion("dev", "unknown", "unknown")

	v, c, b := GetVersion()
	assert.Equal(t, "1.2.3", v)
	assert.Equal(t, "abc123", c)
	assert.Equal(t, "2025-12-22", b)
}

func newTestRoot() *cobra.Command {
	root := NewRootCommand()
	apps := &cobra.Command{Use: "apps", Short: "Manage deployed web apps", Aliases: []string{"app"}}
	remove := &cobra.Command{Use: "remove NAME", Short: "Delete an app", RunE: func(*cobra.Command, []string) error { return nil }}
	remove.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	apps.AddCommand(remove)
	root.AddCommand(apps)
	root.AddCommand(&cobra.Command{Use: "hidden", Hidden: true})
	return root
}

func TestHelpCommandJSON(t *testing.T) {
	root := newTestRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"help", "--json"})
	defer shared.SetJSONForTest(false)

	require.NoError(t, root.Execute())

	var resp HelpResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "help", resp.JSONResponse.Command)
	assert.True(t, resp.Success)

	var names []string
	for _, c := range resp.Commands {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "apps")
	assert.NotContains(t, names, "hidden")
	assert.Len(t, resp.GlobalFlags, 4)
}

func TestHelpCommandForSubcommand(t *testing.T) {
	root := newTestRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"help", "apps", "--json"})
	defer shared.SetJSONForTest(false)

	require.NoError(t, root.Execute())

	var resp HelpResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.NotNil(t, resp.Target)
	assert.Equal(t, "help apps", resp.JSONResponse.Command)
	assert.Equal(t, "apps", resp.Target.Name)
	assert.Equal(t, []string{"remove"}, resp.Target.Subcommands)
	assert.Equal(t, []string{"app"}, resp.Target.Aliases)
}

func TestExtractCommandMetadataFlags(t *testing.T) {
	root := newTestRoot()
	remove, _, err := root.Find([]string{"apps", "remove"})
	require.NoError(t, err)

	meta := extractCommandMetadata(remove)
	require.Len(t, meta.Flags, 1)
	assert.Equal(t, "yes", meta.Flags[0].Name)
	assert.Equal(t, "y", meta.Flags[0].Shorthand)
	assert.Equal(t, "false", meta.Flags[0].Default)
}
