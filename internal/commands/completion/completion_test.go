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


package completion

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/webhost/internal/client"
	"github.com/tombee/webhost/internal/commands/shared"
	"github.com/tombee/webhost/internal/testing/daemontest"
)

func TestSafeCompletionWrapper(t *testing.T) {
	tests := []struct {
		name string
		fn   func() ([]string, cobra.ShellCompDirective)
		want []string
	}{
		{
			name: "passes results through",
			fn: func() ([]string, cobra.ShellCompDirective) {
				return []string{"/shop/*"}, cobra.ShellCompDirectiveNoFileComp
			},
			want: []string{"/shop/*"},
		},
		{
			name: "nil becomes empty",
			fn: func() ([]string, cobra.ShellCompDirective) {
				return nil, cobra.ShellCompDirectiveDefault
			},
			want: []string{},
		},
		{
			name: "recovers from panic",
			fn: func() ([]string, cobra.ShellCompDirective) {
				panic("boom")
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := SafeCompletionWrapper(tt.fn)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompletionScripts(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			root := &cobra.Command{Use: "webhost"}
			root.AddCommand(NewCommand())
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetArgs([]string{"completion", shell})

			require.NoError(t, root.Execute())
			assert.Contains(t, out.String(), "webhost")
		})
	}
}

func TestCompleteAppNames(t *testing.T) {
	t.Setenv(client.HostEnv, "")
	inst := daemontest.Start(t, nil)
	shared.SetConfigPathForTest(inst.ConfigPath)
	defer shared.SetConfigPathForTest("")
	resetAppCache()
	defer resetAppCache()

	archive := daemontest.Archive(t, map[string]string{"index.html": "hi"})
	require.NoError(t, os.WriteFile(filepath.Join(inst.Config.WebappsDir(), "docs.war"), archive, 0o644))

	c, err := shared.NewClient()
	require.NoError(t, err)
	_, err = c.Rescan(t.Context())
	require.NoError(t, err)

	got, directive := CompleteAppNames(&cobra.Command{}, nil, "/do")
	assert.Equal(t, []string{"/docs/*"}, got)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)

	got, _ = CompleteAppNames(&cobra.Command{}, []string{"/docs/*"}, "")
	assert.Empty(t, got)
}
