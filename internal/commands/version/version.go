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


package version

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/webhost/internal/commands/shared"
	"github.com/tombee/webhost/internal/daemon/api"
)

// VersionInfo contains version metadata
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

type versionOutput struct {
	shared.JSONResponse
	Client VersionInfo          `json:"client"`
	Daemon *api.VersionResponse `json:"daemon,omitempty"`
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var clientOnly bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version, commit hash, and build date for webhost, and for
webhostd when it is reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd, clientOnly)
		},
	}

	cmd.Flags().BoolVar(&clientOnly, "client", false, "Only show the CLI version")
	return cmd
}

func runVersion(cmd *cobra.Command, clientOnly bool) error {
	v, c, b := shared.GetVersion()
	out := versionOutput{
		JSONResponse: shared.NewJSONResponse("version"),
		Client:       VersionInfo{Version: v, Commit: c, BuildDate: b},
	}

	if !clientOnly {
		out.Daemon = daemonVersion(cmd.Context())
	}

	if shared.GetJSON() {
		return shared.EmitJSON(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "webhost version %s\n", out.Client.Version)
	fmt.Fprintf(w, "  commit:     %s\n", out.Client.Commit)
	fmt.Fprintf(w, "  build date: %s\n", out.Client.BuildDate)

	if clientOnly {
		return nil
	}
	if out.Daemon == nil {
		fmt.Fprintln(w, shared.Muted.Render("webhostd: not reachable"))
		return nil
	}
	fmt.Fprintf(w, "webhostd version %s\n", out.Daemon.Version)
	fmt.Fprintf(w, "  commit:     %s\n", out.Daemon.Commit)
	fmt.Fprintf(w, "  go:         %s %s/%s\n", out.Daemon.GoVersion, out.Daemon.OS, out.Daemon.Arch)
	return nil
}

// daemonVersion asks webhostd for its version. Errors mean "unknown".
func daemonVersion(ctx context.Context) *api.VersionResponse {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := shared.NewClient()
	if err != nil {
		return nil
	}
	v, err := c.Version(ctx)
	if err != nil {
		shared.Logger().Debug("daemon version unavailable", "error", err)
		return nil
	}
	return v
}
