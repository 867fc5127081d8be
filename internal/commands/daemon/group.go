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


// Package daemon implements 'webhost daemon', which starts, stops and
// inspects the webhostd process.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/webhost/internal/commands/shared"
	"github.com/tombee/webhost/internal/daemon/api"
	"github.com/tombee/webhost/internal/lifecycle"
)

// NewCommand creates the daemon command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the webhost daemon",
		Long: `Commands for managing the webhost daemon (webhostd).

The daemon owns the web server and the deployed apps. The CLI talks to
it over the control socket to start the server, deploy apps and more.`,
	}

	cmd.AddCommand(newStartCommand())
	cmd.AddCommand(newStopCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newPingCommand())

	return cmd
}

type statusOutput struct {
	shared.JSONResponse
	PID     int                  `json:"pid,omitempty"`
	Health  *api.HealthResponse  `json:"health"`
	Version *api.VersionResponse `json:"version"`
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and version",
		Long:  `Display the status, version, and health checks of webhostd.`,
		Args:  cobra.NoArgs,
		RunE:  runDaemonStatus,
	}
}

func newPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check if daemon is reachable",
		Args:  cobra.NoArgs,
		RunE:  runDaemonPing,
	}
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	c, err := shared.NewClient()
	if err != nil {
		return err
	}

	health, err := c.Health(ctx)
	if err != nil {
		return err
	}
	version, err := c.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get daemon version: %w", err)
	}

	pid, _ := lifecycle.NewPIDFile(cfg.PIDPath()).Read()

	if shared.GetJSON() {
		return shared.EmitJSON(statusOutput{
			JSONResponse: shared.NewJSONResponse("daemon status"),
			PID:          pid,
			Health:       health,
			Version:      version,
		})
	}

	w := shared.Out(cmd.OutOrStdout())
	fmt.Fprintln(w, shared.Header.Render("webhostd"))
	fmt.Fprintf(w, "%s %s\n", shared.RenderLabel("Status:    "), shared.StatusOK.Render(health.Status))
	if pid > 0 {
		fmt.Fprintf(w, "%s %d\n", shared.RenderLabel("PID:       "), pid)
	}
	fmt.Fprintf(w, "%s %s\n", shared.RenderLabel("Endpoint:  "), c.Endpoint())
	fmt.Fprintf(w, "%s %s\n", shared.RenderLabel("Version:   "), version.Version)
	fmt.Fprintf(w, "%s %s\n", shared.RenderLabel("Commit:    "), version.Commit)
	fmt.Fprintf(w, "%s %s/%s\n", shared.RenderLabel("Platform:  "), version.OS, version.Arch)
	fmt.Fprintf(w, "%s %s\n", shared.RenderLabel("Uptime:    "), health.Uptime)

	if len(health.Checks) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, shared.Header.Render("Checks"))
		for _, name := range []string{"api", "server", "apps", "runtime"} {
			if v, ok := health.Checks[name]; ok {
				fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel(name+":"), v)
			}
		}
	}
	return nil
}

func runDaemonPing(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	c, err := shared.NewClient()
	if err != nil {
		return err
	}

	start := time.Now()
	if _, err := c.Health(ctx); err != nil {
		return err
	}
	latency := time.Since(start)

	if shared.GetJSON() {
		return shared.EmitJSON(struct {
			shared.JSONResponse
			LatencyMS int64 `json:"latency_ms"`
		}{shared.NewJSONResponse("daemon ping"), latency.Milliseconds()})
	}

	fmt.Fprintf(shared.Out(cmd.OutOrStdout()), "webhostd is running (latency: %v)\n", latency.Round(time.Millisecond))
	return nil
}
