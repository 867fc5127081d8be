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


// Package server implements 'webhost server', which controls the web
// listener inside a running webhostd.
package server

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/webhost/internal/commands/shared"
	"github.com/tombee/webhost/internal/daemon/api"
)

const requestTimeout = time.Minute

// NewCommand creates the server command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Control the web server",
		Long: `Start, stop and inspect the web server hosted by webhostd.

The daemon keeps running while the web server is stopped, so apps stay
installed and can be managed in the meantime.`,
	}

	cmd.AddCommand(newStartCommand())
	cmd.AddCommand(newStopCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newLoggingCommand())

	return cmd
}

type statusOutput struct {
	shared.JSONResponse
	api.StatusResponse
}

func newStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the web server",
		Long: `Start the web server. Settings are re-read from the config file
first, so edits made with 'webhost config set' take effect here.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerCall(cmd, "server start", func(ctx context.Context) (*api.StatusResponse, error) {
				c, err := shared.NewClient()
				if err != nil {
					return nil, err
				}
				return c.StartServer(ctx)
			})
		},
	}
}

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerCall(cmd, "server stop", func(ctx context.Context) (*api.StatusResponse, error) {
				c, err := shared.NewClient()
				if err != nil {
					return nil, err
				}
				return c.StopServer(ctx)
			})
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the web server state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerCall(cmd, "server status", func(ctx context.Context) (*api.StatusResponse, error) {
				c, err := shared.NewClient()
				if err != nil {
					return nil, err
				}
				return c.Status(ctx)
			})
		},
	}
}

func runServerCall(cmd *cobra.Command, name string, call func(context.Context) (*api.StatusResponse, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	status, err := call(ctx)
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		return shared.EmitJSON(statusOutput{
			JSONResponse:   shared.NewJSONResponse(name),
			StatusResponse: *status,
		})
	}

	printStatus(shared.Out(cmd.OutOrStdout()), status)
	return nil
}

func printStatus(w io.Writer, status *api.StatusResponse) {
	line := fmt.Sprintf("Web server is %s", shared.RenderServerState(status.State))
	if status.Address != "" {
		line += " " + shared.Muted.Render("("+status.Address+")")
	}
	switch status.State {
	case "running":
		fmt.Fprintln(w, shared.RenderOK(line))
	case "errored":
		fmt.Fprintln(w, shared.RenderError(line))
		fmt.Fprintln(w, shared.Muted.Render("  Check the webhostd log for the listener error"))
	default:
		fmt.Fprintln(w, shared.RenderInfo(line))
	}
}

func newLoggingCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "logging on|off",
		Short:     "Turn HTTP access logging on or off",
		Long:      `Turn access logging on or off. Each time logging is turned on a new access-<millis>.log file is opened in the log directory.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE:      runLogging,
	}
}

func runLogging(cmd *cobra.Command, args []string) error {
	var enabled bool
	switch args[0] {
	case "on", "true", "enable":
		enabled = true
	case "off", "false", "disable":
		enabled = false
	default:
		return shared.NewInvalidInputError(fmt.Sprintf("expected on or off, got %q", args[0]), nil)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	c, err := shared.NewClient()
	if err != nil {
		return err
	}
	if err := c.SetLogging(ctx, enabled); err != nil {
		return err
	}

	if shared.GetJSON() {
		return shared.EmitJSON(struct {
			shared.JSONResponse
			api.LoggingRequest
		}{shared.NewJSONResponse("server logging"), api.LoggingRequest{Enabled: enabled}})
	}

	state := "off"
	if enabled {
		state = "on"
	}
	fmt.Fprintln(shared.Out(cmd.OutOrStdout()), shared.RenderOK("Access logging "+state))
	return nil
}
