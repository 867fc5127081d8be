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
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/webhost/internal/commands/shared"
	"github.com/tombee/webhost/internal/lifecycle"
)

func newStopCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop webhostd",
		Long: `Stop webhostd gracefully.

Sends SIGTERM and waits for the daemon to stop the web server and exit.
If the timeout is exceeded, sends SIGKILL.

The stop command is idempotent: if webhostd is not running it exits
successfully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Graceful shutdown timeout before SIGKILL")
	return cmd
}

func runStop(cmd *cobra.Command, timeout time.Duration) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	w := shared.Out(cmd.OutOrStdout())
	ctx := cmd.Context()

	pidFile := lifecycle.NewPIDFile(cfg.PIDPath())
	pid, err := pidFile.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(w, "webhostd is not running (no PID file)")
			return nil
		}
		return shared.NewFailureError("failed to read PID file", err)
	}

	if !lifecycle.IsRunning(ctx, pid) || !pidFile.Locked() {
		fmt.Fprintf(w, "webhostd is not running (stale PID file for %d)\n", pid)
		return nil
	}

	if !lifecycle.IsDaemon(ctx, pid) {
		return shared.NewFailureError(fmt.Sprintf("PID %d is not webhostd (refusing to stop)", pid), nil)
	}

	spinner := shared.NewSpinner()
	spinner.Start(fmt.Sprintf("Stopping webhostd (PID %d)", pid))
	err = lifecycle.Terminate(context.WithoutCancel(ctx), pid, timeout)
	spinner.Stop()
	if err != nil && !errors.Is(err, lifecycle.ErrProcessNotRunning) {
		return shared.NewFailureError("failed to stop webhostd", err)
	}

	fmt.Fprintln(w, shared.RenderOK("webhostd stopped"))
	return nil
}
