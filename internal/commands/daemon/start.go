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
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/webhost/internal/commands/shared"
	"github.com/tombee/webhost/internal/config"
	daemonpkg "github.com/tombee/webhost/internal/daemon"
	"github.com/tombee/webhost/internal/lifecycle"
)

type startOptions struct {
	foreground bool
	timeout    time.Duration
	binary     string
}

func newStartCommand() *cobra.Command {
	var opts startOptions

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start webhostd",
		Long: `Start webhostd in the background.

The daemon is spawned in its own session with output appended to
webhostd.log in the log directory, and the command waits until its
control API answers. Use --foreground to run the daemon in this
terminal instead (for systemd or containers).

The start command is idempotent: if webhostd is already running and
healthy, it exits successfully without starting a new instance.`,
		Example: `  # Start in background
  webhost daemon start

  # Start in foreground
  webhost daemon start --foreground

  # Use a specific daemon binary
  webhost daemon start --binary ./bin/webhostd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.foreground, "foreground", false, "Run in the foreground")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "How long to wait for the daemon to become healthy")
	cmd.Flags().StringVar(&opts.binary, "binary", "", "Path to the webhostd binary (default: next to webhost, then $PATH)")

	return cmd
}

func runStart(cmd *cobra.Command, opts startOptions) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	c, err := shared.NewClient()
	if err != nil {
		return err
	}
	w := shared.Out(cmd.OutOrStdout())

	checkCtx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
	_, healthErr := c.Health(checkCtx)
	cancel()
	if healthErr == nil {
		fmt.Fprintln(w, shared.RenderOK("webhostd is already running"))
		return nil
	}

	if opts.foreground {
		v, commit, date := shared.GetVersion()
		return daemonpkg.Run(daemonpkg.RunOptions{
			Version:    v,
			Commit:     commit,
			BuildDate:  date,
			ConfigPath: shared.ResolveConfigPath(),
		})
	}

	pidFile := lifecycle.NewPIDFile(cfg.PIDPath())
	if pidFile.Locked() {
		pid, _ := pidFile.Read()
		return shared.NewFailureError(
			fmt.Sprintf("webhostd holds %s (PID %d) but does not answer on %s", cfg.PIDPath(), pid, c.Endpoint()),
			healthErr)
	}

	binary, err := findDaemonBinary(opts.binary)
	if err != nil {
		return err
	}

	logPath := daemonLogPath(cfg)
	pid, err := lifecycle.SpawnDetached(binary, daemonArgs(), logPath)
	if err != nil {
		return shared.NewFailureError("failed to spawn webhostd", err)
	}

	spinner := shared.NewSpinner()
	spinner.Start(fmt.Sprintf("Starting webhostd (PID %d)", pid))

	waitCtx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	checker := lifecycle.NewHealthChecker(c.HealthURL()).WithHTTPClient(c.HTTPClient())
	err = checker.WaitUntilHealthy(waitCtx)
	elapsed := spinner.Stop()
	if err != nil {
		_ = lifecycle.Terminate(context.Background(), pid, 5*time.Second)
		return shared.NewFailureError(
			fmt.Sprintf("webhostd did not become healthy within %v (see %s)", opts.timeout, logPath), err)
	}

	fmt.Fprintln(w, shared.RenderOK(fmt.Sprintf("webhostd started (PID %d) %s",
		pid, shared.Muted.Render("in "+shared.FormatElapsed(elapsed)))))
	return nil
}

// daemonArgs forwards the CLI's config file to the daemon.
func daemonArgs() []string {
	if path := shared.ResolveConfigPath(); path != "" {
		return []string{"--config", path}
	}
	return nil
}

func daemonLogPath(cfg *config.Config) string {
	return filepath.Join(cfg.LogDir(), lifecycle.DaemonBinary+".log")
}

// findDaemonBinary prefers an explicit path, then a webhostd next to the
// running executable, then $PATH.
func findDaemonBinary(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", shared.NewInvalidInputError("daemon binary not found", err)
		}
		return explicit, nil
	}
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), lifecycle.DaemonBinary)
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}
	path, err := exec.LookPath(lifecycle.DaemonBinary)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", shared.NewFailureError("cannot find webhostd next to webhost or in $PATH; pass --binary", err)
		}
		return "", err
	}
	return path, nil
}
