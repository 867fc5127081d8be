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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

var (
	// ErrProcessNotRunning is returned when the process does not exist.
	ErrProcessNotRunning = errors.New("process not running")

	// ErrShutdownTimeout is returned when the process doesn't exit within the timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
)

// DaemonBinary is the daemon executable name.
const DaemonBinary = "webhostd"

// IsRunning reports whether a process with pid exists.
func IsRunning(ctx context.Context, pid int) bool {
	ok, err := process.PidExistsWithContext(ctx, int32(pid))
	return err == nil && ok
}

// IsDaemon reports whether pid runs the webhost daemon. It keeps a stale
// PID file from directing signals at an unrelated process.
func IsDaemon(ctx context.Context, pid int) bool {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return false
	}
	if name, err := p.NameWithContext(ctx); err == nil && strings.HasPrefix(name, DaemonBinary) {
		return true
	}
	args, err := p.CmdlineSliceWithContext(ctx)
	if err != nil || len(args) == 0 {
		return false
	}
	return filepath.Base(args[0]) == DaemonBinary
}

// Terminate sends SIGTERM to pid and waits up to timeout for it to exit,
// then sends SIGKILL.
func Terminate(ctx context.Context, pid int, timeout time.Duration) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return ErrProcessNotRunning
	}
	if err := p.SendSignalWithContext(ctx, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM to %d: %w", pid, err)
	}

	if err := waitForExit(ctx, pid, timeout); err == nil {
		return nil
	}

	if err := p.KillWithContext(ctx); err != nil {
		return fmt.Errorf("failed to kill %d: %w", pid, err)
	}
	if err := waitForExit(ctx, pid, 5*time.Second); err != nil {
		return fmt.Errorf("process did not die after SIGKILL: %w", err)
	}
	return nil
}

func waitForExit(ctx context.Context, pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if !IsRunning(ctx, pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return ErrShutdownTimeout
}
