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

package client

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// APIError is a non-2xx control API response.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Hint       string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("webhostd returned %d: %s", e.StatusCode, e.Message)
}

// ErrorType implements the error classifier used by the CLI.
func (e *APIError) ErrorType() string {
	if e.Type == "" {
		return "internal"
	}
	return e.Type
}

// IsUserVisible implements UserVisibleError.
func (e *APIError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *APIError) UserMessage() string { return e.Message }

// Suggestion implements UserVisibleError.
func (e *APIError) Suggestion() string { return e.Hint }

// DaemonNotRunningError indicates nothing answers on the control endpoint.
type DaemonNotRunningError struct {
	Endpoint string
	Err      error
}

func (e *DaemonNotRunningError) Error() string {
	return fmt.Sprintf("webhostd is not running (%s)", e.Endpoint)
}

func (e *DaemonNotRunningError) Unwrap() error {
	return e.Err
}

// IsUserVisible implements UserVisibleError.
func (e *DaemonNotRunningError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *DaemonNotRunningError) UserMessage() string {
	return "webhostd is not running"
}

// Suggestion implements UserVisibleError.
func (e *DaemonNotRunningError) Suggestion() string {
	return "Start it with 'webhost daemon start' or run 'webhostd' in the foreground"
}

// IsDaemonNotRunning reports whether err means the daemon could not be reached.
func IsDaemonNotRunning(err error) bool {
	var dnr *DaemonNotRunningError
	return errors.As(err, &dnr)
}

func isUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
