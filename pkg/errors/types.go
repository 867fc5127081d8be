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

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid app names, malformed URLs, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when an operation references an app with no live handler or no archive.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "app", "archive", "handler")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// DeployError represents a failed install, redeploy or fetch.
// The archive may be missing or corrupt, extraction may have failed,
// the file extension may be wrong, or a transfer exceeded its bounds.
type DeployError struct {
	// App is the app name (or file name for fetches)
	App string

	// Reason explains what went wrong
	Reason string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *DeployError) Error() string {
	msg := fmt.Sprintf("deploy %s failed: %s", e.App, e.Reason)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *DeployError) Unwrap() error {
	return e.Cause
}

// RemoveError represents a filesystem deletion that failed, partially or fully.
type RemoveError struct {
	// App is the app being removed
	App string

	// Path is the file or directory that could not be deleted
	Path string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *RemoveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("remove %s: cannot delete %s: %v", e.App, e.Path, e.Cause)
	}
	return fmt.Sprintf("remove %s: cannot delete %s", e.App, e.Path)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *RemoveError) Unwrap() error {
	return e.Cause
}

// AddressResolutionError reports that no usable network address was found.
// Callers degrade to the unspecified address rather than failing.
type AddressResolutionError struct {
	// Host is the name or literal that failed to resolve (empty for interface scans)
	Host string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *AddressResolutionError) Error() string {
	target := e.Host
	if target == "" {
		target = "local interfaces"
	}
	if e.Cause != nil {
		return fmt.Sprintf("cannot resolve address for %s: %v", target, e.Cause)
	}
	return fmt.Sprintf("cannot resolve address for %s", target)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *AddressResolutionError) Unwrap() error {
	return e.Cause
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "server.port")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "archive fetch")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
