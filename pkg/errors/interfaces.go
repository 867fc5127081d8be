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
	"errors"
	"fmt"
)

// UserVisibleError defines errors that should be displayed to end users
// with user-friendly messages and actionable suggestions.
//
// The CLI formats these specially instead of printing the raw chain.
type UserVisibleError interface {
	error

	// IsUserVisible returns true if this error should be shown to users.
	IsUserVisible() bool

	// UserMessage returns a user-friendly error message.
	UserMessage() string

	// Suggestion returns actionable guidance for resolving the error.
	// Returns empty string if no suggestion is available.
	Suggestion() string
}

// ErrorClassifier defines methods for programmatic error handling.
// The control API uses it to pick a status code without type switches.
type ErrorClassifier interface {
	error

	// ErrorType returns a string identifying the error category.
	// Examples: "validation", "not_found", "deploy", "remove"
	ErrorType() string
}

// ErrorType implements ErrorClassifier.
func (e *ValidationError) ErrorType() string { return "validation" }

// ErrorType implements ErrorClassifier.
func (e *NotFoundError) ErrorType() string { return "not_found" }

// ErrorType implements ErrorClassifier.
func (e *DeployError) ErrorType() string { return "deploy" }

// ErrorType implements ErrorClassifier.
func (e *RemoveError) ErrorType() string { return "remove" }

// ErrorType implements ErrorClassifier.
func (e *AddressResolutionError) ErrorType() string { return "address_resolution" }

// ErrorType implements ErrorClassifier.
func (e *ConfigError) ErrorType() string { return "config" }

// ErrorType implements ErrorClassifier.
func (e *TimeoutError) ErrorType() string { return "timeout" }

// TypeOf returns the category of the first classified error in err's tree,
// or "internal" when none is found.
func TypeOf(err error) string {
	var c ErrorClassifier
	if errors.As(err, &c) {
		return c.ErrorType()
	}
	return "internal"
}

// IsUserVisible implements UserVisibleError.
func (e *NotFoundError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *NotFoundError) UserMessage() string {
	return fmt.Sprintf("No %s named %q", e.Resource, e.ID)
}

// Suggestion implements UserVisibleError.
func (e *NotFoundError) Suggestion() string {
	if e.Resource == "app" {
		return "Run 'webhost apps list' to see deployed apps"
	}
	return ""
}

// IsUserVisible implements UserVisibleError.
func (e *DeployError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *DeployError) UserMessage() string {
	return fmt.Sprintf("Could not deploy %s: %s", e.App, e.Reason)
}

// Suggestion implements UserVisibleError.
func (e *DeployError) Suggestion() string {
	return "The previously running version, if any, is still being served"
}
