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


package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tombee/webhost/internal/client"
	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

// Exit codes for webhost commands
const (
	ExitSuccess           = 0
	ExitFailure           = 1
	ExitInvalidInput      = 2
	ExitNotFound          = 3
	ExitDaemonUnavailable = 69 // EX_UNAVAILABLE from sysexits.h
)

// ExitError is an error that carries a process exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewFailureError creates an ExitError for a failed operation.
func NewFailureError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitFailure,
		Message: msg,
		Cause:   cause,
	}
}

// NewInvalidInputError creates an ExitError for bad arguments.
func NewInvalidInputError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidInput,
		Message: msg,
		Cause:   cause,
	}
}

// ExitCodeFor picks the exit code for err.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if client.IsDaemonNotRunning(err) {
		return ExitDaemonUnavailable
	}

	switch webhosterrors.TypeOf(err) {
	case "validation":
		return ExitInvalidInput
	case "not_found":
		return ExitNotFound
	default:
		return ExitFailure
	}
}

// PrintError writes err and any suggestion in its chain to w, and
// returns the exit code to use.
func PrintError(w io.Writer, err error) int {
	if err == nil {
		return ExitSuccess
	}

	msg := err.Error()
	var userErr webhosterrors.UserVisibleError
	if errors.As(err, &userErr) && userErr.IsUserVisible() {
		msg = userErr.UserMessage()
	}
	fmt.Fprintln(w, "Error:", msg)

	printUserVisibleSuggestion(w, err)
	return ExitCodeFor(err)
}

// HandleExitError prints err and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(PrintError(os.Stderr, err))
}

func printUserVisibleSuggestion(w io.Writer, err error) {
	// Walk the error chain to find a UserVisibleError
	for err != nil {
		if userErr, ok := err.(webhosterrors.UserVisibleError); ok {
			if userErr.IsUserVisible() {
				if suggestion := userErr.Suggestion(); suggestion != "" {
					fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
				}
			}
			return
		}
		err = errors.Unwrap(err)
	}
}
