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

	"github.com/tombee/webhost/internal/client"
	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

// Error codes reported in JSON output.
const (
	// Input errors (E001-E099)
	ErrorCodeInvalidInput  = "E001" // Bad app name, URL or flag value
	ErrorCodeInvalidConfig = "E002" // Config file or setting rejected

	// App errors (E100-E199)
	ErrorCodeNotFound     = "E101" // No such app
	ErrorCodeDeployFailed = "E102" // Install, fetch or redeploy failed
	ErrorCodeRemoveFailed = "E103" // Files could not be deleted

	// Daemon errors (E200-E299)
	ErrorCodeDaemonUnavailable = "E201" // Control endpoint unreachable
	ErrorCodeTimeout           = "E202" // Operation timed out

	ErrorCodeInternal = "E999"
)

// ErrorCodeFor maps err to its JSON error code.
func ErrorCodeFor(err error) string {
	if client.IsDaemonNotRunning(err) {
		return ErrorCodeDaemonUnavailable
	}
	switch webhosterrors.TypeOf(err) {
	case "validation":
		return ErrorCodeInvalidInput
	case "config":
		return ErrorCodeInvalidConfig
	case "not_found":
		return ErrorCodeNotFound
	case "deploy":
		return ErrorCodeDeployFailed
	case "remove":
		return ErrorCodeRemoveFailed
	case "timeout":
		return ErrorCodeTimeout
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == ExitInvalidInput {
		return ErrorCodeInvalidInput
	}
	return ErrorCodeInternal
}

// JSONErrorFor converts err into a JSONError.
func JSONErrorFor(err error) JSONError {
	je := JSONError{
		Code:    ErrorCodeFor(err),
		Message: err.Error(),
	}
	var userErr webhosterrors.UserVisibleError
	if errors.As(err, &userErr) && userErr.IsUserVisible() {
		je.Message = userErr.UserMessage()
		je.Suggestion = userErr.Suggestion()
	}
	return je
}
