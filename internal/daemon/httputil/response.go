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

// Package httputil holds the JSON helpers shared by the control API handlers.
package httputil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

// MaxBodyBytes caps control request bodies.
const MaxBodyBytes = 64 << 10

// ErrorResponse is the body of every non-2xx control response.
type ErrorResponse struct {
	Error      string `json:"error"`
	Type       string `json:"type,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// WriteJSON writes a JSON response with the given status code and data.
// If encoding fails, it logs the error.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", slog.Any("error", err))
	}
}

// WriteError writes a JSON error response with the given status code and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteErr maps err to a status code by its category and writes it.
func WriteErr(w http.ResponseWriter, err error) {
	kind := webhosterrors.TypeOf(err)
	resp := ErrorResponse{Error: err.Error(), Type: kind}

	var ve *webhosterrors.ValidationError
	if webhosterrors.As(err, &ve) {
		resp.Suggestion = ve.Suggestion
	}
	var uv webhosterrors.UserVisibleError
	if webhosterrors.As(err, &uv) && uv.IsUserVisible() {
		resp.Error = uv.UserMessage()
		resp.Suggestion = uv.Suggestion()
	}

	WriteJSON(w, StatusFor(kind), resp)
}

// StatusFor returns the HTTP status used for an error category.
func StatusFor(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "deploy", "remove":
		return http.StatusUnprocessableEntity
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON reads a bounded JSON body into v.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &webhosterrors.ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}
