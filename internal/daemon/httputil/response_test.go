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

package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
		wantJSON   string
	}{
		{
			name:       "success with map",
			status:     http.StatusOK,
			data:       map[string]string{"message": "success"},
			wantStatus: http.StatusOK,
			wantJSON:   `{"message":"success"}`,
		},
		{
			name:       "success with struct",
			status:     http.StatusCreated,
			data:       struct{ ID int }{ID: 42},
			wantStatus: http.StatusCreated,
			wantJSON:   `{"ID":42}`,
		},
		{
			name:       "error status code",
			status:     http.StatusInternalServerError,
			data:       map[string]string{"error": "something went wrong"},
			wantStatus: http.StatusInternalServerError,
			wantJSON:   `{"error":"something went wrong"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.status, tt.data)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantJSON, w.Body.String())
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "invalid input")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid input", resp.Error)
	assert.Empty(t, resp.Type)
}

func TestWriteErr(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"validation", &webhosterrors.ValidationError{Field: "name", Message: "bad"}, http.StatusBadRequest, "validation"},
		{"not found", &webhosterrors.NotFoundError{Resource: "app", ID: "shop"}, http.StatusNotFound, "not_found"},
		{"wrapped deploy", fmt.Errorf("redeploy: %w", &webhosterrors.DeployError{App: "shop", Reason: "package missing"}), http.StatusUnprocessableEntity, "deploy"},
		{"remove", &webhosterrors.RemoveError{App: "shop", Path: "/x"}, http.StatusUnprocessableEntity, "remove"},
		{"timeout", &webhosterrors.TimeoutError{Operation: "archive fetch"}, http.StatusGatewayTimeout, "timeout"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErr(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantType, resp.Type)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestWriteErr_UserVisible(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErr(w, &webhosterrors.NotFoundError{Resource: "app", ID: "shop"})

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, `No app named "shop"`, resp.Error)
	assert.Contains(t, resp.Suggestion, "webhost apps list")
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		URL string `json:"url"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"http://x/a.war"}`))
	require.NoError(t, DecodeJSON(r, &v))
	assert.Equal(t, "http://x/a.war", v.URL)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
	err := DecodeJSON(r, &v)
	require.Error(t, err)
	assert.Equal(t, "validation", webhosterrors.TypeOf(err))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	assert.Error(t, DecodeJSON(r, &v))
}
