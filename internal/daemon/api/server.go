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

package api

import (
	"net/http"

	"github.com/tombee/webhost/internal/daemon/httputil"
	"github.com/tombee/webhost/internal/log"
)

// StatusResponse reports the web listener state. Status is -1 (errored),
// 0 (stopped) or 1 (running).
type StatusResponse struct {
	Status  int    `json:"status"`
	State   string `json:"state"`
	Address string `json:"address,omitempty"`
}

// LoggingRequest is the body of PUT /v1/server/logging.
type LoggingRequest struct {
	Enabled bool `json:"enabled"`
}

func (r *Router) status(address string) StatusResponse {
	s := r.backend.Status()
	return StatusResponse{Status: int(s), State: s.String(), Address: address}
}

// handleStatus handles GET /v1/server/status.
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, r.status(""))
}

// handleStart handles POST /v1/server/start.
func (r *Router) handleStart(w http.ResponseWriter, req *http.Request) {
	addr, err := r.backend.Start(req.Context())
	if err != nil {
		r.logger.Error("server start failed", log.Error(err))
		httputil.WriteErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, r.status(addr))
}

// handleStop handles POST /v1/server/stop.
func (r *Router) handleStop(w http.ResponseWriter, req *http.Request) {
	if err := r.backend.Stop(); err != nil {
		httputil.WriteErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, r.status(""))
}

// handleLogging handles PUT /v1/server/logging.
func (r *Router) handleLogging(w http.ResponseWriter, req *http.Request) {
	var body LoggingRequest
	if err := httputil.DecodeJSON(req, &body); err != nil {
		httputil.WriteErr(w, err)
		return
	}
	if err := r.backend.SetLogging(body.Enabled); err != nil {
		httputil.WriteErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}
