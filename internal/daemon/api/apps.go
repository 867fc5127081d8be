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
	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

// AppsResponse lists registered app prefixes.
type AppsResponse struct {
	Apps []string `json:"apps"`
}

// DeployRequest is the body of POST /v1/apps/deploy.
type DeployRequest struct {
	URL string `json:"url"`
}

// DeployResponse reports a deploy from URL. Message is empty on success.
type DeployResponse struct {
	OK      bool     `json:"ok"`
	Message string   `json:"message,omitempty"`
	Apps    []string `json:"apps"`
}

// AppInfoResponse describes one app.
type AppInfoResponse struct {
	Name string `json:"name"`
	Info string `json:"info"`
}

func apps(list []string) AppsResponse {
	if list == nil {
		list = []string{}
	}
	return AppsResponse{Apps: list}
}

// handleListApps handles GET /v1/apps.
func (r *Router) handleListApps(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, apps(r.backend.ListApps()))
}

// handleDeploy handles POST /v1/apps/deploy. A failed deploy is a normal
// result carrying the reason, not an HTTP error.
func (r *Router) handleDeploy(w http.ResponseWriter, req *http.Request) {
	var body DeployRequest
	if err := httputil.DecodeJSON(req, &body); err != nil {
		httputil.WriteErr(w, err)
		return
	}
	if body.URL == "" {
		httputil.WriteErr(w, &webhosterrors.ValidationError{Field: "url", Message: "url is required"})
		return
	}

	msg := r.backend.DeployFromURL(req.Context(), body.URL)
	httputil.WriteJSON(w, http.StatusOK, DeployResponse{
		OK:      msg == "",
		Message: msg,
		Apps:    apps(r.backend.ListApps()).Apps,
	})
}

// handleRescan handles POST /v1/apps/rescan.
func (r *Router) handleRescan(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, apps(r.backend.RescanApps(req.Context())))
}

// handleAppInfo handles GET /v1/apps/{name}.
func (r *Router) handleAppInfo(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	info, ok := r.backend.AppInfo(name)
	if !ok {
		httputil.WriteErr(w, &webhosterrors.NotFoundError{Resource: "app", ID: name})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AppInfoResponse{Name: name, Info: info})
}

// handleStopApp handles POST /v1/apps/{name}/stop.
func (r *Router) handleStopApp(w http.ResponseWriter, req *http.Request) {
	list, err := r.backend.StopApp(req.Context(), req.PathValue("name"))
	if err != nil {
		httputil.WriteErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, apps(list))
}

// handleRedeployApp handles POST /v1/apps/{name}/redeploy.
func (r *Router) handleRedeployApp(w http.ResponseWriter, req *http.Request) {
	list, err := r.backend.RedeployApp(req.Context(), req.PathValue("name"))
	if err != nil {
		httputil.WriteErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, apps(list))
}

// handleRemoveApp handles DELETE /v1/apps/{name}.
func (r *Router) handleRemoveApp(w http.ResponseWriter, req *http.Request) {
	if err := r.backend.RemoveApp(req.Context(), req.PathValue("name")); err != nil {
		httputil.WriteErr(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, apps(r.backend.ListApps()))
}
