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

// Package handler defines the request handlers the engine dispatches to:
// a static folder handler and a per-app package handler.
package handler

import (
	"net/http"
	"strings"
)

// RootPrefix is the registry prefix that catches every path.
const RootPrefix = "/*"

// Handler is a startable request handler bound to one path prefix.
type Handler interface {
	http.Handler

	// Start prepares the handler to serve. It is called before registration.
	Start() error

	// Stop releases resources; later requests get 503.
	Stop() error

	// Describe returns human readable metadata.
	Describe() string

	// PathPrefix returns the registry prefix, "/<name>/*" or RootPrefix.
	PathPrefix() string
}

// Prefix returns the registry prefix for an app name.
func Prefix(name string) string {
	return "/" + name + "/*"
}

// NameFromPrefix reverses Prefix. It reports false for RootPrefix and for
// strings that are not app prefixes.
func NameFromPrefix(prefix string) (string, bool) {
	if len(prefix) < len("/x/*") || !strings.HasPrefix(prefix, "/") || !strings.HasSuffix(prefix, "/*") {
		return "", false
	}
	name := prefix[1 : len(prefix)-2]
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// MountPath returns the URL path a prefix serves under, without the
// trailing wildcard: "/shop/*" -> "/shop", "/*" -> "".
func MountPath(prefix string) string {
	return strings.TrimSuffix(strings.TrimSuffix(prefix, "*"), "/")
}

// Unavailable writes the response for a stopped handler.
func Unavailable(w http.ResponseWriter) {
	http.Error(w, "service unavailable", http.StatusServiceUnavailable)
}
