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


package httpclient

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameter name fragments whose values never
// reach the logs. Presigned archive URLs carry their credentials this way.
var sensitiveParams = []string{
	"token",
	"password",
	"secret",
	"signature",
	"sig",
	"key",
	"credential",
	"auth",
}

const redacted = "REDACTED"

// SanitizeURL renders u for logging with sensitive query values and any
// userinfo password replaced.
func SanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	safe := *u
	if safe.RawQuery != "" {
		q := safe.Query()
		for param := range q {
			if isSensitiveParam(param) {
				q[param] = []string{redacted}
			}
		}
		safe.RawQuery = q.Encode()
	}
	if _, ok := safe.User.Password(); ok {
		safe.User = url.UserPassword(safe.User.Username(), redacted)
	}
	return safe.String()
}

func isSensitiveParam(param string) bool {
	lower := strings.ToLower(param)
	for _, s := range sensitiveParams {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
