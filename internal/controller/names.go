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

package controller

import (
	"strings"

	"github.com/tombee/webhost/internal/archive"
	"github.com/tombee/webhost/internal/handler"
	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

// NormalizeName accepts "shop", "/shop", "/shop/" or "/shop/*" and returns
// the bare app name. rootApp resolves the root prefix "/*".
func NormalizeName(raw, rootApp string) (string, error) {
	if raw == handler.RootPrefix {
		if rootApp == "" {
			return "", &webhosterrors.ValidationError{Field: "name", Message: "no app is mapped to the root"}
		}
		return rootApp, nil
	}
	if name, ok := handler.NameFromPrefix(raw); ok {
		if err := archive.ValidName(name); err != nil {
			return "", err
		}
		return name, nil
	}
	name := strings.TrimPrefix(raw, "/")
	switch {
	case strings.HasSuffix(name, "/*"):
		name = strings.TrimSuffix(name, "/*")
	case strings.HasSuffix(name, "/"):
		name = strings.TrimSuffix(name, "/")
	}
	if err := archive.ValidName(name); err != nil {
		return "", err
	}
	return name, nil
}
