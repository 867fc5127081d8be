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

package handler

import (
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
)

// Static serves a folder of files at the root prefix.
type Static struct {
	dir     string
	prefix  string
	files   http.Handler
	running atomic.Bool
}

// NewStatic creates a handler serving dir at prefix.
func NewStatic(dir, prefix string) *Static {
	return &Static{
		dir:    dir,
		prefix: prefix,
		files:  http.StripPrefix(MountPath(prefix), http.FileServer(http.Dir(dir))),
	}
}

// Start creates the folder if it does not exist yet.
func (s *Static) Start() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create static folder: %w", err)
	}
	s.running.Store(true)
	return nil
}

// Stop implements Handler.
func (s *Static) Stop() error {
	s.running.Store(false)
	return nil
}

// Describe implements Handler.
func (s *Static) Describe() string {
	return fmt.Sprintf("static folder %s", s.dir)
}

// PathPrefix implements Handler.
func (s *Static) PathPrefix() string { return s.prefix }

// Dir returns the folder being served.
func (s *Static) Dir() string { return s.dir }

func (s *Static) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.running.Load() {
		Unavailable(w)
		return
	}
	s.files.ServeHTTP(w, r)
}
