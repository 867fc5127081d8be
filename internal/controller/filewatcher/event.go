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

package filewatcher

import (
	"path/filepath"
	"time"
)

// Event is one filesystem change seen in the watched archive directory.
type Event struct {
	// Path is the absolute path of the file
	Path string `json:"path"`

	// Name is the file name without its directory
	Name string `json:"name"`

	// Op is created or modified
	Op string `json:"op"`

	// Size is the file size when the event was seen
	Size int64 `json:"size,omitempty"`

	// MTime is the modification time when the event was seen
	MTime time.Time `json:"mtime,omitempty"`
}

// NewEvent builds an Event for path.
func NewEvent(path, op string, size int64, mtime time.Time) *Event {
	return &Event{
		Path:  path,
		Name:  filepath.Base(path),
		Op:    op,
		Size:  size,
		MTime: mtime,
	}
}
