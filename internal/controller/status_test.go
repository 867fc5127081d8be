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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		ev   Event
		want Status
	}{
		{"start from stopped", StatusStopped, EventStarted, StatusRunning},
		{"start from errored", StatusErrored, EventStarted, StatusRunning},
		{"clean exit", StatusRunning, EventExited, StatusStopped},
		{"failure while running", StatusRunning, EventFailed, StatusErrored},
		{"exit while stopped", StatusStopped, EventExited, StatusStopped},
		{"failure while stopped", StatusStopped, EventFailed, StatusStopped},
		{"exit keeps error", StatusErrored, EventExited, StatusErrored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.from, tt.ev))
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "stopped", StatusStopped.String())
	assert.Equal(t, "errored", StatusErrored.String())
}
