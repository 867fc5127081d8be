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

// Status is the web listener state reported to clients. The numeric values
// are part of the control API.
type Status int

const (
	StatusErrored Status = -1
	StatusStopped Status = 0
	StatusRunning Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusErrored:
		return "errored"
	default:
		return "stopped"
	}
}

// Event drives Transition.
type Event int

const (
	// EventStarted fires when the accept loop is launched.
	EventStarted Event = iota
	// EventExited fires when the accept loop returns after a requested stop.
	EventExited
	// EventFailed fires when the accept loop returns with an error.
	EventFailed
)

// Transition returns the status after ev. Exits are only meaningful while
// running; a start from any state leads to running.
func Transition(s Status, ev Event) Status {
	switch ev {
	case EventStarted:
		return StatusRunning
	case EventExited:
		if s == StatusRunning {
			return StatusStopped
		}
	case EventFailed:
		if s == StatusRunning {
			return StatusErrored
		}
	}
	return s
}
