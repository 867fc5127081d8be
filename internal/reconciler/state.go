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

package reconciler

// State is where an app sits in its lifecycle, derived from disk and the
// registry.
type State int

const (
	// StateAbsent means no extracted package exists.
	StateAbsent State = iota
	// StateExtracted means a package exists but was never registered.
	StateExtracted
	// StateRegistered means a live handler serves the app.
	StateRegistered
	// StateStopped means the handler was stopped and the package kept.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateExtracted:
		return "extracted"
	case StateRegistered:
		return "registered"
	case StateStopped:
		return "stopped"
	default:
		return "absent"
	}
}

// State reports the lifecycle state of name.
func (r *Reconciler) State(name string) State {
	if r.registered(name) {
		return StateRegistered
	}
	if !r.store.HasPackage(name) {
		return StateAbsent
	}
	r.snapMu.RLock()
	stopped := r.stopped[name]
	r.snapMu.RUnlock()
	if stopped {
		return StateStopped
	}
	return StateExtracted
}
