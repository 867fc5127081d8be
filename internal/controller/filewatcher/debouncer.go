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
	"sync"
	"time"
)

// Debouncer delays delivery of a file's event until no newer event for the
// same path arrived during the window. Only the latest event is delivered,
// so an archive being copied in is deployed once, after the copy settles.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	timers  map[string]*debounceTimer
	onFlush func(*Event)
	stopped bool
}

type debounceTimer struct {
	timer *time.Timer
	event *Event
}

// NewDebouncer creates a debouncer calling onFlush for each settled event.
func NewDebouncer(window time.Duration, onFlush func(*Event)) *Debouncer {
	return &Debouncer{
		window:  window,
		timers:  make(map[string]*debounceTimer),
		onFlush: onFlush,
	}
}

// Add records ev and restarts its path's timer.
func (d *Debouncer) Add(ev *Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	path := ev.Path
	dt, exists := d.timers[path]
	if exists {
		dt.timer.Stop()
		dt.event = ev
	} else {
		dt = &debounceTimer{event: ev}
		d.timers[path] = dt
	}
	dt.timer = time.AfterFunc(d.window, func() {
		d.flush(path)
	})
}

func (d *Debouncer) flush(path string) {
	d.mu.Lock()
	dt, exists := d.timers[path]
	if !exists {
		d.mu.Unlock()
		return
	}
	delete(d.timers, path)
	d.mu.Unlock()

	// outside the lock: onFlush deploys and may take a while
	if d.onFlush != nil {
		d.onFlush(dt.event)
	}
}

// Stop cancels pending timers without delivering their events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for path, dt := range d.timers {
		dt.timer.Stop()
		delete(d.timers, path)
	}
}

// Pending returns the number of paths with a pending timer.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
