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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// watcherEvents tracks file events received by the watcher
	watcherEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhost_filewatcher_events_total",
			Help: "Total archive directory events by operation",
		},
		[]string{"op"},
	)

	// watcherDeploys tracks deploys triggered by the watcher
	watcherDeploys = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhost_filewatcher_deploys_total",
			Help: "Total deploys triggered by archive directory changes by result",
		},
		[]string{"result"},
	)

	// watcherErrors tracks watcher errors
	watcherErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhost_filewatcher_errors_total",
			Help: "Total file watcher errors by type",
		},
		[]string{"error_type"},
	)

	// watcherSkipped tracks events ignored by pattern or rate limit
	watcherSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhost_filewatcher_skipped_total",
			Help: "Total archive directory events skipped by reason",
		},
		[]string{"reason"},
	)
)

func recordEvent(op string) {
	watcherEvents.WithLabelValues(op).Inc()
}

func recordDeploy(result string) {
	watcherDeploys.WithLabelValues(result).Inc()
}

func recordError(errorType string) {
	watcherErrors.WithLabelValues(errorType).Inc()
}

func recordSkipped(reason string) {
	watcherSkipped.WithLabelValues(reason).Inc()
}
