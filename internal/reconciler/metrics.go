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

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts lifecycle operations by outcome
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhost_reconciler_operations_total",
			Help: "Total number of reconciler operations by operation and result",
		},
		[]string{"op", "result"},
	)

	// operationDuration tracks how long each lifecycle operation holds the reconciler
	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhost_reconciler_operation_duration_seconds",
			Help:    "Duration of reconciler operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"op"},
	)
)
