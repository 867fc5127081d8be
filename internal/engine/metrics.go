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

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts served requests by status class
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhost_engine_requests_total",
			Help: "Total requests served by the embedded engine by status class",
		},
		[]string{"code"},
	)

	// registeredHandlers tracks the size of the handler table
	registeredHandlers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webhost_registered_apps",
			Help: "Number of handlers currently registered in the engine",
		},
	)
)
