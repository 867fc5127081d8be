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

package client

import (
	"os"

	"github.com/tombee/webhost/internal/config"
	"github.com/tombee/webhost/internal/controller/listener"
)

// HostEnv overrides the control endpoint.
const HostEnv = "WEBHOST_HOST"

// FromEnvironment creates a client for WEBHOST_HOST, or for fallback when
// it is unset. The override keeps fallback's auth secret.
func FromEnvironment(fallback config.ControlConfig, opts ...Option) (*Client, error) {
	override, err := listener.ParseHost(os.Getenv(HostEnv))
	if err != nil {
		return nil, err
	}
	if override != nil {
		override.AuthSecret = fallback.AuthSecret
		return New(*override, opts...)
	}
	return New(fallback, opts...)
}
