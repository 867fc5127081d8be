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

// Package client talks to the webhostd control API.
//
// The daemon listens on a Unix socket by default. WEBHOST_HOST selects
// another endpoint:
//
//	WEBHOST_HOST=unix:///run/user/1000/webhost/webhost.sock
//	WEBHOST_HOST=tcp://127.0.0.1:9876
//
// Typical use:
//
//	c, err := client.FromEnvironment(cfg.Control)
//	apps, err := c.ListApps(ctx)
package client
