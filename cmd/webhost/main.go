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


package main

import (
	"github.com/tombee/webhost/internal/cli"
	"github.com/tombee/webhost/internal/commands/apps"
	"github.com/tombee/webhost/internal/commands/completion"
	"github.com/tombee/webhost/internal/commands/config"
	"github.com/tombee/webhost/internal/commands/daemon"
	"github.com/tombee/webhost/internal/commands/server"
	versioncmd "github.com/tombee/webhost/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Serving
	rootCmd.AddCommand(server.NewCommand())
	rootCmd.AddCommand(apps.NewCommand())

	// Daemon lifecycle
	rootCmd.AddCommand(daemon.NewCommand())

	// Configuration and tooling
	rootCmd.AddCommand(config.NewConfigCommand())
	rootCmd.AddCommand(completion.NewCommand())
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
