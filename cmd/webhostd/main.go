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
	"flag"
	"fmt"
	"os"

	"github.com/tombee/webhost/internal/daemon"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to config file (YAML or TOML)")
		envFile     = flag.String("env-file", "", "Environment file loaded before config (default .env)")
		storageRoot = flag.String("storage-root", "", "Directory holding webapps, www, logs and the keystore")
		socketPath  = flag.String("socket", "", "Unix socket path for the control API")
		tcpAddr     = flag.String("tcp", "", "TCP address for the control API")
		allowRemote = flag.Bool("allow-remote", false, "Allow the control API to bind non-localhost addresses (requires control.auth_secret)")
		port        = flag.Int("port", 0, "Web server port")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("webhostd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	err := daemon.Run(daemon.RunOptions{
		Version:     version,
		Commit:      commit,
		BuildDate:   buildDate,
		ConfigPath:  *configPath,
		EnvFile:     *envFile,
		StorageRoot: *storageRoot,
		SocketPath:  *socketPath,
		TCPAddr:     *tcpAddr,
		AllowRemote: *allowRemote,
		Port:        *port,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "webhostd: %v\n", err)
		os.Exit(1)
	}
}
