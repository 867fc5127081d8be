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


package shared

import (
	"io"
	"log/slog"
	"os"

	"github.com/tombee/webhost/internal/client"
	"github.com/tombee/webhost/internal/config"
	"github.com/tombee/webhost/internal/log"
)

// ResolveConfigPath returns --config, or the default config file when it
// exists. An empty result means built-in defaults.
func ResolveConfigPath() string {
	if configFlag != "" {
		return configFlag
	}
	path, err := config.ConfigPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// LoadConfig loads the CLI's view of the configuration.
func LoadConfig() (*config.Config, error) {
	return config.Load(ResolveConfigPath())
}

// Logger returns the CLI logger: text on stderr with --verbose, silent otherwise.
func Logger() *slog.Logger {
	if !verboseFlag {
		return log.Discard()
	}
	cfg := log.FromEnv()
	cfg.Level = "debug"
	cfg.Format = log.FormatText
	return log.New(cfg)
}

// NewClient creates a control API client for the configured daemon.
// WEBHOST_HOST takes precedence over the config file.
func NewClient() (*client.Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return client.FromEnvironment(cfg.Control, client.WithLogger(Logger()))
}

// Out returns w unless --quiet is set.
func Out(w io.Writer) io.Writer {
	if quietFlag {
		return io.Discard
	}
	return w
}
