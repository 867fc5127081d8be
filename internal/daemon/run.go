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

package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tombee/webhost/internal/config"
	"github.com/tombee/webhost/internal/log"
)

// RunOptions configures daemon execution.
type RunOptions struct {
	Version   string
	Commit    string
	BuildDate string

	// ConfigPath is an optional YAML or TOML config file.
	ConfigPath string

	// EnvFile is loaded before configuration. Defaults to ".env"; a
	// missing file is ignored.
	EnvFile string

	// Config overrides
	StorageRoot string
	SocketPath  string
	TCPAddr     string
	AllowRemote bool
	Port        int
}

// Run starts the daemon and blocks until SIGINT or SIGTERM. SIGHUP rescans
// the archive store.
func Run(opts RunOptions) error {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration after flag overrides: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if cfg.Control.AuthRequired() {
		logger.Warn("allow_remote is enabled. The control API accepts connections from any network address and requires bearer tokens.",
			"tcp_addr", cfg.Control.TCPAddr)
	}

	d, err := New(cfg, Options{
		Version:    opts.Version,
		Commit:     opts.Commit,
		BuildDate:  opts.BuildDate,
		ConfigPath: opts.ConfigPath,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("Failed to create daemon", log.Error(err))
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Start(ctx)
	}()

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				apps := d.Controller().RescanApps(ctx)
				logger.Info("rescan requested by signal", slog.Int("apps", len(apps)))
				continue
			}
			logger.Info("shutting down", slog.String("signal", sig.String()))
			cancel()
			<-errCh
			if err := d.Shutdown(context.Background()); err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			return nil
		case err := <-errCh:
			shutdownErr := d.Shutdown(context.Background())
			if err != nil {
				logger.Error("Daemon error", log.Error(err))
				return fmt.Errorf("daemon error: %w", err)
			}
			return shutdownErr
		}
	}
}

func applyOverrides(cfg *config.Config, opts RunOptions) {
	if opts.StorageRoot != "" {
		cfg.StorageRoot = opts.StorageRoot
	}
	if opts.SocketPath != "" {
		cfg.Control.SocketPath = opts.SocketPath
	}
	if opts.TCPAddr != "" {
		cfg.Control.TCPAddr = opts.TCPAddr
	}
	if opts.AllowRemote {
		cfg.Control.AllowRemote = true
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	lc := log.FromEnv()
	if os.Getenv("WEBHOST_DEBUG") == "" && cfg.Log.Level != "" {
		lc.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		lc.Format = log.Format(cfg.Log.Format)
	}
	return log.New(lc)
}
