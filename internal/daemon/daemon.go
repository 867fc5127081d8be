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

// Package daemon runs webhostd: the web host controller plus its control API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tombee/webhost/internal/config"
	"github.com/tombee/webhost/internal/controller"
	"github.com/tombee/webhost/internal/controller/listener"
	"github.com/tombee/webhost/internal/daemon/api"
	"github.com/tombee/webhost/internal/daemon/auth"
	"github.com/tombee/webhost/internal/lifecycle"
	internallog "github.com/tombee/webhost/internal/log"
)

// limiterCleanupInterval is how often idle rate-limit clients are forgotten.
const limiterCleanupInterval = 5 * time.Minute

// Options contains daemon options set at build time.
type Options struct {
	Version   string
	Commit    string
	BuildDate string

	// ConfigPath is re-read before every web listener start.
	ConfigPath string

	Logger *slog.Logger
}

// Daemon is the main webhostd daemon.
type Daemon struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	ctl    *controller.Controller
	router *api.Router
	server *http.Server
	ln     net.Listener
	pid    *lifecycle.PIDFile

	mu      sync.Mutex
	started bool

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a new daemon instance.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if cfg.Control.AuthRequired() && len(cfg.Control.AuthSecret) < auth.MinSecretBytes {
		return nil, fmt.Errorf("remote control needs an auth secret of at least %d bytes", auth.MinSecretBytes)
	}

	logger := opts.Logger
	if logger == nil {
		logger = internallog.New(internallog.FromEnv())
	}
	logger = internallog.WithComponent(logger, "daemon")

	ctl, err := controller.New(cfg, controller.Options{
		Logger: logger,
		Reload: func() (*config.Config, error) {
			fresh, err := config.Load(opts.ConfigPath)
			if err != nil {
				return nil, err
			}
			// the control socket and storage root only change on restart
			fresh.StorageRoot = cfg.StorageRoot
			fresh.Control = cfg.Control
			return fresh, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	router := api.NewRouter(api.RouterConfig{
		Version:   opts.Version,
		Commit:    opts.Commit,
		BuildDate: opts.BuildDate,
		RateLimit: cfg.Control.RateLimit,
		RateBurst: cfg.Control.RateBurst,
		Auth:      controlAuth(cfg.Control),
		Logger:    logger,
	}, ctl)
	router.SetMetricsHandler(promhttp.Handler())

	return &Daemon{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		ctl:    ctl,
		router: router,
		pid:    lifecycle.NewPIDFile(cfg.PIDPath()),
		ready:  make(chan struct{}),
	}, nil
}

// Controller returns the command surface.
func (d *Daemon) Controller() *controller.Controller { return d.ctl }

// Ready is closed once the control API accepts connections.
func (d *Daemon) Ready() <-chan struct{} { return d.ready }

// Addr returns the control API address once started.
func (d *Daemon) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ln == nil {
		return nil
	}
	return d.ln.Addr()
}

// Start deploys apps, opens the control API and blocks until ctx is
// cancelled or the control server fails.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return errors.New("daemon already started")
	}

	if err := d.pid.Acquire(os.Getpid()); err != nil {
		d.mu.Unlock()
		if errors.Is(err, lifecycle.ErrPIDFileLocked) {
			return fmt.Errorf("webhostd is already running (%s): %w", d.pid.Path(), err)
		}
		return err
	}

	if err := d.ctl.Init(ctx); err != nil {
		_ = d.pid.Release()
		d.mu.Unlock()
		return fmt.Errorf("failed to initialize: %w", err)
	}

	ln, err := listener.New(d.cfg.Control)
	if err != nil {
		_ = d.ctl.Close(context.Background())
		_ = d.pid.Release()
		d.mu.Unlock()
		return fmt.Errorf("failed to open control listener: %w", err)
	}
	d.ln = ln
	d.server = &http.Server{
		Handler:           d.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(d.logger.Handler(), slog.LevelWarn),
	}
	d.started = true
	d.mu.Unlock()

	d.logger.Info("control API listening",
		slog.String("addr", ln.Addr().String()),
		slog.String("version", d.opts.Version))

	if d.cfg.Server.AutoStart {
		if addr, err := d.ctl.Start(ctx); err != nil {
			d.logger.Error("auto start failed", internallog.Error(err))
		} else {
			d.logger.Info("web server started", slog.String("address", addr))
		}
	}

	go d.cleanupLimiter(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	d.readyOnce.Do(func() { close(d.ready) })

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (d *Daemon) cleanupLimiter(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.router.Limiter().Cleanup(limiterCleanupInterval)
		}
	}
}

// Shutdown stops the web listener and every app, then closes the control API.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}
	d.logger.Info("graceful shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(ctx, d.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := d.ctl.Close(shutdownCtx); err != nil {
		d.logger.Error("web server shutdown error", internallog.Error(err))
		errs = append(errs, err)
	}

	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.Error("control API shutdown error", internallog.Error(err))
		errs = append(errs, err)
	}

	if d.cfg.Control.TCPAddr == "" && d.cfg.Control.SocketPath != "" {
		if err := os.Remove(d.cfg.Control.SocketPath); err != nil && !os.IsNotExist(err) {
			d.logger.Error("failed to remove socket file",
				internallog.Error(err),
				slog.String("path", d.cfg.Control.SocketPath))
		}
	}

	if err := d.pid.Release(); err != nil {
		d.logger.Error("failed to remove PID file", internallog.Error(err))
	}

	d.started = false
	d.logger.Info("daemon stopped")
	return errors.Join(errs...)
}

// controlAuth returns the token settings for a network-exposed control API,
// or nil when only local clients can connect.
func controlAuth(cfg config.ControlConfig) *auth.JWTConfig {
	if !cfg.AuthRequired() {
		return nil
	}
	return &auth.JWTConfig{Secret: []byte(cfg.AuthSecret), ClockSkew: 30 * time.Second}
}
