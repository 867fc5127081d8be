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

// Package controller is the command surface of the host: it owns the web
// listener's status and turns operator commands into reconciler operations.
package controller

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tombee/webhost/internal/archive"
	"github.com/tombee/webhost/internal/config"
	"github.com/tombee/webhost/internal/controller/filewatcher"
	"github.com/tombee/webhost/internal/controller/listener"
	"github.com/tombee/webhost/internal/engine"
	"github.com/tombee/webhost/internal/handler"
	"github.com/tombee/webhost/internal/log"
	"github.com/tombee/webhost/internal/netbind"
	"github.com/tombee/webhost/internal/reconciler"
	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

// RealmName is the basic-auth realm protecting the settings page.
const RealmName = "webhost"

// BindSelector picks the listener address before each start.
type BindSelector interface {
	Select(ctx context.Context, override string, mode netbind.Mode) (netbind.Result, error)
}

// ListenFunc opens the web listener.
type ListenFunc func(bindAddr string, port int, tlsConfig *tls.Config) (net.Listener, error)

// Options configures a Controller.
type Options struct {
	Logger *slog.Logger

	// Selector defaults to netbind.NewSelector.
	Selector BindSelector

	// Listen defaults to listener.Web.
	Listen ListenFunc

	// Reload re-reads persisted settings before each Start. Nil keeps the
	// configuration passed to New.
	Reload func() (*config.Config, error)
}

// Controller exposes the host operations to the control API.
type Controller struct {
	opts     Options
	logger   *slog.Logger
	selector BindSelector
	listen   ListenFunc

	store   *archive.Store
	engine  *engine.Server
	rec     *reconciler.Reconciler
	fetcher *archive.Fetcher

	cfgMu sync.RWMutex
	cfg   *config.Config

	// mu serializes Start, Stop and settings application
	mu       sync.Mutex
	done     chan struct{}
	addr     net.Addr
	rootKey  string
	password string

	statusMu sync.Mutex
	status   Status

	logMu sync.Mutex

	watcher *filewatcher.Service
	cron    *cron.Cron
}

// New wires the store, engine and reconciler for cfg. Nothing is served
// until Init and Start are called.
func New(cfg *config.Config, opts Options) (*Controller, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = log.WithComponent(logger, "controller")

	store, err := archive.NewStore(cfg.WebappsDir(), logger)
	if err != nil {
		return nil, err
	}

	fetcher, err := archive.NewFetcher(store, archive.FetcherConfig{
		Timeout:  cfg.Apps.FetchTimeout,
		MaxBytes: cfg.Apps.MaxArchiveBytes,
	}, logger)
	if err != nil {
		return nil, err
	}

	eng := engine.New(logger)

	var recOpts []reconciler.Option
	if cfg.Server.RootApp != "" && cfg.Server.RootApp != config.RootStatic {
		recOpts = append(recOpts, reconciler.WithRootApp(cfg.Server.RootApp))
	}

	c := &Controller{
		opts:     opts,
		logger:   logger,
		selector: opts.Selector,
		listen:   opts.Listen,
		store:    store,
		engine:   eng,
		rec:      reconciler.New(store, eng, logger, recOpts...),
		fetcher:  fetcher,
		cfg:      cfg,
		status:   StatusStopped,
	}
	if c.selector == nil {
		c.selector = netbind.NewSelector(logger)
	}
	if c.listen == nil {
		c.listen = listener.Web
	}

	eng.SetSettingsHandler(c.settingsPage())
	return c, nil
}

// Engine returns the embedded engine.
func (c *Controller) Engine() *engine.Server { return c.engine }

// Reconciler returns the app reconciler.
func (c *Controller) Reconciler() *reconciler.Reconciler { return c.rec }

// Config returns the configuration currently in effect.
func (c *Controller) Config() *config.Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// Init applies settings, deploys everything found on disk and starts the
// optional archive watcher and rescan schedule.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.Config()
	c.applySettings(ctx, cfg)

	report, err := c.rec.Scan(ctx)
	if err != nil {
		c.logger.Warn("some apps failed to deploy", "failed", report.Failed, log.Error(err))
	}
	c.logger.Info("initial scan complete", "installed", len(report.Installed))

	if cfg.Apps.Watch {
		svc, err := filewatcher.NewService(filewatcher.Config{
			Dir:            c.store.Root(),
			DebounceWindow: cfg.Apps.WatchDebounce,
		}, c.rec.Redeploy, c.logger)
		if err != nil {
			return fmt.Errorf("create archive watcher: %w", err)
		}
		if err := svc.Start(ctx); err != nil {
			return fmt.Errorf("start archive watcher: %w", err)
		}
		c.watcher = svc
	}

	if cfg.Apps.RescanSchedule != "" {
		cr := cron.New()
		if _, err := cr.AddFunc(cfg.Apps.RescanSchedule, func() {
			c.RescanApps(context.Background())
		}); err != nil {
			return &webhosterrors.ConfigError{Key: "apps.rescan_schedule", Reason: "invalid cron expression", Cause: err}
		}
		cr.Start()
		c.cron = cr
		c.logger.Info("scheduled rescans enabled", "schedule", cfg.Apps.RescanSchedule)
	}
	return nil
}

// Close stops the listener, background work and every handler.
func (c *Controller) Close(ctx context.Context) error {
	if c.cron != nil {
		stopped := c.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
		}
	}
	if c.watcher != nil {
		if err := c.watcher.Stop(); err != nil {
			c.logger.Warn("archive watcher did not stop cleanly", log.Error(err))
		}
	}

	err := c.Stop()

	for _, prefix := range c.engine.Prefixes() {
		if h, ok := c.engine.Remove(prefix); ok {
			if err := h.Stop(); err != nil {
				c.logger.Warn("handler did not stop cleanly", "prefix", prefix, log.Error(err))
			}
		}
	}
	c.rec.Refresh()

	if prev := c.engine.SetAccessLog(nil); prev != nil {
		if err := prev.Close(); err != nil {
			c.logger.Warn("access log did not close cleanly", log.Error(err))
		}
	}
	return err
}

// Start re-reads settings, picks the bind address and starts the listener.
// It returns the address shown to operators. Calling Start while running
// only refreshes settings.
func (c *Controller) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := c.Config()
	if c.opts.Reload != nil {
		fresh, err := c.opts.Reload()
		if err != nil {
			c.logger.Warn("cannot reload settings, keeping current ones", log.Error(err))
		} else {
			cfg = fresh
			c.cfgMu.Lock()
			c.cfg = fresh
			c.cfgMu.Unlock()
			c.applySettings(ctx, cfg)
		}
	}

	// selection errors are logged by the selector and the result is still usable
	res, _ := c.selector.Select(ctx, cfg.Server.BindAddress, netbind.Mode(cfg.Server.BindMode))

	if err := c.SetLogging(cfg.Server.AccessLog); err != nil {
		c.logger.Warn("cannot configure access log", log.Error(err))
	}

	if c.Status() == StatusRunning {
		return res.Display, nil
	}

	var tlsConfig *tls.Config
	if cfg.Server.TLS {
		var err error
		tlsConfig, err = listener.LoadKeystore(cfg.KeystorePath())
		if err != nil {
			c.transition(EventStarted)
			c.transition(EventFailed)
			return "", err
		}
	}

	ln, err := c.listen(res.BindAddr, cfg.Server.Port, tlsConfig)
	if err != nil {
		c.transition(EventStarted)
		c.transition(EventFailed)
		return "", err
	}

	serve, err := c.engine.Prepare(ln)
	if err != nil {
		_ = ln.Close()
		c.transition(EventStarted)
		c.transition(EventFailed)
		return "", err
	}

	c.transition(EventStarted)
	done := make(chan struct{})
	c.done = done
	c.addr = ln.Addr()

	go func() {
		defer close(done)
		if err := serve(); err != nil {
			c.logger.Error("listener terminated", log.Error(err))
			c.transition(EventFailed)
			return
		}
		c.transition(EventExited)
	}()

	c.logger.Info("listener started", "addr", ln.Addr().String(), "display", res.Display, "tls", tlsConfig != nil)
	return res.Display, nil
}

// Stop closes the listener. Requests already being served may finish
// within the configured shutdown timeout.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	done := c.done
	if done == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Config().Server.ShutdownTimeout)
	defer cancel()
	err := c.engine.Shutdown(ctx)
	<-done
	c.done = nil
	c.addr = nil
	c.logger.Info("listener stopped")
	return err
}

// Status reports the listener status.
func (c *Controller) Status() Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

// Addr returns the listener address while running.
func (c *Controller) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

func (c *Controller) transition(ev Event) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	c.status = Transition(c.status, ev)
}

// SetLogging turns the access log on or off. Turning it on opens a new
// access-<millis>.log file.
func (c *Controller) SetLogging(enable bool) error {
	c.logMu.Lock()
	defer c.logMu.Unlock()

	if enable == c.engine.AccessLogEnabled() {
		return nil
	}
	if !enable {
		if prev := c.engine.SetAccessLog(nil); prev != nil {
			return prev.Close()
		}
		return nil
	}

	al, err := log.OpenAccessLog(c.Config().LogDir(), time.Now())
	if err != nil {
		return err
	}
	c.engine.SetAccessLog(al)
	c.logger.Info("access log enabled", log.PathKey, al.Path())
	return nil
}

// ListApps returns the registered app prefixes.
func (c *Controller) ListApps() []string {
	return c.rec.Apps()
}

// DeployFromURL downloads an archive and deploys it. It returns "" on
// success and a message describing the failure otherwise.
func (c *Controller) DeployFromURL(ctx context.Context, rawURL string) string {
	res, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		c.logger.Error("could not fetch archive", "url", archive.RedactURL(rawURL), log.Error(err))
		return err.Error()
	}
	if !res.Deployable {
		c.logger.Warn("archive stored but not deployed", log.PathKey, res.File, "reason", res.Reason)
		return res.Reason
	}
	if err := c.rec.Redeploy(ctx, res.Name); err != nil {
		c.logger.Error("could not deploy fetched archive", log.AppKey, res.Name, log.Error(err))
		return err.Error()
	}
	c.logger.Info("deployed from url", log.AppKey, res.Name, "bytes", res.Bytes)
	return ""
}

// RescanApps deploys anything on disk without a live handler and returns
// the refreshed app list.
func (c *Controller) RescanApps(ctx context.Context) []string {
	report, err := c.rec.Scan(ctx)
	if err != nil {
		c.logger.Warn("rescan finished with failures", "failed", report.Failed, log.Error(err))
	}
	return c.rec.Apps()
}

// AppInfo describes a registered app.
func (c *Controller) AppInfo(name string) (string, bool) {
	n, err := NormalizeName(name, c.rec.RootApp())
	if err != nil {
		return "", false
	}
	info, err := c.rec.Info(n)
	if err != nil {
		c.logger.Debug("no app to describe", log.AppKey, n)
		return "", false
	}
	return info, true
}

// StopApp stops an app's handler and returns the refreshed app list.
func (c *Controller) StopApp(ctx context.Context, name string) ([]string, error) {
	n, err := NormalizeName(name, c.rec.RootApp())
	if err != nil {
		return c.rec.Apps(), err
	}
	if !c.rec.Stop(ctx, n) {
		c.logger.Warn("no running app to stop", log.AppKey, n)
	}
	return c.rec.Apps(), nil
}

// RemoveApp deletes an app's archive and package. Removing an app that has
// no archive is logged and otherwise ignored.
func (c *Controller) RemoveApp(ctx context.Context, name string) error {
	n, err := NormalizeName(name, c.rec.RootApp())
	if err != nil {
		return err
	}
	err = c.rec.Remove(ctx, n)
	if webhosterrors.IsNotFound(err) {
		c.logger.Warn("cannot find app to remove", log.AppKey, n)
		return nil
	}
	return err
}

// RedeployApp redeploys an app from its archive and returns the refreshed
// app list.
func (c *Controller) RedeployApp(ctx context.Context, name string) ([]string, error) {
	n, err := NormalizeName(name, c.rec.RootApp())
	if err != nil {
		return c.rec.Apps(), err
	}
	err = c.rec.Redeploy(ctx, n)
	return c.rec.Apps(), err
}

// applySettings brings the realm and root mapping in line with cfg.
// Callers hold mu.
func (c *Controller) applySettings(ctx context.Context, cfg *config.Config) {
	if cfg.Server.AdminPassword != c.password {
		if cfg.Server.AdminPassword == "" {
			c.engine.SetRealm(nil)
		} else if realm, err := engine.NewRealm(RealmName, engine.DefaultRealmUser, cfg.Server.AdminPassword); err != nil {
			c.logger.Error("cannot configure settings realm", log.Error(err))
		} else {
			c.engine.SetRealm(realm)
		}
		c.password = cfg.Server.AdminPassword
	}

	key := cfg.Server.RootApp
	if key == config.RootStatic {
		key += cfg.WWWDir()
	}
	if key == c.rootKey {
		return
	}

	var err error
	switch cfg.Server.RootApp {
	case config.RootStatic:
		err = c.rec.MapRoot(ctx, "", handler.NewStatic(cfg.WWWDir(), handler.RootPrefix))
	default:
		err = c.rec.MapRoot(ctx, cfg.Server.RootApp, nil)
	}
	if err != nil {
		c.logger.Warn("root mapping incomplete", "root_app", cfg.Server.RootApp, log.Error(err))
	}
	c.rootKey = key
}
