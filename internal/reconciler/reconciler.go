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

// Package reconciler keeps the engine's handler table in step with the
// Archive Store: it discovers archives and extracted packages on disk and
// installs, redeploys, stops and removes apps while the engine keeps serving.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/webhost/internal/archive"
	"github.com/tombee/webhost/internal/handler"
	"github.com/tombee/webhost/internal/log"
	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

const tracerName = "github.com/tombee/webhost/internal/reconciler"

// Registry is the live prefix -> handler table the reconciler drives.
// engine.Server implements it.
type Registry interface {
	Add(h handler.Handler) error
	Replace(h handler.Handler) (handler.Handler, bool)
	Remove(prefix string) (handler.Handler, bool)
	Lookup(prefix string) (handler.Handler, bool)
	Prefixes() []string
}

// HandlerFactory builds the handler serving an extracted package.
type HandlerFactory func(name, dir, prefix string) handler.Handler

// ScanReport summarizes one Scan.
type ScanReport struct {
	Installed []string
	Failed    []string
}

// Reconciler serializes every mutating app operation behind one mutex.
// Info and Apps never take it.
type Reconciler struct {
	store    *archive.Store
	registry Registry
	logger   *slog.Logger
	tracer   trace.Tracer
	newApp   HandlerFactory

	mu sync.Mutex

	// rootApp is the app bound at "/*" instead of its own prefix.
	rootApp atomic.Value

	snapMu   sync.RWMutex
	snapshot []string
	stopped  map[string]bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithHandlerFactory overrides how package handlers are built.
func WithHandlerFactory(f HandlerFactory) Option {
	return func(r *Reconciler) { r.newApp = f }
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Reconciler) { r.tracer = t }
}

// WithRootApp binds the named app at the root prefix.
func WithRootApp(name string) Option {
	return func(r *Reconciler) { r.rootApp.Store(name) }
}

// New creates a Reconciler over store and registry.
func New(store *archive.Store, registry Registry, logger *slog.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reconciler{
		store:    store,
		registry: registry,
		logger:   log.WithComponent(logger, "reconciler"),
		tracer:   otel.Tracer(tracerName),
		stopped:  make(map[string]bool),
	}
	r.rootApp.Store("")
	r.newApp = func(name, dir, prefix string) handler.Handler {
		return handler.NewApp(name, dir, prefix, logger)
	}
	for _, opt := range opts {
		opt(r)
	}
	r.refresh()
	return r
}

// RootApp returns the app currently bound at the root prefix, if any.
func (r *Reconciler) RootApp() string {
	return r.rootApp.Load().(string)
}

// SetRootApp changes which app is bound at the root prefix. It only affects
// later installs; the caller moves any live handler.
func (r *Reconciler) SetRootApp(name string) {
	r.rootApp.Store(name)
}

// PrefixFor returns the registry prefix name is served at.
func (r *Reconciler) PrefixFor(name string) string {
	if name != "" && name == r.RootApp() {
		return handler.RootPrefix
	}
	return handler.Prefix(name)
}

// Scan installs every archive and every extracted package that has no live
// handler. A failing app never stops the scan; its error is joined into the
// returned error.
func (r *Reconciler) Scan(ctx context.Context) (ScanReport, error) {
	ctx, span, done := r.begin(ctx, "scan", "")
	r.mu.Lock()
	defer r.mu.Unlock()

	var report ScanReport
	var errs []error

	archives, err := r.store.List()
	if err != nil {
		done(err)
		return report, err
	}
	for _, name := range archives {
		if r.registered(name) {
			continue
		}
		r.logger.Info("found app that is not deployed", log.AppKey, name)
		if err := r.install(ctx, name, true); err != nil {
			report.Failed = append(report.Failed, name)
			errs = append(errs, err)
			continue
		}
		report.Installed = append(report.Installed, name)
	}

	packages, err := r.store.Packages()
	if err != nil {
		errs = append(errs, err)
	}
	for _, name := range packages {
		if archive.ValidName(name) != nil || r.registered(name) || contains(report.Failed, name) {
			continue
		}
		if !r.store.HasArchive(name) {
			r.logger.Warn("orphaned package has no archive", log.AppKey, name, log.PathKey, r.store.PackagePath(name))
		}
		if err := r.install(ctx, name, false); err != nil {
			report.Failed = append(report.Failed, name)
			errs = append(errs, err)
			continue
		}
		report.Installed = append(report.Installed, name)
	}

	r.refresh()
	span.SetAttributes(
		attribute.Int("installed", len(report.Installed)),
		attribute.Int("failed", len(report.Failed)),
	)
	err = webhosterrors.Join(errs...)
	done(err)
	return report, err
}

// Install extracts the archive for name and registers a started handler for
// it. An already registered handler is swapped out and stopped.
func (r *Reconciler) Install(ctx context.Context, name string) error {
	ctx, _, done := r.begin(ctx, "install", name)
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.install(ctx, name, true)
	r.refresh()
	done(err)
	return err
}

// Redeploy replaces the running version of name with a fresh extraction of
// its archive. The archive is checked first so a broken upload leaves the
// running version in place.
func (r *Reconciler) Redeploy(ctx context.Context, name string) error {
	ctx, _, done := r.begin(ctx, "redeploy", name)
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Verify(name); err != nil {
		done(err)
		return err
	}

	r.unregister(name)
	if err := r.store.ClearCache(name); err != nil {
		r.logger.Warn("cannot clear artifact cache", log.AppKey, name, log.Error(err))
	}

	err := r.install(ctx, name, true)
	r.refresh()
	done(err)
	return err
}

// Stop unregisters and stops the handler for name, leaving its archive and
// package on disk. It reports false when name was not registered.
func (r *Reconciler) Stop(ctx context.Context, name string) bool {
	_, _, done := r.begin(ctx, "stop", name)
	r.mu.Lock()
	defer r.mu.Unlock()

	ok := r.unregister(name)
	if ok {
		r.snapMu.Lock()
		r.stopped[name] = true
		r.snapMu.Unlock()
	}
	r.refresh()
	done(nil)
	return ok
}

// Remove deletes the archive, stops the handler and deletes the extracted
// package for name. A failed archive delete changes nothing else; a failed
// package delete is not rolled back.
func (r *Reconciler) Remove(ctx context.Context, name string) error {
	_, _, done := r.begin(ctx, "remove", name)
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := archive.ValidName(name); err != nil {
		done(err)
		return err
	}
	if err := r.store.RemoveArchive(name); err != nil {
		if webhosterrors.IsNotFound(err) {
			err = &webhosterrors.NotFoundError{Resource: "app", ID: name}
		}
		done(err)
		return err
	}

	r.unregister(name)
	r.snapMu.Lock()
	delete(r.stopped, name)
	r.snapMu.Unlock()
	r.refresh()

	err := r.store.RemovePackage(name)
	done(err)
	return err
}

// MapRoot changes what the root prefix serves: static when non-nil, else
// the named app, else nothing. Whatever held the root prefix is unloaded
// first, and an app leaving the root is reinstalled at its own prefix.
func (r *Reconciler) MapRoot(ctx context.Context, app string, static handler.Handler) error {
	ctx, _, done := r.begin(ctx, "map_root", app)
	r.mu.Lock()
	defer r.mu.Unlock()

	if static != nil {
		app = ""
	}
	prev := r.RootApp()
	if h, ok := r.registry.Remove(handler.RootPrefix); ok {
		if err := h.Stop(); err != nil {
			r.logger.Warn("root handler did not stop cleanly", log.Error(err))
		}
	}
	r.rootApp.Store(app)

	var errs []error
	if prev != "" && prev != app && r.store.HasPackage(prev) {
		if err := r.install(ctx, prev, false); err != nil {
			errs = append(errs, err)
		}
	}

	switch {
	case static != nil:
		if err := static.Start(); err != nil {
			errs = append(errs, fmt.Errorf("start root handler: %w", err))
		} else if err := r.registry.Add(static); err != nil {
			errs = append(errs, err)
		}
	case app != "":
		if h, ok := r.registry.Remove(handler.Prefix(app)); ok {
			if err := h.Stop(); err != nil {
				r.logger.Warn("handler did not stop cleanly", log.AppKey, app, log.Error(err))
			}
		}
		if r.store.HasArchive(app) || r.store.HasPackage(app) {
			if err := r.install(ctx, app, r.store.HasArchive(app)); err != nil {
				errs = append(errs, err)
			}
		}
	}

	r.refresh()
	err := webhosterrors.Join(errs...)
	done(err)
	return err
}

// Info describes the live handler for name.
func (r *Reconciler) Info(name string) (string, error) {
	h, ok := r.registry.Lookup(r.PrefixFor(name))
	if !ok {
		return "", &webhosterrors.NotFoundError{Resource: "app", ID: name}
	}
	return h.Describe(), nil
}

// Apps returns the registered prefixes as of the last mutating operation.
func (r *Reconciler) Apps() []string {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	out := make([]string, len(r.snapshot))
	copy(out, r.snapshot)
	return out
}

// Refresh rebuilds the app list from the registry. Callers that change the
// registry directly use it to keep Apps current.
func (r *Reconciler) Refresh() {
	r.refresh()
}

// install extracts (when asked), builds, starts and registers. Callers hold mu.
func (r *Reconciler) install(ctx context.Context, name string, extract bool) error {
	if err := archive.ValidName(name); err != nil {
		return &webhosterrors.DeployError{App: name, Reason: "invalid name", Cause: err}
	}
	if extract {
		if err := r.store.Extract(name); err != nil {
			return err
		}
	}
	if !r.store.HasPackage(name) {
		return &webhosterrors.DeployError{App: name, Reason: "package missing"}
	}

	h := r.newApp(name, r.store.PackagePath(name), r.PrefixFor(name))
	if err := h.Start(); err != nil {
		return &webhosterrors.DeployError{App: name, Reason: "handler failed to start", Cause: err}
	}

	if old, replaced := r.registry.Replace(h); replaced {
		if err := old.Stop(); err != nil {
			r.logger.Warn("displaced handler did not stop cleanly", log.AppKey, name, log.Error(err))
		}
	}

	r.snapMu.Lock()
	delete(r.stopped, name)
	r.snapMu.Unlock()

	r.logger.Info("app deployed", log.AppKey, name, log.PrefixKey, h.PathPrefix())
	trace.SpanFromContext(ctx).AddEvent("handler registered")
	return nil
}

// unregister removes and stops the handler for name. Callers hold mu.
func (r *Reconciler) unregister(name string) bool {
	h, ok := r.registry.Remove(r.PrefixFor(name))
	if !ok {
		return false
	}
	if err := h.Stop(); err != nil {
		r.logger.Warn("handler did not stop cleanly", log.AppKey, name, log.Error(err))
	}
	return true
}

func (r *Reconciler) registered(name string) bool {
	_, ok := r.registry.Lookup(r.PrefixFor(name))
	return ok
}

func (r *Reconciler) refresh() {
	prefixes := r.registry.Prefixes()
	sort.Strings(prefixes)
	r.snapMu.Lock()
	r.snapshot = prefixes
	r.snapMu.Unlock()
}

// begin opens the span for op and returns a func that records its outcome.
func (r *Reconciler) begin(ctx context.Context, op, name string) (context.Context, trace.Span, func(error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "reconciler."+op,
		trace.WithAttributes(attribute.String("app", name)))

	return ctx, span, func(err error) {
		defer span.End()
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.logger.Debug("operation failed", log.OpKey, op, log.AppKey, name, log.Error(err))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		operationsTotal.WithLabelValues(op, result).Inc()
		operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
