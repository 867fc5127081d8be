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

// Package engine is the embedded HTTP engine apps are hosted in: a table of
// handlers keyed by path prefix, prefix dispatch, an optional access log and
// a basic-auth realm for the settings page.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tombee/webhost/internal/handler"
	"github.com/tombee/webhost/internal/log"
)

// ErrPrefixTaken is returned by Add when a handler already owns the prefix.
var ErrPrefixTaken = errors.New("prefix already registered")

// SettingsPath is where the settings page is mounted, outside the handler table.
const SettingsPath = "/settings"

// Server hosts handlers behind one listener.
type Server struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]handler.Handler

	settings http.Handler
	realm    *Realm

	logMu     sync.RWMutex
	accessLog *log.AccessLog

	srvMu sync.Mutex
	srv   *http.Server
}

// New creates an engine with an empty handler table.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:   log.WithComponent(logger, "engine"),
		handlers: make(map[string]handler.Handler),
	}
}

// Add registers h at its prefix. It fails if the prefix is taken.
func (s *Server) Add(h handler.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := h.PathPrefix()
	if _, ok := s.handlers[prefix]; ok {
		return fmt.Errorf("%w: %s", ErrPrefixTaken, prefix)
	}
	s.handlers[prefix] = h
	registeredHandlers.Set(float64(len(s.handlers)))
	s.logger.Debug("handler added", log.PrefixKey, prefix)
	return nil
}

// Replace registers h at its prefix, returning the handler it displaced.
func (s *Server) Replace(h handler.Handler) (handler.Handler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := h.PathPrefix()
	old, ok := s.handlers[prefix]
	s.handlers[prefix] = h
	registeredHandlers.Set(float64(len(s.handlers)))
	s.logger.Debug("handler replaced", log.PrefixKey, prefix, "displaced", ok)
	return old, ok
}

// Remove unregisters the handler at prefix and returns it.
func (s *Server) Remove(prefix string) (handler.Handler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handlers[prefix]
	if ok {
		delete(s.handlers, prefix)
		registeredHandlers.Set(float64(len(s.handlers)))
		s.logger.Debug("handler removed", log.PrefixKey, prefix)
	}
	return h, ok
}

// Lookup returns the handler registered at prefix.
func (s *Server) Lookup(prefix string) (handler.Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[prefix]
	return h, ok
}

// Prefixes returns the registered prefixes in sorted order.
func (s *Server) Prefixes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.handlers))
	for p := range s.handlers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SetSettingsHandler mounts h at SettingsPath. Nil unmounts it.
func (s *Server) SetSettingsHandler(h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = h
}

// SetRealm protects SettingsPath with r. Nil removes protection.
func (s *Server) SetRealm(r *Realm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realm = r
}

// SetAccessLog installs al and returns the previous log, which the caller
// owns and should close. Nil disables access logging.
func (s *Server) SetAccessLog(al *log.AccessLog) *log.AccessLog {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	prev := s.accessLog
	s.accessLog = al
	return prev
}

// AccessLogEnabled reports whether an access log is installed.
func (s *Server) AccessLogEnabled() bool {
	s.logMu.RLock()
	defer s.logMu.RUnlock()
	return s.accessLog != nil
}

// match picks the handler for path: "/<first-segment>/*" first, then "/*".
func (s *Server) match(path string) (handler.Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if seg := firstSegment(path); seg != "" {
		if h, ok := s.handlers[handler.Prefix(seg)]; ok {
			return h, true
		}
	}
	h, ok := s.handlers[handler.RootPrefix]
	return h, ok
}

func (s *Server) settingsHandler() (http.Handler, *Realm) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, s.realm
}

func firstSegment(path string) string {
	p := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// ServeHTTP dispatches by prefix.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := log.NewResponseRecorder(w)

	s.dispatch(rec, r)

	requestsTotal.WithLabelValues(statusClass(rec.Status)).Inc()

	s.logMu.RLock()
	al := s.accessLog
	s.logMu.RUnlock()
	if al != nil {
		al.Record(r, rec.Status, rec.Bytes, time.Since(start))
	}
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == SettingsPath || strings.HasPrefix(r.URL.Path, SettingsPath+"/") {
		if settings, realm := s.settingsHandler(); settings != nil {
			if realm != nil {
				realm.Wrap(settings).ServeHTTP(w, r)
			} else {
				settings.ServeHTTP(w, r)
			}
			return
		}
	}

	h, ok := s.match(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.ServeHTTP(w, r)
}

// Serve runs the accept loop on ln until Shutdown or Close. It returns nil
// after a requested stop and the accept error otherwise.
func (s *Server) Serve(ln net.Listener) error {
	serve, err := s.Prepare(ln)
	if err != nil {
		return err
	}
	return serve()
}

// Prepare publishes the http.Server for ln and returns the blocking accept
// loop. A Shutdown issued after Prepare returns stops the loop even when it
// has not started accepting yet; ln is closed in that case.
func (s *Server) Prepare(ln net.Listener) (func() error, error) {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	s.srvMu.Lock()
	if s.srv != nil {
		s.srvMu.Unlock()
		return nil, errors.New("engine already serving")
	}
	s.srv = srv
	s.srvMu.Unlock()

	return func() error {
		s.logger.Info("listener accepting", "addr", ln.Addr().String())
		err := srv.Serve(ln)

		s.srvMu.Lock()
		if s.srv == srv {
			s.srv = nil
		}
		s.srvMu.Unlock()

		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}, nil
}

// Shutdown closes the listener and waits for in-flight requests until ctx
// expires, after which remaining connections are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown incomplete, closing connections", log.Error(err))
		return srv.Close()
	}
	return nil
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
