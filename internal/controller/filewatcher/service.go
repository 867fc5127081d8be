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

// Package filewatcher redeploys web archives as they are dropped into or
// rewritten in the Archive Store directory.
package filewatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tombee/webhost/internal/archive"
	"github.com/tombee/webhost/internal/log"
)

// DeployFunc deploys the archive for name.
type DeployFunc func(ctx context.Context, name string) error

// Config configures the watch service.
type Config struct {
	// Dir is the archive directory to watch
	Dir string

	// DebounceWindow is how long a file must stay quiet before it is deployed
	DebounceWindow time.Duration

	// MaxDeploysPerMinute limits watcher-triggered deploys. Zero means no limit.
	MaxDeploysPerMinute int

	// ExcludePatterns override DefaultExcludePatterns when non-nil
	ExcludePatterns []string
}

// Service watches the archive directory and deploys settled archives.
type Service struct {
	cfg     Config
	deploy  DeployFunc
	logger  *slog.Logger
	matcher *PatternMatcher
	limiter *rate.Limiter

	mu        sync.Mutex
	watcher   *Watcher
	debouncer *Debouncer
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewService creates a watch service. Call Start to begin watching.
func NewService(cfg Config, deploy DeployFunc, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	excludes := cfg.ExcludePatterns
	if excludes == nil {
		excludes = DefaultExcludePatterns()
	}
	matcher, err := NewPatternMatcher([]string{ArchivePattern}, excludes)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		deploy:  deploy,
		logger:  log.WithComponent(logger, "filewatcher"),
		matcher: matcher,
	}
	if cfg.MaxDeploysPerMinute > 0 {
		perSecond := float64(cfg.MaxDeploysPerMinute) / 60.0
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), cfg.MaxDeploysPerMinute)
	}
	return s, nil
}

// Start begins watching. It fails if the directory cannot be watched.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return fmt.Errorf("watch service already started")
	}

	w, err := NewWatcher(s.cfg.Dir, s.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.watcher = w
	s.debouncer = NewDebouncer(s.cfg.DebounceWindow, func(ev *Event) {
		s.handle(ctx, ev)
	})

	w.Start(ctx)
	s.wg.Add(1)
	go s.loop(w, s.debouncer)

	s.logger.Info("watching archive directory", log.PathKey, s.cfg.Dir)
	return nil
}

// Stop ends watching. Pending, not yet settled events are dropped.
func (s *Service) Stop() error {
	s.mu.Lock()
	w, d, cancel := s.watcher, s.debouncer, s.cancel
	s.watcher, s.debouncer, s.cancel = nil, nil, nil
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	d.Stop()
	cancel()
	err := w.Stop()
	s.wg.Wait()
	return err
}

func (s *Service) loop(w *Watcher, d *Debouncer) {
	defer s.wg.Done()
	for ev := range w.Events() {
		if !s.matcher.Match(ev.Path) {
			recordSkipped("pattern")
			continue
		}
		d.Add(ev)
	}
}

func (s *Service) handle(ctx context.Context, ev *Event) {
	if ctx.Err() != nil {
		return
	}
	name, ok := archive.NameFromFile(ev.Name)
	if !ok {
		recordSkipped("name")
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		recordSkipped("rate_limited")
		s.logger.Warn("deploy rate limit reached, skipping", log.AppKey, name)
		return
	}

	s.logger.Info("archive changed, deploying", log.AppKey, name, "op", ev.Op)
	if err := s.deploy(ctx, name); err != nil {
		recordDeploy("error")
		s.logger.Error("watched deploy failed", log.AppKey, name, log.Error(err))
		return
	}
	recordDeploy("ok")
}
