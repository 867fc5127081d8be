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

package log

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AccessLog writes one structured line per served request to a file that is
// created fresh for every listener start (access-<unixmillis>.log).
type AccessLog struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	logger *slog.Logger
}

// AccessLogName returns the file name used for an access log opened at t.
func AccessLogName(t time.Time) string {
	return fmt.Sprintf("access-%d.log", t.UnixMilli())
}

// OpenAccessLog creates dir if needed and opens a new access log file in it.
func OpenAccessLog(dir string, now time.Time) (*AccessLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(dir, AccessLogName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open access log: %w", err)
	}
	return &AccessLog{
		file:   f,
		path:   path,
		logger: slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}, nil
}

// Path returns the file the log writes to.
func (a *AccessLog) Path() string {
	return a.path
}

// Record writes one access entry.
func (a *AccessLog) Record(r *http.Request, status int, size int64, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}
	a.logger.Info("access",
		"remote", r.RemoteAddr,
		"method", r.Method,
		PathKey, r.URL.RequestURI(),
		"proto", r.Proto,
		"status", status,
		"bytes", size,
		DurationKey, elapsed.Milliseconds(),
		"user_agent", r.UserAgent(),
	)
}

// Close flushes and closes the file. Later Record calls are dropped.
func (a *AccessLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}
