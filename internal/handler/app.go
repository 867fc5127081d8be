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

package handler

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tombee/webhost/internal/archive"
	"github.com/tombee/webhost/internal/log"
)

// CacheIndexFile is the artifact App writes into the package cache on start.
const CacheIndexFile = "index.json"

// CacheIndex is the compiled view of a package, persisted in the cache dir.
type CacheIndex struct {
	App            string      `json:"app"`
	ManifestDigest string      `json:"manifest_digest,omitempty"`
	BuiltAt        time.Time   `json:"built_at"`
	Files          []IndexFile `json:"files"`
}

// IndexFile is one servable file in a CacheIndex.
type IndexFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// App serves one extracted package.
type App struct {
	name    string
	dir     string
	prefix  string
	logger  *slog.Logger
	running atomic.Bool

	mu       sync.RWMutex
	manifest Manifest
	index    *CacheIndex
	files    http.Handler
}

// NewApp creates a handler for the package at dir, mounted at prefix.
func NewApp(name, dir, prefix string, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		name:   name,
		dir:    dir,
		prefix: prefix,
		logger: log.WithApp(logger, name),
	}
}

// Start loads the manifest and builds the cache index, reusing a cached
// index when one is present and its manifest digest still matches.
func (a *App) Start() error {
	info, err := os.Stat(a.dir)
	if err != nil {
		return fmt.Errorf("package %s: %w", a.name, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("package %s: %s is not a directory", a.name, a.dir)
	}

	manifest, digest, err := LoadManifest(a.dir)
	if err != nil {
		return fmt.Errorf("package %s: %w", a.name, err)
	}

	idx, cached := a.readCache(digest)
	if !cached {
		idx, err = a.buildIndex(digest)
		if err != nil {
			return fmt.Errorf("package %s: %w", a.name, err)
		}
		if err := a.writeCache(idx); err != nil {
			return fmt.Errorf("package %s: %w", a.name, err)
		}
	}

	a.mu.Lock()
	a.manifest = manifest
	a.index = idx
	a.files = http.StripPrefix(MountPath(a.prefix), http.FileServer(http.Dir(a.dir)))
	a.mu.Unlock()

	a.running.Store(true)
	a.logger.Debug("app handler started", "files", len(idx.Files), "cached", cached)
	return nil
}

// Stop implements Handler.
func (a *App) Stop() error {
	a.running.Store(false)
	a.logger.Debug("app handler stopped")
	return nil
}

// Name returns the app name.
func (a *App) Name() string { return a.name }

// PathPrefix implements Handler.
func (a *App) PathPrefix() string { return a.prefix }

// Describe implements Handler.
func (a *App) Describe() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var b strings.Builder
	b.WriteString(a.name)
	if a.manifest.Version != "" {
		b.WriteString(" " + a.manifest.Version)
	}
	if a.manifest.Description != "" {
		b.WriteString(": " + a.manifest.Description)
	}
	files := 0
	if a.index != nil {
		files = len(a.index.Files)
	}
	fmt.Fprintf(&b, " (%s, %d files", a.prefix, files)
	if !a.running.Load() {
		b.WriteString(", stopped")
	}
	b.WriteString(")")
	return b.String()
}

// Index returns the cache index built at start, or nil before Start.
func (a *App) Index() *CacheIndex {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.index
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !a.running.Load() {
		Unavailable(w)
		return
	}

	a.mu.RLock()
	files, index := a.files, a.manifest.Index
	a.mu.RUnlock()

	mount := MountPath(a.prefix)
	if mount != "" && r.URL.Path == mount {
		http.Redirect(w, r, mount+"/", http.StatusMovedPermanently)
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, mount)
	if isPrivate(rel) {
		http.NotFound(w, r)
		return
	}

	if index != "" && (rel == "/" || rel == "") {
		a.serveIndex(w, r, index)
		return
	}
	files.ServeHTTP(w, r)
}

// serveIndex writes the manifest's index document directly. Going through
// the file server would redirect ".../index.html" back to the directory.
func (a *App) serveIndex(w http.ResponseWriter, r *http.Request, index string) {
	clean := path.Clean("/" + index)
	if isPrivate(clean) {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(filepath.Join(a.dir, filepath.FromSlash(clean)))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// isPrivate reports whether rel points into package metadata.
func isPrivate(rel string) bool {
	first := strings.SplitN(strings.TrimPrefix(path.Clean("/"+rel), "/"), "/", 2)[0]
	return strings.EqualFold(first, "META-INF") || strings.EqualFold(first, "WEB-INF")
}

func (a *App) cachePath() string {
	return filepath.Join(a.dir, filepath.FromSlash(archive.CacheDir), CacheIndexFile)
}

func (a *App) readCache(digest string) (*CacheIndex, bool) {
	data, err := os.ReadFile(a.cachePath())
	if err != nil {
		return nil, false
	}
	var idx CacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		a.logger.Warn("ignoring unreadable cache index", log.Error(err))
		return nil, false
	}
	if idx.App != a.name || idx.ManifestDigest != digest {
		return nil, false
	}
	return &idx, true
}

func (a *App) buildIndex(digest string) (*CacheIndex, error) {
	idx := &CacheIndex{App: a.name, ManifestDigest: digest, BuiltAt: time.Now().UTC()}
	err := filepath.WalkDir(a.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(a.dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && isPrivate(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		idx.Files = append(idx.Files, IndexFile{Path: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index package: %w", err)
	}
	return idx, nil
}

func (a *App) writeCache(idx *CacheIndex) error {
	p := a.cachePath()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache index: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write cache index: %w", err)
	}
	return nil
}
