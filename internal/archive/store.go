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

// Package archive manages the on-disk Archive Store: web archive files in the
// store root and their extracted packages under the deploy target directory.
package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

const (
	// Ext is the web archive file extension.
	Ext = ".war"

	// TargetDir is the store subdirectory holding extracted packages.
	TargetDir = ".web-apps-target"

	// CacheDir is the compiled artifact cache inside an extracted package.
	// It is invalidated on every redeploy.
	CacheDir = "META-INF/cache/webhost"
)

// archivePattern matches archive file names with any casing of the extension.
const archivePattern = "*.[wW][aA][rR]"

// Store is a directory of archives plus the extracted-package subdirectory.
// It holds no state beyond what is on disk.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore opens (creating if needed) the store rooted at root.
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	if root == "" {
		return nil, &webhosterrors.ValidationError{Field: "root", Message: "store root must not be empty"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(root, TargetDir), 0o755); err != nil {
		return nil, fmt.Errorf("create archive store: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Root returns the directory archives live in.
func (s *Store) Root() string { return s.root }

// TargetRoot returns the directory extracted packages live in.
func (s *Store) TargetRoot() string { return filepath.Join(s.root, TargetDir) }

// ArchivePath returns the archive file for name.
func (s *Store) ArchivePath(name string) string {
	return filepath.Join(s.root, name+Ext)
}

// PackagePath returns the extracted package directory for name.
func (s *Store) PackagePath(name string) string {
	return filepath.Join(s.root, TargetDir, name)
}

// CachePath returns the compiled artifact cache directory for name.
func (s *Store) CachePath(name string) string {
	return filepath.Join(s.PackagePath(name), filepath.FromSlash(CacheDir))
}

// ValidName reports whether name can identify an app: non-empty, not a dot
// segment and free of path separators.
func ValidName(name string) error {
	switch {
	case name == "":
		return &webhosterrors.ValidationError{Field: "name", Message: "app name must not be empty"}
	case name == "." || name == "..":
		return &webhosterrors.ValidationError{Field: "name", Message: fmt.Sprintf("%q is not a valid app name", name)}
	case strings.ContainsAny(name, `/\`):
		return &webhosterrors.ValidationError{
			Field:      "name",
			Message:    fmt.Sprintf("app name %q must not contain path separators", name),
			Suggestion: "Use the bare app name, e.g. 'shop' rather than '/shop/*'",
		}
	case strings.ContainsRune(name, 0):
		return &webhosterrors.ValidationError{Field: "name", Message: "app name must not contain NUL"}
	}
	return nil
}

// NameFromFile strips the archive extension from a file name. It reports
// false when the extension is wrong or nothing remains once it is removed.
func NameFromFile(file string) (string, bool) {
	base := filepath.Base(file)
	if matched, _ := doublestar.Match(archivePattern, base); !matched {
		return "", false
	}
	name := base[:len(base)-len(Ext)]
	if name == "" {
		return "", false
	}
	return name, true
}

// List returns the names of all archives in the store, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name, ok := NameFromFile(e.Name())
		if !ok || ValidName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Packages returns the names of all extracted package directories, sorted.
func (s *Store) Packages() ([]string, error) {
	entries, err := os.ReadDir(s.TargetRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list packages: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// HasArchive reports whether an archive file exists for name.
func (s *Store) HasArchive(name string) bool {
	info, err := os.Stat(s.ArchivePath(name))
	return err == nil && info.Mode().IsRegular()
}

// HasPackage reports whether an extracted package exists for name.
func (s *Store) HasPackage(name string) bool {
	info, err := os.Stat(s.PackagePath(name))
	return err == nil && info.IsDir()
}

// RemoveArchive deletes the archive file for name.
func (s *Store) RemoveArchive(name string) error {
	path := s.ArchivePath(name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return &webhosterrors.NotFoundError{Resource: "archive", ID: name}
		}
		return &webhosterrors.RemoveError{App: name, Path: path, Cause: err}
	}
	return nil
}

// RemovePackage recursively deletes the extracted package for name.
func (s *Store) RemovePackage(name string) error {
	return s.removeTree(name, s.PackagePath(name))
}

// ClearCache deletes the compiled artifact cache for name.
func (s *Store) ClearCache(name string) error {
	return s.removeTree(name, s.CachePath(name))
}

func (s *Store) removeTree(name, path string) error {
	err := RemoveTree(path)
	if err == nil {
		return nil
	}
	var re *webhosterrors.RemoveError
	if webhosterrors.As(err, &re) {
		re.App = name
		return re
	}
	return &webhosterrors.RemoveError{App: name, Path: path, Cause: err}
}
