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

package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tombee/webhost/internal/log"
	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

// Verify opens the archive for name and checks its central directory
// without extracting anything.
func (s *Store) Verify(name string) error {
	if err := ValidName(name); err != nil {
		return &webhosterrors.DeployError{App: name, Reason: "invalid name", Cause: err}
	}
	r, err := zip.OpenReader(s.ArchivePath(name))
	if err != nil {
		return archiveError(name, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if _, err := entryTarget(s.PackagePath(name), f); err != nil {
			return &webhosterrors.DeployError{App: name, Reason: "unsafe archive entry", Cause: err}
		}
	}
	return nil
}

// Extract unpacks the archive for name over its package directory,
// overwriting files that already exist there. Files present only in a stale
// extraction are left in place.
func (s *Store) Extract(name string) error {
	if err := ValidName(name); err != nil {
		return &webhosterrors.DeployError{App: name, Reason: "invalid name", Cause: err}
	}

	r, err := zip.OpenReader(s.ArchivePath(name))
	if err != nil {
		return archiveError(name, err)
	}
	defer r.Close()

	dest := s.PackagePath(name)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return &webhosterrors.DeployError{App: name, Reason: "cannot create package directory", Cause: err}
	}

	for _, f := range r.File {
		target, err := entryTarget(dest, f)
		if err != nil {
			return &webhosterrors.DeployError{App: name, Reason: "unsafe archive entry", Cause: err}
		}
		if err := extractEntry(f, target); err != nil {
			return &webhosterrors.DeployError{App: name, Reason: fmt.Sprintf("extracting %s", f.Name), Cause: err}
		}
		log.Trace(s.logger, "extracted entry", log.String(log.AppKey, name), log.String(log.PathKey, f.Name))
	}

	s.logger.Debug("archive extracted", log.AppKey, name, "entries", len(r.File))
	return nil
}

func archiveError(name string, err error) error {
	if errors.Is(err, zip.ErrInsecurePath) {
		return &webhosterrors.DeployError{App: name, Reason: "unsafe archive entry", Cause: err}
	}
	if os.IsNotExist(err) {
		return &webhosterrors.DeployError{App: name, Reason: "archive missing", Cause: err}
	}
	return &webhosterrors.DeployError{App: name, Reason: "archive is not a valid zip file", Cause: err}
}

// entryTarget resolves where f extracts to, rejecting entries that escape
// dest or are symbolic links.
func entryTarget(dest string, f *zip.File) (string, error) {
	if f.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("symbolic link entry %q", f.Name)
	}
	target := filepath.Join(dest, filepath.FromSlash(f.Name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(f.Name) {
		return "", fmt.Errorf("entry %q escapes the package directory", f.Name)
	}
	return target, nil
}

func extractEntry(f *zip.File, target string) error {
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
