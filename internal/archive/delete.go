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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

// ErrUnsupportedEntry is the cause reported when RemoveTree meets an entry
// that is neither a regular file nor a directory.
var ErrUnsupportedEntry = errors.New("entry is neither a regular file nor a directory")

// RemoveTree deletes root and everything below it, depth first.
//
// Any entry that is not a regular file or directory (symlink, device,
// socket, pipe) stops the walk immediately with a *RemoveError naming that
// entry. Deletions already made are not rolled back. A missing root is not
// an error.
func RemoveTree(root string) error {
	info, err := os.Lstat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &webhosterrors.RemoveError{Path: root, Cause: err}
	}
	return removeEntry(root, info)
}

func removeEntry(path string, info os.FileInfo) error {
	mode := info.Mode()
	switch {
	case mode.IsRegular():
		if err := os.Remove(path); err != nil {
			return &webhosterrors.RemoveError{Path: path, Cause: err}
		}
		return nil

	case mode.IsDir():
		entries, err := os.ReadDir(path)
		if err != nil {
			return &webhosterrors.RemoveError{Path: path, Cause: err}
		}
		for _, e := range entries {
			child := filepath.Join(path, e.Name())
			childInfo, err := os.Lstat(child)
			if err != nil {
				return &webhosterrors.RemoveError{Path: child, Cause: err}
			}
			if err := removeEntry(child, childInfo); err != nil {
				return err
			}
		}
		if err := os.Remove(path); err != nil {
			return &webhosterrors.RemoveError{Path: path, Cause: err}
		}
		return nil

	default:
		return &webhosterrors.RemoveError{
			Path:  path,
			Cause: fmt.Errorf("%w (mode %v)", ErrUnsupportedEntry, mode.Type()),
		}
	}
}
