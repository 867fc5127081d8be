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

package filewatcher

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ArchivePattern matches web archive file names with any extension casing.
const ArchivePattern = "*.[wW][aA][rR]"

// PatternMatcher handles include and exclude glob matching on file names.
type PatternMatcher struct {
	includePatterns []string
	excludePatterns []string
}

// NewPatternMatcher validates and returns a matcher. With no include
// patterns every name is included; excludes are applied afterwards.
func NewPatternMatcher(includePatterns, excludePatterns []string) (*PatternMatcher, error) {
	for _, pattern := range append(append([]string{}, includePatterns...), excludePatterns...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
	}
	return &PatternMatcher{
		includePatterns: includePatterns,
		excludePatterns: excludePatterns,
	}, nil
}

// Match reports whether path's base name is included and not excluded.
func (pm *PatternMatcher) Match(path string) bool {
	base := filepath.Base(path)

	included := len(pm.includePatterns) == 0
	for _, pattern := range pm.includePatterns {
		if matched, _ := doublestar.Match(pattern, base); matched {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for _, pattern := range pm.excludePatterns {
		if matched, _ := doublestar.Match(pattern, base); matched {
			return false
		}
	}
	return true
}

// DefaultExcludePatterns returns partial-download and editor files that may
// carry an archive extension while they are still being written.
func DefaultExcludePatterns() []string {
	return []string{
		".*",
		"*~",
		"*.tmp",
		"*.part",
		"*.crdownload",
	}
}
