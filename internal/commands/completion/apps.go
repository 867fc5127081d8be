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


package completion

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/webhost/internal/commands/shared"
)

const (
	appCacheTTL   = 2 * time.Second
	daemonTimeout = 500 * time.Millisecond
)

type appCacheEntry struct {
	apps      []string
	expiresAt time.Time
}

var (
	appCache   *appCacheEntry
	appCacheMu sync.RWMutex
)

// CompleteAppNames completes the first argument with the keys of the apps
// webhostd is serving. Results are cached for two seconds so repeated TAB
// presses don't hit the daemon each time.
func CompleteAppNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		apps, err := listApps()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		var completions []string
		for _, app := range apps {
			if strings.HasPrefix(app, toComplete) {
				completions = append(completions, app)
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})
}

func listApps() ([]string, error) {
	appCacheMu.RLock()
	if appCache != nil && time.Now().Before(appCache.expiresAt) {
		apps := appCache.apps
		appCacheMu.RUnlock()
		return apps, nil
	}
	appCacheMu.RUnlock()

	c, err := shared.NewClient()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), daemonTimeout)
	defer cancel()

	apps, err := c.ListApps(ctx)
	if err != nil {
		return nil, err
	}

	appCacheMu.Lock()
	appCache = &appCacheEntry{apps: apps, expiresAt: time.Now().Add(appCacheTTL)}
	appCacheMu.Unlock()
	return apps, nil
}

func resetAppCache() {
	appCacheMu.Lock()
	appCache = nil
	appCacheMu.Unlock()
}
