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
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deployRecorder struct {
	mu    sync.Mutex
	names []string
}

func (r *deployRecorder) deploy(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	return nil
}

func (r *deployRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func TestService_DeploysDroppedArchive(t *testing.T) {
	dir := t.TempDir()
	rec := &deployRecorder{}
	svc, err := NewService(Config{Dir: dir, DebounceWindow: 50 * time.Millisecond}, rec.deploy,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.war"), []byte("zip"), 0o644))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) > 0
	}, 3*time.Second, 20*time.Millisecond)

	// several write events for one copy settle into one deploy
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{"shop"}, rec.snapshot())
}

func TestService_StartTwice(t *testing.T) {
	svc, err := NewService(Config{Dir: t.TempDir(), DebounceWindow: time.Millisecond},
		func(context.Context, string) error { return nil }, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Start(context.Background()))
	assert.Error(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop())
	assert.NoError(t, svc.Stop())
}

func TestService_MissingDir(t *testing.T) {
	svc, err := NewService(Config{Dir: filepath.Join(t.TempDir(), "nope")},
		func(context.Context, string) error { return nil }, nil)
	require.NoError(t, err)
	assert.Error(t, svc.Start(context.Background()))
}

func TestService_RateLimited(t *testing.T) {
	svc, err := NewService(Config{Dir: t.TempDir(), MaxDeploysPerMinute: 1},
		func(context.Context, string) error { return nil }, nil)
	require.NoError(t, err)

	var calls int
	svc.deploy = func(context.Context, string) error { calls++; return nil }

	ev := NewEvent("/w/shop.war", OpCreated, 1, time.Now())
	svc.handle(context.Background(), ev)
	svc.handle(context.Background(), ev)
	assert.Equal(t, 1, calls)
}
