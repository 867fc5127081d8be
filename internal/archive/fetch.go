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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/tombee/webhost/internal/log"
	webhosterrors "github.com/tombee/webhost/pkg/errors"
	"github.com/tombee/webhost/pkg/httpclient"
)

// FetcherConfig bounds archive downloads.
type FetcherConfig struct {
	// Timeout bounds connecting and waiting for response headers.
	// The body transfer itself is bounded by MaxBytes only.
	Timeout time.Duration

	// MaxBytes caps the stored file size.
	MaxBytes int64

	// UserAgent is sent with every download.
	UserAgent string
}

// FetchResult describes a downloaded file.
type FetchResult struct {
	// File is the stored file name (last URL path segment).
	File string

	// Name is the app name derived from File, empty when not deployable.
	Name string

	// Deployable is false when File lacks the archive extension. The file
	// is still kept in the store.
	Deployable bool

	// Reason explains why the file is not deployable.
	Reason string

	// Bytes is the number of bytes stored.
	Bytes int64
}

// Fetcher downloads archives from http(s) URLs into a Store.
type Fetcher struct {
	store  *Store
	client *http.Client
	cfg    FetcherConfig
	logger *slog.Logger
}

// NewFetcher creates a Fetcher writing into store.
func NewFetcher(store *Store, cfg FetcherConfig, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBytes <= 0 {
		return nil, &webhosterrors.ValidationError{Field: "max_bytes", Message: "must be positive"}
	}

	hc := httpclient.DefaultConfig()
	hc.Timeout = 0
	hc.ConnectTimeout = cfg.Timeout
	hc.ResponseHeaderTimeout = cfg.Timeout
	// one retry for refused or reset connections and 5xx answers; a timeout
	// is final so a download never waits longer than one Timeout for headers
	hc.RetryAttempts = 1
	hc.RetryTimeouts = false
	hc.Logger = log.WithComponent(logger, "fetch")
	if cfg.UserAgent != "" {
		hc.UserAgent = cfg.UserAgent
	}
	client, err := httpclient.New(hc)
	if err != nil {
		return nil, fmt.Errorf("create fetch client: %w", err)
	}

	return &Fetcher{store: store, client: client, cfg: cfg, logger: logger}, nil
}

// FileFromURL returns the file name a download of rawURL is stored under.
func FileFromURL(rawURL string) (*url.URL, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", &webhosterrors.ValidationError{Field: "url", Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", &webhosterrors.ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
		}
	}
	if u.Host == "" {
		return nil, "", &webhosterrors.ValidationError{Field: "url", Message: "missing host"}
	}
	file := path.Base(u.Path)
	if file == "/" || file == "." || file == "" {
		return nil, "", &webhosterrors.ValidationError{Field: "url", Message: "URL does not name a file"}
	}
	if err := ValidName(file); err != nil {
		return nil, "", err
	}
	return u, file, nil
}

// Fetch downloads rawURL into the store under its last path segment.
//
// The body streams into a temporary file in the store which is renamed into
// place only once complete, so a failed or oversized transfer never leaves a
// partial archive behind. The extension is checked after the file is stored.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	u, file, err := FileFromURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &webhosterrors.DeployError{App: file, Reason: "cannot build request", Cause: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.transferError(file, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &webhosterrors.DeployError{App: file, Reason: fmt.Sprintf("server returned %s", resp.Status)}
	}
	if resp.ContentLength > f.cfg.MaxBytes {
		return nil, &webhosterrors.DeployError{
			App:    file,
			Reason: fmt.Sprintf("archive size %d exceeds limit of %d bytes", resp.ContentLength, f.cfg.MaxBytes),
		}
	}

	n, err := f.store.writeFile(file, io.LimitReader(resp.Body, f.cfg.MaxBytes+1), f.cfg.MaxBytes)
	if err != nil {
		var de *webhosterrors.DeployError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, f.transferError(file, err)
	}

	result := &FetchResult{File: file, Bytes: n}
	if name, ok := NameFromFile(file); ok {
		result.Name = name
		result.Deployable = true
	} else {
		result.Reason = "Invalid extension for web archive file: " + file
	}

	f.logger.Info("archive fetched",
		"file", file,
		"bytes", n,
		"deployable", result.Deployable,
		"url", httpclient.SanitizeURL(u),
	)
	return result, nil
}

// RedactURL renders rawURL for logs with credentials removed.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "(unparseable url)"
	}
	return httpclient.SanitizeURL(u)
}

func (f *Fetcher) transferError(file string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = RedactURL(urlErr.URL)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &webhosterrors.DeployError{
			App:    file,
			Reason: "transfer timed out",
			Cause:  &webhosterrors.TimeoutError{Operation: "archive fetch", Duration: f.cfg.Timeout, Cause: err},
		}
	}
	return &webhosterrors.DeployError{App: file, Reason: "transfer failed", Cause: err}
}

// writeFile streams r into the store as file via a temporary file.
// More than limit bytes aborts the write and removes the temporary file.
func (s *Store) writeFile(file string, r io.Reader, limit int64) (int64, error) {
	tmp, err := os.CreateTemp(s.root, ".fetch-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return n, err
	}
	if n > limit {
		tmp.Close()
		return n, &webhosterrors.DeployError{
			App:    file,
			Reason: fmt.Sprintf("archive exceeds limit of %d bytes", limit),
		}
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}

	if err := os.Rename(tmpPath, filepath.Join(s.root, file)); err != nil {
		return n, err
	}
	committed = true
	return n, nil
}
