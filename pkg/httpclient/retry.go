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


package httpclient

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// retryTransport re-sends a request that failed before a usable response
// arrived. It only ever retries the round trip: once a response is handed
// back, reading the body (and aborting it, e.g. on a size cap) is the
// caller's business and never triggers another attempt.
type retryTransport struct {
	base          http.RoundTripper
	maxAttempts   int
	baseBackoff   time.Duration
	maxBackoff    time.Duration
	retryTimeouts bool
	allowUnsafe   bool
}

func newRetryTransport(base http.RoundTripper, cfg Config) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &retryTransport{
		base:          base,
		maxAttempts:   cfg.RetryAttempts + 1,
		baseBackoff:   cfg.RetryBackoff,
		maxBackoff:    cfg.MaxBackoff,
		retryTimeouts: cfg.RetryTimeouts,
		allowUnsafe:   cfg.AllowNonIdempotentRetry,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.canRetry(req) {
		return t.base.RoundTrip(req)
	}

	var (
		lastErr  error
		lastResp *http.Response
	)
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := t.wait(req, attempt-1, lastResp); err != nil {
				return nil, err
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				req.Body = body
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil && req.Context().Err() != nil {
			return nil, err
		}
		switch {
		case err != nil && !t.isRetryableError(err):
			return nil, err
		case err == nil && !shouldRetryStatus(resp.StatusCode):
			return resp, nil
		}

		lastErr, lastResp = err, resp
		if attempt < t.maxAttempts && resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	// the last retryable response goes back to the caller with its body open
	return lastResp, nil
}

// canRetry reports whether req may be sent more than once: safe methods
// always, others only when explicitly allowed and the body can be replayed.
func (t *retryTransport) canRetry(req *http.Request) bool {
	switch strings.ToUpper(req.Method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	if !t.allowUnsafe {
		return false
	}
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func (t *retryTransport) wait(req *http.Request, retry int, prev *http.Response) error {
	delay := t.backoff(retry)
	if prev != nil {
		if ra := parseRetryAfter(prev); ra > 0 && ra < delay {
			delay = ra
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-req.Context().Done():
		return req.Context().Err()
	}
}

// shouldRetryStatus reports server-side conditions worth another attempt.
func shouldRetryStatus(code int) bool {
	return code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

// isRetryableError separates transient transport failures from final ones.
// Timeouts count as transient only when retryTimeouts is set, so a caller
// with a fixed time bound never waits for a second timeout.
func (t *retryTransport) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return t.retryTimeouts
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return t.isRetryableError(urlErr.Err)
	}

	msg := strings.ToLower(err.Error())
	for _, transient := range []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"temporary failure in name resolution",
		"eof",
	} {
		if strings.Contains(msg, transient) {
			return true
		}
	}
	return false
}

// backoff returns baseBackoff * 2^(retry-1), capped at maxBackoff, plus up
// to 20% jitter.
func (t *retryTransport) backoff(retry int) time.Duration {
	d := float64(t.baseBackoff) * math.Pow(2, float64(retry-1))
	if d > float64(t.maxBackoff) {
		d = float64(t.maxBackoff)
	}
	return time.Duration(d + rand.Float64()*d*0.2)
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date. Zero means
// absent or unusable.
func parseRetryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
