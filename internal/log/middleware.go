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
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Request represents an incoming control request for logging purposes.
type Request struct {
	// Method is the HTTP method.
	Method string

	// Path is the request path.
	Path string

	// RequestID is the unique ID for this specific request.
	RequestID string

	// RemoteAddr is the remote address of the client.
	RemoteAddr string
}

// Response represents a control response for logging purposes.
type Response struct {
	// Status is the HTTP status code written.
	Status int

	// DurationMs is the duration of the request in milliseconds.
	DurationMs int64
}

// LogRequest logs an incoming request.
func LogRequest(logger *slog.Logger, req *Request) {
	attrs := []any{
		EventKey, "request",
		"method", req.Method,
		PathKey, req.Path,
		"remote", req.RemoteAddr,
	}
	if req.RequestID != "" {
		attrs = append(attrs, "request_id", req.RequestID)
	}
	logger.Debug("request received", attrs...)
}

// LogResponse logs a completed request. Server errors are logged at error level.
func LogResponse(logger *slog.Logger, req *Request, resp *Response) {
	attrs := []any{
		EventKey, "response",
		"method", req.Method,
		PathKey, req.Path,
		"status", resp.Status,
		DurationKey, resp.DurationMs,
	}
	if req.RequestID != "" {
		attrs = append(attrs, "request_id", req.RequestID)
	}

	level := slog.LevelInfo
	message := "request completed"
	if resp.Status >= http.StatusInternalServerError {
		level = slog.LevelError
		message = "request failed"
	}

	logger.Log(context.Background(), level, message, attrs...)
}

// ResponseRecorder captures the status code and body size written through it.
type ResponseRecorder struct {
	http.ResponseWriter
	Status int
	Bytes  int64
}

// NewResponseRecorder wraps w. Status defaults to 200 until WriteHeader is called.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, Status: http.StatusOK}
}

// WriteHeader records the status code.
func (r *ResponseRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

// Write records the number of bytes written.
func (r *ResponseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.Bytes += int64(n)
	return n, err
}

// Middleware wraps an http.Handler with request/response logging.
// The request ID is read from the X-Request-ID response header, so this
// must run inside whatever assigns it.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			req := &Request{
				Method:     r.Method,
				Path:       r.URL.Path,
				RequestID:  w.Header().Get("X-Request-ID"),
				RemoteAddr: r.RemoteAddr,
			}
			LogRequest(logger, req)

			rec := NewResponseRecorder(w)
			next.ServeHTTP(rec, r)

			LogResponse(logger, req, &Response{
				Status:     rec.Status,
				DurationMs: time.Since(start).Milliseconds(),
			})
		})
	}
}
