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

package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/tombee/webhost/internal/daemon/httputil"
	"github.com/tombee/webhost/internal/log"
)

// Middleware rejects control requests that lack a valid bearer token.
type Middleware struct {
	jwt    JWTConfig
	logger *slog.Logger
}

// NewMiddleware creates a middleware checking tokens against cfg.
func NewMiddleware(cfg JWTConfig, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{jwt: cfg, logger: logger}
}

// Wrap requires a valid token on every route except /v1/health.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			unauthorized(w, "Authentication required")
			return
		}
		if _, err := ValidateJWT(token, m.jwt); err != nil {
			m.logger.Warn("rejected control request",
				"method", r.Method,
				log.PathKey, r.URL.Path,
				"remote_addr", r.RemoteAddr,
				log.Error(err))
			unauthorized(w, "Invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from the Authorization header. The scheme
// is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	const prefix = "bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httputil.WriteError(w, http.StatusUnauthorized, message)
}
