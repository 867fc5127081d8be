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

// Package listener opens the control API socket and the web listener.
package listener

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tombee/webhost/internal/config"
)

// New opens the control API listener.
// Priority: TCP (if configured) > Unix socket (default)
func New(cfg config.ControlConfig) (net.Listener, error) {
	if cfg.TCPAddr != "" {
		return newTCPListener(cfg)
	}
	return newUnixListener(cfg.SocketPath)
}

func newUnixListener(socketPath string) (net.Listener, error) {
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	// a stale socket from a crashed daemon blocks Listen
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on Unix socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return ln, nil
}

func newTCPListener(cfg config.ControlConfig) (net.Listener, error) {
	if !cfg.AllowRemote && IsRemoteAddr(cfg.TCPAddr) {
		return nil, fmt.Errorf(
			"binding the control API to %s exposes app management to the network.\n"+
				"To expose it, set control.allow_remote: true and a control.auth_secret of at least 32 bytes",
			cfg.TCPAddr,
		)
	}

	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on TCP: %w", err)
	}
	return ln, nil
}

// IsRemoteAddr returns true if addr binds to non-localhost interfaces.
func IsRemoteAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		if strings.HasPrefix(addr, ":") {
			host = ""
		}
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		return true
	}
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return false
	}
	return true
}

// Web opens the listener apps are served on. An empty bindAddr listens on
// all interfaces. When tlsConfig is non-nil connections are served over TLS.
func Web(bindAddr string, port int, tlsConfig *tls.Config) (net.Listener, error) {
	addr := net.JoinHostPort(bindAddr, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if tlsConfig != nil {
		return tls.NewListener(ln, tlsConfig), nil
	}
	return ln, nil
}

// LoadKeystore reads a PEM file holding both the certificate chain and its
// private key and returns a server TLS config for it.
func LoadKeystore(path string) (*tls.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	cert, err := tls.X509KeyPair(data, data)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ParseHost parses a WEBHOST_HOST value into a control config.
// Supports:
//   - unix:///path/to/socket
//   - tcp://host:port
func ParseHost(host string) (*config.ControlConfig, error) {
	if host == "" {
		return nil, nil
	}

	cfg := &config.ControlConfig{}
	switch {
	case strings.HasPrefix(host, "unix://"):
		cfg.SocketPath = strings.TrimPrefix(host, "unix://")
	case strings.HasPrefix(host, "tcp://"):
		cfg.TCPAddr = strings.TrimPrefix(host, "tcp://")
	default:
		return nil, fmt.Errorf("invalid WEBHOST_HOST format: %s (must start with unix:// or tcp://)", host)
	}
	return cfg, nil
}
