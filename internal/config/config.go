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

// Package config loads and validates webhost configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

// BindMode selects which kind of interface address the listener prefers
// when no bind address is configured.
type BindMode string

const (
	// BindLoopback prefers a loopback address.
	BindLoopback BindMode = "loopback"
	// BindNonLoopback prefers a routable non-loopback address.
	BindNonLoopback BindMode = "non_loopback"
)

const (
	// DefaultMaxArchiveBytes caps a single archive download (512 MiB).
	DefaultMaxArchiveBytes int64 = 512 << 20

	// RootStatic is the root_app value that maps "/" to the static www folder.
	RootStatic = "/"

	minAuthSecretBytes = 32
)

// Config represents the complete webhost configuration.
type Config struct {
	// StorageRoot holds webapps/, log/, key/ and www/.
	StorageRoot string `yaml:"storage_root" toml:"storage_root"`

	// Server configures the embedded web listener.
	Server ServerConfig `yaml:"server" toml:"server"`

	// Apps configures archive discovery and deployment.
	Apps AppsConfig `yaml:"apps" toml:"apps"`

	// Control configures the control API used by the CLI.
	Control ControlConfig `yaml:"control" toml:"control"`

	// Log configures process logging.
	Log LogConfig `yaml:"log" toml:"log"`

	// PIDFile is the daemon PID file path. Defaults to <storage_root>/webhostd.pid.
	PIDFile string `yaml:"pid_file,omitempty" toml:"pid_file,omitempty"`
}

// ServerConfig configures the embedded web listener.
type ServerConfig struct {
	// BindAddress overrides interface selection. A host name or literal;
	// "0.0.0.0" or "::" binds all interfaces.
	BindAddress string `yaml:"bind_address,omitempty" toml:"bind_address,omitempty"`

	// Port is the listener port.
	Port int `yaml:"port" toml:"port"`

	// TLS serves HTTPS using <storage_root>/key/keystore.
	TLS bool `yaml:"tls" toml:"tls"`

	// BindMode picks the interface class used without a bind address.
	BindMode BindMode `yaml:"bind_mode" toml:"bind_mode"`

	// RootApp is "" (nothing at /), "/" (static www folder) or an app name.
	RootApp string `yaml:"root_app,omitempty" toml:"root_app,omitempty"`

	// WWWFolder is the static folder served when RootApp is "/".
	// Defaults to <storage_root>/www.
	WWWFolder string `yaml:"www_folder,omitempty" toml:"www_folder,omitempty"`

	// AccessLog enables the per-start access log file.
	AccessLog bool `yaml:"access_log" toml:"access_log"`

	// AdminPassword protects /settings with basic auth when set.
	// Either plaintext or a bcrypt hash.
	AdminPassword string `yaml:"admin_password,omitempty" toml:"admin_password,omitempty"`

	// AutoStart starts the listener when the daemon starts.
	AutoStart bool `yaml:"auto_start" toml:"auto_start"`

	// ShutdownTimeout bounds graceful shutdown of the daemon.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// AppsConfig configures archive discovery and deployment.
type AppsConfig struct {
	// Watch redeploys archives as they appear or change in webapps/.
	Watch bool `yaml:"watch" toml:"watch"`

	// WatchDebounce coalesces bursts of filesystem events per archive.
	WatchDebounce time.Duration `yaml:"watch_debounce" toml:"watch_debounce"`

	// RescanSchedule is an optional cron expression for periodic rescans.
	RescanSchedule string `yaml:"rescan_schedule,omitempty" toml:"rescan_schedule,omitempty"`

	// FetchTimeout bounds connecting and waiting for response headers
	// when deploying from a URL.
	FetchTimeout time.Duration `yaml:"fetch_timeout" toml:"fetch_timeout"`

	// MaxArchiveBytes caps the size of a fetched archive.
	MaxArchiveBytes int64 `yaml:"max_archive_bytes" toml:"max_archive_bytes"`
}

// ControlConfig configures the control API.
type ControlConfig struct {
	// SocketPath is the Unix socket the control API listens on.
	SocketPath string `yaml:"socket_path" toml:"socket_path"`

	// TCPAddr listens on TCP instead of the socket when set.
	TCPAddr string `yaml:"tcp_addr,omitempty" toml:"tcp_addr,omitempty"`

	// AllowRemote permits non-loopback clients on TCPAddr. Remote control
	// requires AuthSecret.
	AllowRemote bool `yaml:"allow_remote" toml:"allow_remote"`

	// AuthSecret signs and verifies the bearer tokens a remote control API
	// demands. It must be at least 32 bytes.
	AuthSecret string `yaml:"auth_secret,omitempty" toml:"auth_secret,omitempty"`

	// RateLimit is the sustained mutating-request rate per client (req/s).
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"`

	// RateBurst is the burst allowance per client.
	RateBurst int `yaml:"rate_burst" toml:"rate_burst"`
}

// LogConfig configures process logging.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level" toml:"level"`

	// Format sets the output format (json, text).
	Format string `yaml:"format" toml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		StorageRoot: defaultStorageRoot(),
		Server: ServerConfig{
			Port:            8080,
			BindMode:        BindLoopback,
			AccessLog:       false,
			ShutdownTimeout: 10 * time.Second,
		},
		Apps: AppsConfig{
			WatchDebounce:   500 * time.Millisecond,
			FetchTimeout:    30 * time.Second,
			MaxArchiveBytes: DefaultMaxArchiveBytes,
		},
		Control: ControlConfig{
			SocketPath: defaultSocketPath(),
			RateLimit:  5,
			RateBurst:  10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from an optional file (YAML, or TOML when the
// extension is .toml) and then environment variables.
// Environment variables take precedence over file-based configuration.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &webhosterrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &webhosterrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// applyDefaults fills in zero values with sensible defaults.
// This allows minimal configs to work without specifying all fields.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.StorageRoot == "" {
		c.StorageRoot = defaults.StorageRoot
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.BindMode == "" {
		c.Server.BindMode = defaults.Server.BindMode
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if c.Apps.WatchDebounce == 0 {
		c.Apps.WatchDebounce = defaults.Apps.WatchDebounce
	}
	if c.Apps.FetchTimeout == 0 {
		c.Apps.FetchTimeout = defaults.Apps.FetchTimeout
	}
	if c.Apps.MaxArchiveBytes == 0 {
		c.Apps.MaxArchiveBytes = defaults.Apps.MaxArchiveBytes
	}
	if c.Control.SocketPath == "" {
		c.Control.SocketPath = defaults.Control.SocketPath
	}
	if c.Control.RateLimit == 0 {
		c.Control.RateLimit = defaults.Control.RateLimit
	}
	if c.Control.RateBurst == 0 {
		c.Control.RateBurst = defaults.Control.RateBurst
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// loadFromFile loads configuration from a YAML or TOML file.
func (c *Config) loadFromFile(path string) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if isTOML(path) {
		if err := toml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse TOML: %w", err)
		}
		return nil
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("WEBHOST_STORAGE_ROOT"); val != "" {
		c.StorageRoot = val
	}

	// Server configuration
	if val, ok := os.LookupEnv("WEBHOST_BIND_ADDRESS"); ok {
		c.Server.BindAddress = val
	}
	if val := os.Getenv("WEBHOST_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Server.Port = port
		}
	}
	if val := os.Getenv("WEBHOST_TLS"); val != "" {
		c.Server.TLS = parseBool(val)
	}
	if val := os.Getenv("WEBHOST_BIND_MODE"); val != "" {
		c.Server.BindMode = BindMode(strings.ToLower(val))
	}
	if val, ok := os.LookupEnv("WEBHOST_ROOT_APP"); ok {
		c.Server.RootApp = val
	}
	if val := os.Getenv("WEBHOST_WWW_FOLDER"); val != "" {
		c.Server.WWWFolder = val
	}
	if val := os.Getenv("WEBHOST_ACCESS_LOG"); val != "" {
		c.Server.AccessLog = parseBool(val)
	}
	if val := os.Getenv("WEBHOST_ADMIN_PASSWORD"); val != "" {
		c.Server.AdminPassword = val
	}
	if val := os.Getenv("WEBHOST_AUTO_START"); val != "" {
		c.Server.AutoStart = parseBool(val)
	}

	// Apps configuration
	if val := os.Getenv("WEBHOST_APPS_WATCH"); val != "" {
		c.Apps.Watch = parseBool(val)
	}
	if val, ok := os.LookupEnv("WEBHOST_RESCAN_SCHEDULE"); ok {
		c.Apps.RescanSchedule = val
	}
	if val := os.Getenv("WEBHOST_FETCH_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Apps.FetchTimeout = d
		}
	}

	// Control configuration
	if val := os.Getenv("WEBHOST_SOCKET"); val != "" {
		c.Control.SocketPath = val
	}
	if val := os.Getenv("WEBHOST_TCP_ADDR"); val != "" {
		c.Control.TCPAddr = val
	}
	if val := os.Getenv("WEBHOST_AUTH_SECRET"); val != "" {
		c.Control.AuthSecret = val
	}

	// Log configuration
	if val := os.Getenv("WEBHOST_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}

	if val := os.Getenv("WEBHOST_PID_FILE"); val != "" {
		c.PIDFile = val
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.StorageRoot == "" {
		errs = append(errs, "storage_root must be set")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.BindMode != BindLoopback && c.Server.BindMode != BindNonLoopback {
		errs = append(errs, fmt.Sprintf("server.bind_mode must be one of [loopback, non_loopback], got %q", c.Server.BindMode))
	}
	if c.Server.RootApp != "" && c.Server.RootApp != RootStatic {
		if strings.ContainsAny(c.Server.RootApp, `/\`) || c.Server.RootApp == "." || c.Server.RootApp == ".." {
			errs = append(errs, fmt.Sprintf("server.root_app must be \"\", \"/\" or an app name, got %q", c.Server.RootApp))
		}
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout))
	}

	if c.Apps.RescanSchedule != "" {
		if _, err := cron.ParseStandard(c.Apps.RescanSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("apps.rescan_schedule is not a valid cron expression: %v", err))
		}
	}
	if c.Apps.FetchTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("apps.fetch_timeout must be positive, got %v", c.Apps.FetchTimeout))
	}
	if c.Apps.MaxArchiveBytes <= 0 {
		errs = append(errs, fmt.Sprintf("apps.max_archive_bytes must be positive, got %d", c.Apps.MaxArchiveBytes))
	}

	if c.Control.SocketPath == "" && c.Control.TCPAddr == "" {
		errs = append(errs, "control.socket_path or control.tcp_addr must be set")
	}
	if c.Control.TCPAddr != "" {
		if _, _, err := net.SplitHostPort(c.Control.TCPAddr); err != nil {
			errs = append(errs, fmt.Sprintf("control.tcp_addr is invalid: %v", err))
		}
	}
	if c.Control.AuthRequired() && len(c.Control.AuthSecret) < minAuthSecretBytes {
		errs = append(errs, fmt.Sprintf("control.auth_secret must be at least %d bytes when control.allow_remote is set", minAuthSecretBytes))
	}
	if c.Control.RateLimit < 0 || c.Control.RateBurst < 0 {
		errs = append(errs, "control.rate_limit and control.rate_burst must not be negative")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// AuthRequired reports whether control clients must present a bearer token.
func (c ControlConfig) AuthRequired() bool {
	return c.TCPAddr != "" && c.AllowRemote
}

// WebappsDir is the Archive Store root.
func (c *Config) WebappsDir() string {
	return filepath.Join(c.StorageRoot, "webapps")
}

// LogDir holds access log files.
func (c *Config) LogDir() string {
	return filepath.Join(c.StorageRoot, "log")
}

// KeystorePath is the PEM certificate and key used when TLS is enabled.
func (c *Config) KeystorePath() string {
	return filepath.Join(c.StorageRoot, "key", "keystore")
}

// WWWDir is the static folder served at "/" when root_app is "/".
func (c *Config) WWWDir() string {
	if c.Server.WWWFolder != "" {
		return c.Server.WWWFolder
	}
	return filepath.Join(c.StorageRoot, "www")
}

// PIDPath returns the daemon PID file path.
func (c *Config) PIDPath() string {
	if c.PIDFile != "" {
		return c.PIDFile
	}
	return filepath.Join(c.StorageRoot, "webhostd.pid")
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func parseBool(val string) bool {
	b, err := strconv.ParseBool(val)
	if err != nil {
		return strings.EqualFold(val, "yes") || strings.EqualFold(val, "on")
	}
	return b
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// defaultSocketPath returns the default Unix socket path.
func defaultSocketPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "webhost", "webhost.sock")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/webhost.sock"
	}
	return filepath.Join(homeDir, ".webhost", "webhost.sock")
}

// defaultStorageRoot returns the default storage root.
func defaultStorageRoot() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "webhost")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/webhost-data"
	}
	return filepath.Join(homeDir, ".webhost", "data")
}
