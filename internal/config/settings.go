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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var (
	// ErrLockTimeout is returned when file lock acquisition times out.
	ErrLockTimeout = errors.New("configuration locked by another process")

	// ErrUnknownKey is returned by Set and Get for keys outside the settable set.
	ErrUnknownKey = errors.New("unknown configuration key")
)

const (
	// lockTimeout is the maximum duration to wait for lock acquisition.
	lockTimeout = 5 * time.Second
)

// SettingsFile manages the config file with file locking for concurrent access protection.
type SettingsFile struct {
	path     string
	lockFile *os.File
}

// NewSettingsFile creates a new SettingsFile instance for the given path.
// If path is empty, uses the default config path.
func NewSettingsFile(path string) (*SettingsFile, error) {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	return &SettingsFile{path: path}, nil
}

// Path returns the file managed by s.
func (s *SettingsFile) Path() string {
	return s.path
}

// Lock acquires an exclusive lock on the settings file.
// Returns ErrLockTimeout if the lock cannot be acquired within the timeout period.
func (s *SettingsFile) Lock() error {
	lockPath := s.path + ".lock"

	if err := os.MkdirAll(filepath.Dir(lockPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(lockTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			s.lockFile = lockFile
			return nil
		}

		if time.Now().After(deadline) {
			lockFile.Close()
			return ErrLockTimeout
		}

		<-ticker.C
	}
}

// Unlock releases the file lock.
func (s *SettingsFile) Unlock() error {
	if s.lockFile == nil {
		return nil
	}

	if err := syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN); err != nil {
		s.lockFile.Close()
		s.lockFile = nil
		return fmt.Errorf("failed to unlock: %w", err)
	}

	if err := s.lockFile.Close(); err != nil {
		s.lockFile = nil
		return fmt.Errorf("failed to close lock file: %w", err)
	}

	s.lockFile = nil
	return nil
}

// Load loads the configuration from the settings file.
// The file must be locked before calling this method. A missing file yields defaults.
// Environment overrides are not applied, so a Load/Save round trip never
// persists values that only came from the environment.
func (s *SettingsFile) Load() (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return cfg, nil
	}
	if err := cfg.loadFromFile(s.path); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save saves the configuration to the settings file using atomic writes.
// The file must be locked before calling this method.
func (s *SettingsFile) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	if isTOML(s.path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// WithLock executes a function while holding the file lock.
func (s *SettingsFile) WithLock(fn func() error) error {
	if err := s.Lock(); err != nil {
		return err
	}
	defer s.Unlock()

	return fn()
}

// Update loads the file, applies fn, validates and saves, all under the lock.
func (s *SettingsFile) Update(fn func(*Config) error) error {
	return s.WithLock(func() error {
		cfg, err := s.Load()
		if err != nil {
			return err
		}
		if err := fn(cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return s.Save(cfg)
	})
}

// LoadSettings is a convenience function that loads settings with automatic locking.
func LoadSettings(path string) (*Config, error) {
	sf, err := NewSettingsFile(path)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	err = sf.WithLock(func() error {
		var loadErr error
		cfg, loadErr = sf.Load()
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveSettings is a convenience function that saves settings with automatic locking.
func SaveSettings(path string, cfg *Config) error {
	sf, err := NewSettingsFile(path)
	if err != nil {
		return err
	}
	return sf.WithLock(func() error {
		return sf.Save(cfg)
	})
}

// setting binds a dotted key to accessors on Config.
type setting struct {
	get func(*Config) string
	set func(*Config, string) error
}

var settings = map[string]setting{
	"storage_root": {
		get: func(c *Config) string { return c.StorageRoot },
		set: func(c *Config, v string) error { c.StorageRoot = v; return nil },
	},
	"server.bind_address": {
		get: func(c *Config) string { return c.Server.BindAddress },
		set: func(c *Config, v string) error { c.Server.BindAddress = v; return nil },
	},
	"server.port": {
		get: func(c *Config) string { return strconv.Itoa(c.Server.Port) },
		set: func(c *Config, v string) error {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("server.port: %w", err)
			}
			c.Server.Port = port
			return nil
		},
	},
	"server.tls": boolSetting(func(c *Config) *bool { return &c.Server.TLS }),
	"server.bind_mode": {
		get: func(c *Config) string { return string(c.Server.BindMode) },
		set: func(c *Config, v string) error { c.Server.BindMode = BindMode(v); return nil },
	},
	"server.root_app": {
		get: func(c *Config) string { return c.Server.RootApp },
		set: func(c *Config, v string) error { c.Server.RootApp = v; return nil },
	},
	"server.www_folder": {
		get: func(c *Config) string { return c.Server.WWWFolder },
		set: func(c *Config, v string) error { c.Server.WWWFolder = v; return nil },
	},
	"server.access_log": boolSetting(func(c *Config) *bool { return &c.Server.AccessLog }),
	"server.admin_password": {
		get: func(c *Config) string {
			if c.Server.AdminPassword == "" {
				return ""
			}
			return "[REDACTED]"
		},
		set: func(c *Config, v string) error { c.Server.AdminPassword = v; return nil },
	},
	"server.auto_start": boolSetting(func(c *Config) *bool { return &c.Server.AutoStart }),
	"apps.watch":        boolSetting(func(c *Config) *bool { return &c.Apps.Watch }),
	"apps.rescan_schedule": {
		get: func(c *Config) string { return c.Apps.RescanSchedule },
		set: func(c *Config, v string) error { c.Apps.RescanSchedule = v; return nil },
	},
	"control.socket_path": {
		get: func(c *Config) string { return c.Control.SocketPath },
		set: func(c *Config, v string) error { c.Control.SocketPath = v; return nil },
	},
	"control.tcp_addr": {
		get: func(c *Config) string { return c.Control.TCPAddr },
		set: func(c *Config, v string) error { c.Control.TCPAddr = v; return nil },
	},
	"control.auth_secret": {
		get: func(c *Config) string {
			if c.Control.AuthSecret == "" {
				return ""
			}
			return "[REDACTED]"
		},
		set: func(c *Config, v string) error { c.Control.AuthSecret = v; return nil },
	},
	"log.level": {
		get: func(c *Config) string { return c.Log.Level },
		set: func(c *Config, v string) error { c.Log.Level = v; return nil },
	},
	"log.format": {
		get: func(c *Config) string { return c.Log.Format },
		set: func(c *Config, v string) error { c.Log.Format = v; return nil },
	},
	"pid_file": {
		get: func(c *Config) string { return c.PIDFile },
		set: func(c *Config, v string) error { c.PIDFile = v; return nil },
	},
}

func boolSetting(field func(*Config) *bool) setting {
	return setting{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected true or false, got %q", v)
			}
			*field(c) = b
			return nil
		},
	}
}

// Keys lists the settable configuration keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the string form of a settable key. Secrets are redacted.
func (c *Config) Get(key string) (string, error) {
	s, ok := settings[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return s.get(c), nil
}

// Set parses value into the field named by key. It does not validate the
// resulting config.
func (c *Config) Set(key, value string) error {
	s, ok := settings[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return s.set(c, value)
}
