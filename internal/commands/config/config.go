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
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/webhost/internal/commands/shared"
	"github.com/tombee/webhost/internal/config"
	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and change settings",
		Long: `View and change webhost settings.

Settings live in a YAML or TOML file (--config, or the default under
~/.config/webhost). Changes take effect the next time the web server is
started with 'webhost server start'.

Subcommands:
  show     - Display effective settings
  get      - Print one setting
  set      - Change one setting
  path     - Show config file location
  validate - Check the config file`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigGetCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(NewValidateCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConfigShow(cmd, false)
	}

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display effective settings",
		Long: `Display the effective settings: file values, then defaults, then
WEBHOST_* environment overrides. The admin password is redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, asYAML)
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the full config as YAML")
	return cmd
}

func runConfigShow(cmd *cobra.Command, asYAML bool) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		values := make(map[string]string, len(config.Keys()))
		for _, key := range config.Keys() {
			values[key], _ = cfg.Get(key)
		}
		return shared.EmitJSON(struct {
			shared.JSONResponse
			Path     string            `json:"path,omitempty"`
			Settings map[string]string `json:"settings"`
		}{shared.NewJSONResponse("config show"), shared.ResolveConfigPath(), values})
	}

	w := shared.Out(cmd.OutOrStdout())
	if asYAML {
		redacted := *cfg
		if redacted.Server.AdminPassword != "" {
			redacted.Server.AdminPassword = "[REDACTED]"
		}
		data, err := yaml.Marshal(&redacted)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = w.Write(data)
		return err
	}

	printSettings(w, cfg)
	return nil
}

func printSettings(w io.Writer, cfg *config.Config) {
	if path := shared.ResolveConfigPath(); path != "" {
		fmt.Fprintln(w, shared.Muted.Render("# "+path))
	} else {
		fmt.Fprintln(w, shared.Muted.Render("# built-in defaults"))
	}
	for _, key := range config.Keys() {
		value, _ := cfg.Get(key)
		fmt.Fprintf(w, "%s = %s\n", shared.Bold.Render(key), value)
	}
}

func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "get KEY",
		Short:     "Print one setting",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			value, err := cfg.Get(args[0])
			if err != nil {
				return unknownKey(args[0])
			}
			if shared.GetJSON() {
				return shared.EmitJSON(struct {
					shared.JSONResponse
					Key   string `json:"key"`
					Value string `json:"value"`
				}{shared.NewJSONResponse("config get"), args[0], value})
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting",
		Long: `Change one setting in the config file. The file is locked while it is
rewritten and the result must pass validation, so a bad value leaves the
file untouched.`,
		Example: `  webhost config set server.port 8443
  webhost config set server.tls true
  webhost config set server.root_app shop`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	sf, err := config.NewSettingsFile(shared.GetConfigPath())
	if err != nil {
		return err
	}

	err = sf.Update(func(cfg *config.Config) error {
		return cfg.Set(key, value)
	})
	if err != nil {
		if errors.Is(err, config.ErrUnknownKey) {
			return unknownKey(key)
		}
		return &webhosterrors.ConfigError{Key: key, Reason: "value rejected", Cause: err}
	}

	if shared.GetJSON() {
		return shared.EmitJSON(struct {
			shared.JSONResponse
			Path string `json:"path"`
			Key  string `json:"key"`
		}{shared.NewJSONResponse("config set"), sf.Path(), key})
	}
	fmt.Fprintln(shared.Out(cmd.OutOrStdout()), shared.RenderOK(fmt.Sprintf("Set %s in %s", key, sf.Path())))
	fmt.Fprintln(shared.Out(cmd.OutOrStdout()), shared.Muted.Render("  Run 'webhost server start' to apply"))
	return nil
}

func unknownKey(key string) error {
	return &webhosterrors.ValidationError{
		Field:      "key",
		Message:    fmt.Sprintf("unknown setting %q", key),
		Suggestion: "Run 'webhost config show' to list settings",
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := shared.GetConfigPath()
			if path == "" {
				var err error
				path, err = config.ConfigPath()
				if err != nil {
					return fmt.Errorf("failed to determine config path: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
