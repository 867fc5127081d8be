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
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tombee/webhost/internal/archive"
	"github.com/tombee/webhost/internal/commands/shared"
	"github.com/tombee/webhost/internal/config"
)

// ValidationResult represents the result of config validation.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the 'config validate' subcommand.
func NewValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validate the configuration file and check it against the storage root.

Checks performed:
  - YAML or TOML syntax and field values
  - The keystore exists when TLS is on
  - The root app has an archive
  - Exposed listeners are protected

With --strict, warnings are treated as errors.`,
		Example: `  # Validate configuration
  webhost config validate

  # Validate with warnings as errors
  webhost config validate --strict

  # Get validation result as JSON
  webhost config validate --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")

	return cmd
}

func runValidate(cmd *cobra.Command, strict bool) error {
	var result ValidationResult
	cfg, err := shared.LoadConfig()
	if err != nil {
		result = ValidationResult{Errors: []string{err.Error()}}
	} else {
		result = validateConfig(cfg)
	}
	return outputValidationResult(shared.Out(cmd.OutOrStdout()), result, strict)
}

// validateConfig checks things config.Validate cannot see on its own.
func validateConfig(cfg *config.Config) ValidationResult {
	var errs, warnings []string

	if cfg.Server.TLS {
		if _, err := os.Stat(cfg.KeystorePath()); err != nil {
			errs = append(errs, fmt.Sprintf("server.tls is on but the keystore %s cannot be read", cfg.KeystorePath()))
		}
	}

	switch cfg.Server.RootApp {
	case "":
	case config.RootStatic:
		if _, err := os.Stat(cfg.WWWDir()); err != nil {
			warnings = append(warnings, fmt.Sprintf("server.root_app serves %s, which does not exist yet", cfg.WWWDir()))
		}
	default:
		file := filepath.Join(cfg.WebappsDir(), cfg.Server.RootApp+archive.Ext)
		if _, err := os.Stat(file); err != nil {
			warnings = append(warnings, fmt.Sprintf("server.root_app is %q but %s does not exist", cfg.Server.RootApp, file))
		}
	}

	if cfg.Server.BindMode == config.BindNonLoopback && cfg.Server.AdminPassword == "" {
		warnings = append(warnings, "server.bind_mode is non_loopback and server.admin_password is empty, so /settings is readable from the network")
	}
	if cfg.Control.AuthRequired() {
		warnings = append(warnings, "control.allow_remote exposes the token-protected control API on "+cfg.Control.TCPAddr)
	}

	return ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

// outputValidationResult prints result and returns an error carrying exit
// code 1 when it fails.
func outputValidationResult(w io.Writer, result ValidationResult, strict bool) error {
	if shared.GetJSON() {
		if err := shared.EmitJSON(struct {
			shared.JSONResponse
			ValidationResult
		}{shared.JSONResponse{Version: "1.0", Command: "config validate", Success: result.Valid}, result}); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	} else {
		if result.Valid {
			fmt.Fprintln(w, shared.RenderOK("Configuration is valid"))
		} else {
			fmt.Fprintln(w, shared.RenderError("Configuration validation failed"))
		}
		fmt.Fprintln(w)

		if len(result.Errors) > 0 {
			fmt.Fprintln(w, shared.Header.Render("Errors:"))
			for _, err := range result.Errors {
				fmt.Fprintf(w, "  %s %s\n", shared.StatusError.Render(shared.SymbolError), err)
			}
			fmt.Fprintln(w)
		}

		if len(result.Warnings) > 0 {
			fmt.Fprintln(w, shared.Header.Render("Warnings:"))
			for _, warn := range result.Warnings {
				fmt.Fprintf(w, "  %s %s\n", shared.StatusWarn.Render(shared.SymbolWarn), warn)
			}
			fmt.Fprintln(w)
		}

		if result.Valid && len(result.Warnings) == 0 {
			fmt.Fprintln(w, "No issues found.")
		}
	}

	if !result.Valid {
		return &shared.ExitError{Code: shared.ExitFailure, Message: "configuration is invalid"}
	}
	if strict && len(result.Warnings) > 0 {
		return &shared.ExitError{Code: shared.ExitFailure, Message: "validation failed (strict mode: warnings treated as errors)"}
	}
	return nil
}
