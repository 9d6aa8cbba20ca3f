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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	depoterrors "github.com/tombee/depot/pkg/errors"
)

// isolate points every config lookup at an empty temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, key := range []string{
		"DEPOT_RUNTIME_DIR", "DEPOT_MANIFEST", "DEPOT_SHUTDOWN_TIMEOUT", "DEPOT_LOG_LINES",
		"DEPOT_TRACING_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Servers.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected shutdown timeout 5s, got %v", cfg.Servers.ShutdownTimeout)
	}
	if cfg.Servers.PollInterval != 100*time.Millisecond {
		t.Errorf("expected poll interval 100ms, got %v", cfg.Servers.PollInterval)
	}
	if cfg.Servers.KillSettle != 500*time.Millisecond {
		t.Errorf("expected kill settle 500ms, got %v", cfg.Servers.KillSettle)
	}
	if cfg.Servers.FollowInterval != 250*time.Millisecond {
		t.Errorf("expected follow interval 250ms, got %v", cfg.Servers.FollowInterval)
	}
	if cfg.Servers.LogLines != 50 {
		t.Errorf("expected 50 log lines, got %d", cfg.Servers.LogLines)
	}
	if cfg.Servers.Manifest != "depot.json" {
		t.Errorf("expected manifest depot.json, got %q", cfg.Servers.Manifest)
	}
	if cfg.Tracing.Exporter != "none" {
		t.Errorf("expected tracing exporter none, got %q", cfg.Tracing.Exporter)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("expected log format 'text', got %q", cfg.Log.Format)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errText string
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero shutdown timeout",
			modify:  func(c *Config) { c.Servers.ShutdownTimeout = 0 },
			wantErr: true,
			errText: "servers.shutdown_timeout must be positive",
		},
		{
			name: "poll interval longer than shutdown timeout",
			modify: func(c *Config) {
				c.Servers.PollInterval = 10 * time.Second
			},
			wantErr: true,
			errText: "must not exceed servers.shutdown_timeout",
		},
		{
			name:    "negative log lines",
			modify:  func(c *Config) { c.Servers.LogLines = -1 },
			wantErr: true,
			errText: "servers.log_lines must not be negative",
		},
		{
			name:    "unknown exporter",
			modify:  func(c *Config) { c.Tracing.Exporter = "zipkin" },
			wantErr: true,
			errText: "tracing.exporter must be one of",
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
			errText: "log.level must be one of",
		},
		{
			name:    "uppercase log format accepted",
			modify:  func(c *Config) { c.Log.Format = "JSON" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.errText) {
					t.Errorf("expected error containing %q, got %q", tt.errText, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoad_NoFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Servers.LockTimeout != 10*time.Second {
		t.Errorf("expected default lock timeout, got %v", cfg.Servers.LockTimeout)
	}
}

func TestLoad_DefaultLocation(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "depot", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	content := `servers:
  shutdown_timeout: 2s
  build_tool: tinygo
  metrics_file: /var/lib/node_exporter/depot.prom
tracing:
  exporter: stdout
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Servers.ShutdownTimeout != 2*time.Second {
		t.Errorf("expected shutdown timeout 2s, got %v", cfg.Servers.ShutdownTimeout)
	}
	if cfg.Servers.BuildTool != "tinygo" {
		t.Errorf("expected build tool tinygo, got %q", cfg.Servers.BuildTool)
	}
	if cfg.Servers.MetricsFile != "/var/lib/node_exporter/depot.prom" {
		t.Errorf("unexpected metrics file %q", cfg.Servers.MetricsFile)
	}
	if cfg.Tracing.Exporter != "stdout" {
		t.Errorf("expected exporter stdout, got %q", cfg.Tracing.Exporter)
	}
	// Unset keys keep their defaults.
	if cfg.Servers.PollInterval != 100*time.Millisecond {
		t.Errorf("expected default poll interval, got %v", cfg.Servers.PollInterval)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}

	var cfgErr *depoterrors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %T", err)
	}
	if cfgErr.Key != "config_file" {
		t.Errorf("expected key config_file, got %q", cfgErr.Key)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("servers: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("DEPOT_RUNTIME_DIR", "/tmp/depot-runtime")
	t.Setenv("DEPOT_MANIFEST", "tools.json")
	t.Setenv("DEPOT_SHUTDOWN_TIMEOUT", "750ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Servers.RuntimeDir != "/tmp/depot-runtime" {
		t.Errorf("expected runtime dir override, got %q", cfg.Servers.RuntimeDir)
	}
	if cfg.Servers.Manifest != "tools.json" {
		t.Errorf("expected manifest override, got %q", cfg.Servers.Manifest)
	}
	if cfg.Servers.ShutdownTimeout != 750*time.Millisecond {
		t.Errorf("expected shutdown timeout override, got %v", cfg.Servers.ShutdownTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.Log.Level)
	}
}

func TestServersConfig_Paths(t *testing.T) {
	s := Default().Servers

	if got := s.RuntimeDirFor("/work/app"); got != "/work/app/.depot/servers" {
		t.Errorf("RuntimeDirFor() = %q", got)
	}
	if got := s.ManifestFor("/work/app"); got != "/work/app/depot.json" {
		t.Errorf("ManifestFor() = %q", got)
	}

	s.RuntimeDir = "/var/run/depot"
	if got := s.RuntimeDirFor("/work/app"); got != "/var/run/depot" {
		t.Errorf("RuntimeDirFor() absolute = %q", got)
	}
}

func TestConfigDir_RespectsXDG(t *testing.T) {
	dir := isolate(t)

	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if got != filepath.Join(dir, "depot") {
		t.Errorf("ConfigDir() = %q, want %q", got, filepath.Join(dir, "depot"))
	}
}
