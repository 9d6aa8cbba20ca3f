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
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	depoterrors "github.com/tombee/depot/pkg/errors"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config represents the complete depot configuration.
type Config struct {
	Servers ServersConfig `yaml:"servers"`
	Tracing TracingConfig `yaml:"tracing"`
	Log     LogConfig     `yaml:"log"`
}

// ServersConfig configures tool server supervision.
type ServersConfig struct {
	// RuntimeDir holds state, logs, pipes and built binaries.
	// Relative paths resolve against the project directory.
	// Environment: DEPOT_RUNTIME_DIR
	// Default: .depot/servers
	RuntimeDir string `yaml:"runtime_dir"`

	// Manifest is the project manifest declaring servers.
	// Environment: DEPOT_MANIFEST
	// Default: depot.json
	Manifest string `yaml:"manifest"`

	// ShutdownTimeout is the grace period between SIGTERM and SIGKILL.
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// PollInterval is how often liveness is checked while stopping.
	// Default: 100ms
	PollInterval time.Duration `yaml:"poll_interval"`

	// KillSettle is how long to wait for SIGKILL to take effect.
	// Default: 500ms
	KillSettle time.Duration `yaml:"kill_settle"`

	// LockTimeout bounds the wait for the state file lock.
	// Default: 10s
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// BuildTool compiles servers declared with sourcePath.
	// Default: go
	BuildTool string `yaml:"build_tool"`

	// FollowInterval is the log follow polling interval.
	// Default: 250ms
	FollowInterval time.Duration `yaml:"follow_interval"`

	// LogLines is how many lines "servers logs" shows by default.
	// Default: 50
	LogLines int `yaml:"log_lines"`

	// MetricsFile, when set, receives a Prometheus textfile after each status.
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// TracingConfig configures OpenTelemetry spans for lifecycle operations.
type TracingConfig struct {
	// Exporter is one of none, stdout or otlp.
	// Environment: DEPOT_TRACING_EXPORTER
	// Default: none
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP HTTP receiver, e.g. localhost:4318.
	// Environment: OTEL_EXPORTER_OTLP_ENDPOINT
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS for the OTLP exporter.
	Insecure bool `yaml:"insecure,omitempty"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	// Level sets the minimum log level (debug, info, warn, error).
	// Environment: LOG_LEVEL
	// Default: warn
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Environment: LOG_FORMAT
	// Default: text
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: LOG_SOURCE
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Servers: ServersConfig{
			RuntimeDir:      ".depot/servers",
			Manifest:        "depot.json",
			ShutdownTimeout: 5 * time.Second,
			PollInterval:    100 * time.Millisecond,
			KillSettle:      500 * time.Millisecond,
			LockTimeout:     10 * time.Second,
			BuildTool:       "go",
			FollowInterval:  250 * time.Millisecond,
			LogLines:        50,
		},
		Tracing: TracingConfig{
			Exporter: "none",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file and environment variables.
// Environment variables take precedence over file-based configuration.
// If configPath is empty the default location is used and a missing file is
// not an error; an explicitly named file must exist.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		path, err := ConfigPath()
		if err == nil {
			configPath = path
		}
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, &depoterrors.ConfigError{
					Key:    "config_file",
					Reason: fmt.Sprintf("failed to load from %s", configPath),
					Cause:  err,
				}
			}
		}
	}

	// Apply defaults to any zero values (handles minimal configs)
	cfg.applyDefaults()

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &depoterrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// applyDefaults fills in zero values with the built-in defaults.
func (c *Config) applyDefaults() {
	defaults := Default()

	s := &c.Servers
	if s.RuntimeDir == "" {
		s.RuntimeDir = defaults.Servers.RuntimeDir
	}
	if s.Manifest == "" {
		s.Manifest = defaults.Servers.Manifest
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = defaults.Servers.ShutdownTimeout
	}
	if s.PollInterval == 0 {
		s.PollInterval = defaults.Servers.PollInterval
	}
	if s.KillSettle == 0 {
		s.KillSettle = defaults.Servers.KillSettle
	}
	if s.LockTimeout == 0 {
		s.LockTimeout = defaults.Servers.LockTimeout
	}
	if s.BuildTool == "" {
		s.BuildTool = defaults.Servers.BuildTool
	}
	if s.FollowInterval == 0 {
		s.FollowInterval = defaults.Servers.FollowInterval
	}
	if s.LogLines == 0 {
		s.LogLines = defaults.Servers.LogLines
	}

	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = defaults.Tracing.Exporter
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	// Expand home directory if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("DEPOT_RUNTIME_DIR"); val != "" {
		c.Servers.RuntimeDir = val
	}
	if val := os.Getenv("DEPOT_MANIFEST"); val != "" {
		c.Servers.Manifest = val
	}
	if val := os.Getenv("DEPOT_SHUTDOWN_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Servers.ShutdownTimeout = duration
		}
	}
	if val := os.Getenv("DEPOT_LOG_LINES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Servers.LogLines = n
		}
	}

	if val := os.Getenv("DEPOT_TRACING_EXPORTER"); val != "" {
		c.Tracing.Exporter = val
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}

	// Log configuration
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || val == "true"
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	s := c.Servers
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("servers.shutdown_timeout must be positive, got %v", s.ShutdownTimeout))
	}
	if s.PollInterval <= 0 {
		errs = append(errs, fmt.Sprintf("servers.poll_interval must be positive, got %v", s.PollInterval))
	} else if s.PollInterval > s.ShutdownTimeout {
		errs = append(errs, fmt.Sprintf("servers.poll_interval (%v) must not exceed servers.shutdown_timeout (%v)", s.PollInterval, s.ShutdownTimeout))
	}
	if s.KillSettle < 0 {
		errs = append(errs, fmt.Sprintf("servers.kill_settle must not be negative, got %v", s.KillSettle))
	}
	if s.LockTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("servers.lock_timeout must be positive, got %v", s.LockTimeout))
	}
	if s.FollowInterval <= 0 {
		errs = append(errs, fmt.Sprintf("servers.follow_interval must be positive, got %v", s.FollowInterval))
	}
	if s.LogLines < 0 {
		errs = append(errs, fmt.Sprintf("servers.log_lines must not be negative, got %d", s.LogLines))
	}

	validExporters := map[string]bool{"none": true, "stdout": true, "otlp": true}
	if !validExporters[c.Tracing.Exporter] {
		errs = append(errs, fmt.Sprintf("tracing.exporter must be one of [none, stdout, otlp], got %q", c.Tracing.Exporter))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}

	return nil
}

// RuntimeDirFor resolves the runtime directory for a project.
func (s ServersConfig) RuntimeDirFor(projectDir string) string {
	if filepath.IsAbs(s.RuntimeDir) {
		return s.RuntimeDir
	}
	return filepath.Join(projectDir, s.RuntimeDir)
}

// ManifestFor resolves the manifest path for a project.
func (s ServersConfig) ManifestFor(projectDir string) string {
	if filepath.IsAbs(s.Manifest) {
		return s.Manifest
	}
	return filepath.Join(projectDir, s.Manifest)
}
