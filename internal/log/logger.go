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
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format represents the log output format.
type Format string

const (
	// FormatJSON outputs logs in JSON format for machine parsing.
	FormatJSON Format = "json"
	// FormatText outputs logs in human-readable text format.
	FormatText Format = "text"
)

// Field keys shared by every depot log line.
const (
	ServerKey        = "server"
	PIDKey           = "pid"
	ComponentKey     = "component"
	CorrelationIDKey = "correlation_id"
)

// Config holds the logging configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string

	// Format is json or text.
	Format Format

	// Output defaults to os.Stderr.
	Output io.Writer

	// AddSource adds file and line to every record.
	AddSource bool
}

// DefaultConfig returns a Config suited to an interactive CLI: warnings and
// errors only, as text on stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  "warn",
		Format: FormatText,
		Output: os.Stderr,
	}
}

// FromEnv returns DefaultConfig with the environment applied.
func FromEnv() *Config {
	return ApplyEnv(DefaultConfig())
}

// ApplyEnv overrides cfg from the environment and returns it.
//   - DEPOT_DEBUG=1|true forces debug level with source locations
//   - DEPOT_LOG_LEVEL, then LOG_LEVEL, set the level
//   - LOG_FORMAT sets json or text
//   - LOG_SOURCE=1 adds source locations
func ApplyEnv(cfg *Config) *Config {
	if level := os.Getenv("DEPOT_LOG_LEVEL"); level != "" {
		cfg.Level = strings.ToLower(level)
	} else if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = strings.ToLower(level)
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}

	if os.Getenv("LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}

	if debug := os.Getenv("DEPOT_DEBUG"); debug == "1" || debug == "true" {
		cfg.Level = "debug"
		cfg.AddSource = true
	}

	return cfg
}

// New creates a structured logger from cfg. A nil cfg means DefaultConfig.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	if cfg.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(output, opts))
	}
	return slog.New(slog.NewTextHandler(output, opts))
}

// parseLevel maps a level name to slog.Level. Unknown names mean warn.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// WithCorrelationID tags logger with the invocation's correlation ID.
func WithCorrelationID(logger *slog.Logger, correlationID string) *slog.Logger {
	return logger.With(CorrelationIDKey, correlationID)
}

// WithComponent tags logger with the emitting component.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(ComponentKey, component)
}

// WithServer scopes logger to one tool server.
func WithServer(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(slog.String(ServerKey, name))
}

// Error creates an error attribute.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// PID creates a process ID attribute.
func PID(pid int) slog.Attr {
	return slog.Int(PIDKey, pid)
}

// Duration records d in whole milliseconds under key_ms.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Int64(key+"_ms", d.Milliseconds())
}
