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

package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Event names written to the lifecycle log.
const (
	EventStart          = "start"
	EventStartFailure   = "start_failure"
	EventAlreadyRunning = "already_running"
	EventStop           = "stop"
	EventStopSuccess    = "stop_success"
	EventStopFailure    = "stop_failure"
	EventForcedKill     = "forced_kill"
	EventStale          = "stale_state_removed"
	EventBuild          = "build"
	EventBuildFailure   = "build_failure"
)

// ServerEvent represents a lifecycle event for a tool server.
type ServerEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	Event         string    `json:"event"`
	Server        string    `json:"server"`
	PID           int       `json:"pid,omitempty"`
	Transport     string    `json:"transport,omitempty"`
	Success       bool      `json:"success"`
	Message       string    `json:"message,omitempty"`
	Error         string    `json:"error,omitempty"`
	DurationMS    int64     `json:"duration_ms,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventLog appends server lifecycle events to a JSON lines file.
type EventLog struct {
	logPath       string
	correlationID string
}

// NewEventLog creates a new lifecycle event log.
func NewEventLog(logPath string) *EventLog {
	return &EventLog{
		logPath: logPath,
	}
}

// WithCorrelationID tags every subsequent event with the invocation's ID.
func (l *EventLog) WithCorrelationID(id string) *EventLog {
	l.correlationID = id
	return l
}

// Path returns the log file location.
func (l *EventLog) Path() string {
	return l.logPath
}

// LogStart logs a successful server spawn.
func (l *EventLog) LogStart(server string, pid int, transport string) error {
	return l.writeEvent(ServerEvent{
		Event:     EventStart,
		Server:    server,
		PID:       pid,
		Transport: transport,
		Success:   true,
		Message:   "Server started",
	})
}

// LogStartFailure logs a server that could not be spawned.
func (l *EventLog) LogStartFailure(server string, err error) error {
	return l.writeEvent(ServerEvent{
		Event:   EventStartFailure,
		Server:  server,
		Success: false,
		Message: "Server failed to start",
		Error:   errString(err),
	})
}

// LogAlreadyRunning logs a start request for a server that is already up.
func (l *EventLog) LogAlreadyRunning(server string, pid int) error {
	return l.writeEvent(ServerEvent{
		Event:   EventAlreadyRunning,
		Server:  server,
		PID:     pid,
		Success: true,
		Message: "Server already running",
	})
}

// LogStop logs the start of a shutdown.
func (l *EventLog) LogStop(server string, pid int) error {
	return l.writeEvent(ServerEvent{
		Event:   EventStop,
		Server:  server,
		PID:     pid,
		Success: true,
		Message: "Server stop initiated",
	})
}

// LogStopSuccess logs a completed shutdown.
func (l *EventLog) LogStopSuccess(server string, pid int, duration time.Duration) error {
	return l.writeEvent(ServerEvent{
		Event:      EventStopSuccess,
		Server:     server,
		PID:        pid,
		Success:    true,
		Message:    fmt.Sprintf("Server stopped (duration: %v)", duration),
		DurationMS: duration.Milliseconds(),
	})
}

// LogForcedKill logs a server that ignored SIGTERM and was killed.
func (l *EventLog) LogForcedKill(server string, pid int, confirmed bool) error {
	msg := "Server did not exit after SIGTERM, sent SIGKILL"
	if !confirmed {
		msg += " (exit not confirmed)"
	}
	return l.writeEvent(ServerEvent{
		Event:   EventForcedKill,
		Server:  server,
		PID:     pid,
		Success: confirmed,
		Message: msg,
	})
}

// LogStopFailure logs a shutdown that could not be carried out.
func (l *EventLog) LogStopFailure(server string, pid int, err error) error {
	return l.writeEvent(ServerEvent{
		Event:   EventStopFailure,
		Server:  server,
		PID:     pid,
		Success: false,
		Message: "Failed to stop server",
		Error:   errString(err),
	})
}

// LogStale logs removal of a state entry whose process is gone.
func (l *EventLog) LogStale(server string, pid int, reason string) error {
	return l.writeEvent(ServerEvent{
		Event:   EventStale,
		Server:  server,
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("Stale state entry removed: %s", reason),
	})
}

// LogBuild logs a build of a source-based server.
func (l *EventLog) LogBuild(server string, cached bool, duration time.Duration) error {
	msg := "Server binary built"
	if cached {
		msg = "Server binary up to date"
	}
	return l.writeEvent(ServerEvent{
		Event:      EventBuild,
		Server:     server,
		Success:    true,
		Message:    msg,
		DurationMS: duration.Milliseconds(),
	})
}

// LogBuildFailure logs a failed build.
func (l *EventLog) LogBuildFailure(server string, err error) error {
	return l.writeEvent(ServerEvent{
		Event:   EventBuildFailure,
		Server:  server,
		Success: false,
		Message: "Server build failed",
		Error:   errString(err),
	})
}

// writeEvent appends a lifecycle event to the log file.
func (l *EventLog) writeEvent(event ServerEvent) error {
	if l == nil || l.logPath == "" {
		return nil
	}

	event.Timestamp = time.Now()
	event.CorrelationID = l.correlationID

	// Ensure log directory exists
	logDir := filepath.Dir(l.logPath)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file in append mode
	f, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lifecycle log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
