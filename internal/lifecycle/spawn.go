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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// Spawner handles detached process spawning for tool servers.
type Spawner struct {
	// Env is the base environment passed to every child process.
	Env []string
}

// NewSpawner creates a new process spawner inheriting the current environment.
func NewSpawner() *Spawner {
	return &Spawner{
		Env: os.Environ(),
	}
}

// SpawnSpec describes a process to spawn.
type SpawnSpec struct {
	// Binary is the executable path.
	Binary string

	// Args are passed after the binary name.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds extra KEY=VALUE pairs appended to the spawner's base environment.
	Env []string

	// LogPath receives stdout and stderr. It is truncated on every spawn.
	LogPath string

	// Stdin is attached as the child's standard input. Nil means /dev/null.
	Stdin *os.File
}

// SpawnDetached spawns a detached background process.
// The process:
// - Has a new session ID, so it survives the invoking terminal and shell
// - Has stdout/stderr redirected to LogPath (truncated)
// - Reads from Stdin when provided, /dev/null otherwise
//
// Returns the PID of the spawned process.
func (s *Spawner) SpawnDetached(spec SpawnSpec) (int, error) {
	if spec.Binary == "" {
		return 0, fmt.Errorf("binary is required")
	}
	if spec.LogPath == "" {
		return 0, fmt.Errorf("log path is required")
	}

	// Ensure log directory exists
	logDir := filepath.Dir(spec.LogPath)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return 0, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(append([]string{}, s.Env...), spec.Env...)

	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		// New session; this also makes the child a process group leader.
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start process: %w", err)
	}

	pid := cmd.Process.Pid

	// Reap in the background so a child that dies while this invocation is
	// still alive does not linger as a zombie. Once depot exits the child is
	// re-parented and this goroutine simply disappears with us.
	go func() {
		_ = cmd.Wait()
	}()

	return pid, nil
}
