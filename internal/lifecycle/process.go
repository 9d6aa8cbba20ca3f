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
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrProcessNotRunning is returned when the process does not exist.
	ErrProcessNotRunning = errors.New("process not running")

	// ErrShutdownTimeout is returned when the process doesn't exit within the timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
)

const (
	// DefaultShutdownTimeout is how long a process gets to exit after SIGTERM.
	DefaultShutdownTimeout = 5 * time.Second

	// DefaultPollInterval is the liveness polling interval during shutdown.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultKillSettle is how long to wait after SIGKILL before giving up on confirmation.
	DefaultKillSettle = 500 * time.Millisecond
)

// procEntry is what the platform process table reveals about one PID.
type procEntry struct {
	zombie  bool
	cmdline string
}

// IsProcessRunning checks if a process with the given PID exists.
// Zombies count as not running: they have exited and only wait to be reaped.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	// Signal 0 performs the existence and permission checks without
	// delivering anything. EPERM still proves the process exists.
	err := unix.Kill(pid, 0)
	if err != nil && !errors.Is(err, unix.EPERM) {
		return false
	}

	entry, err := readProc(pid)
	return err != nil || !entry.zombie
}

// MatchesCommand reports whether the command line of pid mentions the base
// name of command. It guards against signalling an unrelated process that
// inherited a recycled PID. When the command line cannot be read the process
// is given the benefit of the doubt.
func MatchesCommand(pid int, command string) bool {
	if command == "" {
		return true
	}

	entry, err := readProc(pid)
	if err != nil || entry.cmdline == "" {
		return true
	}

	return strings.Contains(entry.cmdline, filepath.Base(command))
}

// IsSessionLeader reports whether pid leads its own session, as every
// process started by SpawnDetached does.
func IsSessionLeader(pid int) bool {
	if pid <= 0 {
		return false
	}
	sid, err := unix.Getsid(pid)
	return err == nil && sid == pid
}

// SendSignal sends a signal to the given process. When the process leads its
// own process group (servers are spawned with Setsid) the whole group is
// signalled so wrapper scripts take their children down with them.
func SendSignal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}

	target := pid
	if pgid, err := unix.Getpgid(pid); err == nil && pgid == pid {
		target = -pid
	}

	if err := unix.Kill(target, sig); err != nil {
		return fmt.Errorf("failed to send signal %v to process %d: %w", sig, pid, err)
	}

	return nil
}

// waitForExit polls until pid is gone, or returns ErrShutdownTimeout once
// timeout elapses.
func waitForExit(pid int, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(timeout)

	for {
		if !IsProcessRunning(pid) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrShutdownTimeout
		}
		time.Sleep(interval)
	}
}

// ShutdownOptions tunes GracefulShutdown. Zero values fall back to the defaults.
type ShutdownOptions struct {
	// Timeout is the grace period between SIGTERM and SIGKILL.
	Timeout time.Duration

	// PollInterval is how often liveness is re-checked during the grace period.
	PollInterval time.Duration

	// KillSettle is how long to wait for SIGKILL to take effect.
	KillSettle time.Duration
}

func (o ShutdownOptions) withDefaults() ShutdownOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultShutdownTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.KillSettle <= 0 {
		o.KillSettle = DefaultKillSettle
	}
	return o
}

// ShutdownResult describes how a shutdown went.
type ShutdownResult struct {
	// Forced is true when SIGKILL had to be sent.
	Forced bool

	// Exited is false only when the process was still visible after SIGKILL
	// and the settle delay.
	Exited bool

	// Duration is the wall time spent in GracefulShutdown.
	Duration time.Duration
}

// GracefulShutdown sends SIGTERM to a process and polls until it exits.
// If the grace period elapses, SIGKILL is sent and the process is given
// KillSettle to disappear. The call always returns within roughly
// Timeout+KillSettle; an unconfirmed kill is reported through
// ShutdownResult.Exited rather than as an error.
func GracefulShutdown(pid int, opts ShutdownOptions) (ShutdownResult, error) {
	opts = opts.withDefaults()
	start := time.Now()

	if !IsProcessRunning(pid) {
		return ShutdownResult{Exited: true}, ErrProcessNotRunning
	}

	if err := SendSignal(pid, syscall.SIGTERM); err != nil {
		if !IsProcessRunning(pid) {
			return ShutdownResult{Exited: true, Duration: time.Since(start)}, nil
		}
		return ShutdownResult{Duration: time.Since(start)}, fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	if err := waitForExit(pid, opts.Timeout, opts.PollInterval); err == nil {
		return ShutdownResult{Exited: true, Duration: time.Since(start)}, nil
	}

	result := ShutdownResult{Forced: true}
	if err := SendSignal(pid, syscall.SIGKILL); err != nil && IsProcessRunning(pid) {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("failed to send SIGKILL: %w", err)
	}

	result.Exited = waitForExit(pid, opts.KillSettle, opts.PollInterval) == nil
	result.Duration = time.Since(start)
	return result, nil
}
