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
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

// startChild starts a process owned by the test and reaps it in the background.
func startChild(t *testing.T, name string, args ...string) *exec.Cmd {
	t.Helper()
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		skipOnSpawnError(t, err)
		t.Fatalf("failed to start %s: %v", name, err)
	}
	go func() { _ = cmd.Wait() }()
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return cmd
}

func TestIsProcessRunning(t *testing.T) {
	t.Run("returns true for current process", func(t *testing.T) {
		if !IsProcessRunning(os.Getpid()) {
			t.Error("IsProcessRunning(os.Getpid()) = false, want true")
		}
	})

	t.Run("returns false for non-existent PID", func(t *testing.T) {
		// Use a very high PID that's unlikely to exist
		if IsProcessRunning(999999) {
			t.Error("IsProcessRunning(999999) = true, want false")
		}
	})

	t.Run("returns false for non-positive PIDs", func(t *testing.T) {
		for _, pid := range []int{0, -1} {
			if IsProcessRunning(pid) {
				t.Errorf("IsProcessRunning(%d) = true, want false", pid)
			}
		}
	})

	t.Run("treats zombies as exited", func(t *testing.T) {
		cmd := exec.Command("true")
		if err := cmd.Start(); err != nil {
			skipOnSpawnError(t, err)
			t.Fatalf("failed to start: %v", err)
		}
		defer cmd.Wait()

		// Not reaped yet: the child is a zombie once it exits.
		deadline := time.Now().Add(2 * time.Second)
		for IsProcessRunning(cmd.Process.Pid) && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if IsProcessRunning(cmd.Process.Pid) {
			t.Error("exited but unreaped child reported as running")
		}
	})
}

func TestSendSignal(t *testing.T) {
	t.Run("sends signal to running process", func(t *testing.T) {
		cmd := startChild(t, "sleep", "60")

		if err := SendSignal(cmd.Process.Pid, syscall.Signal(0)); err != nil {
			t.Errorf("SendSignal() error = %v", err)
		}
	})

	t.Run("returns error for non-existent process", func(t *testing.T) {
		if err := SendSignal(999999, syscall.SIGTERM); err == nil {
			t.Error("SendSignal() to non-existent process succeeded, want error")
		}
	})

	t.Run("rejects invalid pid", func(t *testing.T) {
		if err := SendSignal(0, syscall.SIGTERM); err == nil {
			t.Error("SendSignal(0) succeeded, want error")
		}
	})
}

func TestWaitForExitPolling(t *testing.T) {
	t.Run("returns nil when process exits", func(t *testing.T) {
		cmd := startChild(t, "sleep", "0.1")

		if err := waitForExit(cmd.Process.Pid, 2*time.Second, DefaultPollInterval); err != nil {
			t.Errorf("waitForExit() error = %v", err)
		}
	})

	t.Run("returns timeout for long-running process", func(t *testing.T) {
		cmd := startChild(t, "sleep", "60")

		err := waitForExit(cmd.Process.Pid, 200*time.Millisecond, DefaultPollInterval)
		if !errors.Is(err, ErrShutdownTimeout) {
			t.Errorf("waitForExit() error = %v, want ErrShutdownTimeout", err)
		}
	})
}

func TestGracefulShutdown(t *testing.T) {
	t.Run("returns ErrProcessNotRunning for dead process", func(t *testing.T) {
		_, err := GracefulShutdown(999999, ShutdownOptions{})
		if !errors.Is(err, ErrProcessNotRunning) {
			t.Errorf("GracefulShutdown() error = %v, want ErrProcessNotRunning", err)
		}
	})

	t.Run("stops process with SIGTERM", func(t *testing.T) {
		cmd := startChild(t, "sleep", "60")

		res, err := GracefulShutdown(cmd.Process.Pid, ShutdownOptions{Timeout: 2 * time.Second})
		if err != nil {
			t.Fatalf("GracefulShutdown() error = %v", err)
		}
		if res.Forced {
			t.Error("GracefulShutdown() forced = true, want false")
		}
		if !res.Exited {
			t.Error("GracefulShutdown() exited = false, want true")
		}
	})

	t.Run("escalates to SIGKILL when SIGTERM is ignored", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping escalation test in short mode")
		}
		cmd := startChild(t, "sh", "-c", "trap '' TERM; exec sleep 30")
		// Give the shell time to install the trap before signalling.
		time.Sleep(200 * time.Millisecond)

		res, err := GracefulShutdown(cmd.Process.Pid, ShutdownOptions{
			Timeout:      300 * time.Millisecond,
			PollInterval: 20 * time.Millisecond,
			KillSettle:   time.Second,
		})
		if err != nil {
			t.Fatalf("GracefulShutdown() error = %v", err)
		}
		if !res.Forced {
			t.Error("GracefulShutdown() forced = false, want true")
		}
		if !res.Exited {
			t.Error("GracefulShutdown() exited = false, want true")
		}
		if res.Duration < 300*time.Millisecond {
			t.Errorf("GracefulShutdown() returned after %v, before the grace period", res.Duration)
		}
	})
}

func TestShutdownOptions_Defaults(t *testing.T) {
	opts := ShutdownOptions{}.withDefaults()
	if opts.Timeout != DefaultShutdownTimeout {
		t.Errorf("Timeout = %v, want %v", opts.Timeout, DefaultShutdownTimeout)
	}
	if opts.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want %v", opts.PollInterval, DefaultPollInterval)
	}
	if opts.KillSettle != DefaultKillSettle {
		t.Errorf("KillSettle = %v, want %v", opts.KillSettle, DefaultKillSettle)
	}
}

func TestMatchesCommand(t *testing.T) {
	cmd := startChild(t, "sleep", "60")
	pid := cmd.Process.Pid

	if !MatchesCommand(pid, "/usr/bin/sleep") {
		t.Error("MatchesCommand(sleep) = false, want true")
	}
	if MatchesCommand(pid, "/opt/tools/query-tool") {
		t.Error("MatchesCommand(query-tool) = true, want false")
	}
	if !MatchesCommand(pid, "") {
		t.Error("MatchesCommand with empty command = false, want true")
	}
}
