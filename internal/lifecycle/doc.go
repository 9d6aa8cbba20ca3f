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

/*
Package lifecycle provides the OS-level primitives used to supervise tool
server processes across independent depot invocations.

Nothing in this package keeps in-memory state between invocations. Every
decision is made against the live process table, which is why liveness is
probed with signal 0 instead of wait(): the processes being inspected were
usually spawned by an earlier, already exited, depot process.

# Liveness and Shutdown

	if lifecycle.IsProcessRunning(pid) {
	    res, err := lifecycle.GracefulShutdown(pid, lifecycle.ShutdownOptions{
	        Timeout: 5 * time.Second,
	    })
	    // res.Forced reports whether SIGKILL was needed
	}

# Process Spawning

Servers are spawned detached in their own session with stdout and stderr
redirected to a log file that is truncated on every start:

	spawner := lifecycle.NewSpawner()
	pid, err := spawner.SpawnDetached(lifecycle.SpawnSpec{
	    Binary:  "/path/to/tool",
	    LogPath: "/project/.depot/servers/acme__tool.log",
	})

# Keep-Alive Pipes

A stdio server reading from an input stream without writers sees EOF the
moment its parent exits. KeepAlivePipe creates a named pipe, opens it
read-write and hands it to the child as stdin, so the pipe never runs out of
writers:

	pipe := lifecycle.NewKeepAlivePipe("/project/.depot/servers/acme__tool.stdin")
	stdin, err := pipe.Open()
	defer stdin.Close()

# State Locking

FileLock wraps an advisory flock used to serialize the load-mutate-save cycle
of the state file between concurrent invocations.

# Lifecycle Logging

EventLog appends one JSON line per lifecycle event for auditing:

	events := lifecycle.NewEventLog("/project/.depot/servers/lifecycle.log")
	events.LogStart("acme/tool", pid, "stdio")
*/
package lifecycle
