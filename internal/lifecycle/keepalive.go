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
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ErrNotAPipe is returned when the keep-alive path exists but is not a named pipe.
var ErrNotAPipe = errors.New("keep-alive path is not a named pipe")

// KeepAlivePipe is a named pipe that serves as a stdio server's input.
//
// A server that loops over stdin exits as soon as its input has no writers.
// The pipe is opened read-write and the descriptor is handed to the child,
// so the child itself always holds a writer and its reads block instead of
// returning EOF, long after the spawning invocation has exited. The pipe
// object stays on disk until Remove is called.
type KeepAlivePipe struct {
	path string
}

// NewKeepAlivePipe creates a keep-alive pipe handle for the given path.
func NewKeepAlivePipe(path string) *KeepAlivePipe {
	return &KeepAlivePipe{path: path}
}

// Path returns the pipe location.
func (p *KeepAlivePipe) Path() string {
	return p.path
}

// Open (re)creates the named pipe and opens it read-write.
// The caller passes the returned file to the child and closes its own copy
// once the child has started.
func (p *KeepAlivePipe) Open() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create pipe directory: %w", err)
	}

	// A leftover pipe from a crashed server is replaced, never reused.
	if err := p.Remove(); err != nil {
		return nil, err
	}

	if err := unix.Mkfifo(p.path, 0600); err != nil {
		return nil, fmt.Errorf("failed to create keep-alive pipe: %w", err)
	}

	// O_RDWR never blocks on a FIFO, unlike O_RDONLY without a writer.
	f, err := os.OpenFile(p.path, os.O_RDWR, 0)
	if err != nil {
		_ = os.Remove(p.path)
		return nil, fmt.Errorf("failed to open keep-alive pipe: %w", err)
	}

	// The runtime poller may have switched the descriptor to non-blocking.
	// The flag lives on the shared open file description, so reset it or
	// the child's reads would fail with EAGAIN.
	if err := unix.SetNonblock(int(f.Fd()), false); err != nil {
		f.Close()
		_ = os.Remove(p.path)
		return nil, fmt.Errorf("failed to configure keep-alive pipe: %w", err)
	}

	return f, nil
}

// Exists reports whether a named pipe is present at the path.
func (p *KeepAlivePipe) Exists() bool {
	info, err := os.Lstat(p.path)
	return err == nil && info.Mode()&os.ModeNamedPipe != 0
}

// Remove deletes the pipe object. A missing pipe is not an error; a regular
// file at the path is refused so a misconfigured runtime dir cannot make us
// delete user data.
func (p *KeepAlivePipe) Remove() error {
	info, err := os.Lstat(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat keep-alive pipe: %w", err)
	}

	if info.Mode()&os.ModeNamedPipe == 0 {
		return fmt.Errorf("%w: %s", ErrNotAPipe, p.path)
	}

	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove keep-alive pipe: %w", err)
	}
	return nil
}
