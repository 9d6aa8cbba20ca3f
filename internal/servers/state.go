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

package servers

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/tombee/depot/internal/lifecycle"
	pkgerrors "github.com/tombee/depot/pkg/errors"
)

const (
	// StateFileVersion is the current version of the state file format.
	StateFileVersion = 1

	// StateFileName is the state file inside the runtime directory.
	StateFileName = "servers.json"

	// DefaultRuntimeDir is the runtime directory relative to the project.
	DefaultRuntimeDir = ".depot/servers"

	lifecycleLogName = "lifecycle.log"
)

// ServerState is the persisted record of a server spawned by depot.
type ServerState struct {
	Name      string    `json:"name"`
	PID       int       `json:"pid"`
	Transport Transport `json:"transport"`

	// LogFile is relative to the runtime directory.
	LogFile string `json:"logFile"`

	// Command is the resolved executable, used to recognise the process later.
	Command   string    `json:"command"`
	Args      []string  `json:"args"`
	StartedAt time.Time `json:"startedAt"`
	Port      int       `json:"port,omitempty"`
}

// Uptime returns how long the server has been running.
func (s *ServerState) Uptime() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return time.Since(s.StartedAt)
}

// StateFile maps sanitized server names to their recorded state. An entry
// asserts the PID was spawned by depot for that server as of the last write;
// it may have gone stale since.
type StateFile struct {
	Version int                     `json:"version"`
	Servers map[string]*ServerState `json:"servers"`
}

// NewStateFile returns an empty state file.
func NewStateFile() *StateFile {
	return &StateFile{
		Version: StateFileVersion,
		Servers: make(map[string]*ServerState),
	}
}

// Get returns the entry for a server name.
func (f *StateFile) Get(name string) (*ServerState, bool) {
	s, ok := f.Servers[SanitizeName(name)]
	return s, ok
}

// Put records state, replacing any existing entry for the same server.
func (f *StateFile) Put(state *ServerState) {
	f.Servers[SanitizeName(state.Name)] = state
}

// Delete removes the entry for a server name.
func (f *StateFile) Delete(name string) {
	delete(f.Servers, SanitizeName(name))
}

// SanitizeName turns a namespaced server name into a filesystem-safe key.
func SanitizeName(name string) string {
	return strings.ReplaceAll(name, "/", "__")
}

// Store owns the runtime directory: the state file, its lock, server logs,
// keep-alive pipes and cached binaries.
type Store struct {
	dir  string
	lock *lifecycle.FileLock
}

// NewStore creates a store rooted at the given runtime directory.
func NewStore(dir string) *Store {
	return &Store{
		dir:  dir,
		lock: lifecycle.NewFileLock(filepath.Join(dir, StateFileName+".lock")),
	}
}

// Dir returns the runtime directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the state file path.
func (s *Store) Path() string { return filepath.Join(s.dir, StateFileName) }

// LogFileName returns the log file name of a server, relative to Dir.
func (s *Store) LogFileName(name string) string { return SanitizeName(name) + ".log" }

// LogPath returns the absolute log file path of a server.
func (s *Store) LogPath(name string) string {
	return filepath.Join(s.dir, s.LogFileName(name))
}

// PipePath returns the keep-alive pipe path of a stdio server.
func (s *Store) PipePath(name string) string {
	return filepath.Join(s.dir, SanitizeName(name)+".stdin")
}

// BinDir returns the directory holding binaries built from source.
func (s *Store) BinDir() string { return filepath.Join(s.dir, "bin") }

// EventLogPath returns the lifecycle audit log path.
func (s *Store) EventLogPath() string { return filepath.Join(s.dir, lifecycleLogName) }

// Load reads the state file. A missing, unparsable or version-mismatched file
// yields an empty state; only I/O failures are returned as errors.
func (s *Store) Load() (*StateFile, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewStateFile(), nil
		}
		return nil, pkgerrors.Wrapf(err, "failed to read state file %s", s.Path())
	}

	var state StateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return NewStateFile(), nil
	}
	if state.Version != StateFileVersion {
		return NewStateFile(), nil
	}
	if state.Servers == nil {
		state.Servers = make(map[string]*ServerState)
	}
	// Drop null entries written by hand edits.
	for k, v := range state.Servers {
		if v == nil {
			delete(state.Servers, k)
		}
	}

	return &state, nil
}

// Save writes the state file atomically, creating the runtime directory.
func (s *Store) Save(state *StateFile) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return pkgerrors.Wrap(err, "failed to create runtime directory")
	}

	state.Version = StateFileVersion
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal state")
	}

	if err := renameio.WriteFile(s.Path(), append(data, '\n'), 0600); err != nil {
		return pkgerrors.Wrapf(err, "failed to write state file %s", s.Path())
	}

	return nil
}

// Lock takes the advisory state lock for a load-mutate-save cycle.
// The returned function releases it.
func (s *Store) Lock(ctx context.Context, timeout time.Duration) (func(), error) {
	if err := s.lock.Lock(ctx, timeout); err != nil {
		if errors.Is(err, lifecycle.ErrLocked) {
			return nil, ErrStateLocked(s.lock.Path(), err)
		}
		return nil, err
	}
	return func() { _ = s.lock.Unlock() }, nil
}
