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
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultManifestName is the manifest file looked up in the project directory.
const DefaultManifestName = "depot.json"

// Transport is the communication mode a server exposes.
type Transport string

const (
	// TransportStdio servers speak over stdin/stdout.
	TransportStdio Transport = "stdio"
	// TransportSSE servers listen on a network address.
	TransportSSE Transport = "sse"
)

// ServerConfig describes one server declared in the manifest. It is derived
// fresh on every invocation and never persisted.
type ServerConfig struct {
	// Name is the namespaced server name, conventionally "<owner>/<server>".
	Name string

	// Command is the executable to run. Empty when SourcePath is set.
	Command string

	// SourcePath points at buildable source compiled on demand.
	SourcePath string

	Args      []string
	Transport Transport

	// Env holds extra environment variables, already expanded.
	Env map[string]string

	// URL is the endpoint of an sse server, if declared.
	URL string

	// Dir is the manifest directory. Relative paths resolve against it and
	// servers run with it as their working directory.
	Dir string
}

// Key returns the filesystem-safe key for this server.
func (c ServerConfig) Key() string {
	return SanitizeName(c.Name)
}

// Port returns the port of the server's URL, or 0 if none is declared.
func (c ServerConfig) Port() int {
	if c.URL == "" {
		return 0
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0
	}
	return port
}

// EnvList returns Env as sorted KEY=VALUE pairs.
func (c ServerConfig) EnvList() []string {
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// Manifest is the parsed set of server definitions.
type Manifest struct {
	// Path is the manifest file location.
	Path string

	// Exists is false when the manifest file was not found.
	Exists bool

	// Servers holds the valid entries sorted by name.
	Servers []ServerConfig

	// Skipped lists entries dropped because they failed to decode or named
	// neither command nor sourcePath.
	Skipped []string
}

// Names returns the configured server names in order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Servers))
	for i, s := range m.Servers {
		names[i] = s.Name
	}
	return names
}

// Get returns the server with exactly the given name.
func (m *Manifest) Get(name string) (ServerConfig, bool) {
	for _, s := range m.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return ServerConfig{}, false
}

// manifestFile is the on-disk JSON layout. Entries stay raw so one bad
// entry cannot fail the whole file.
type manifestFile struct {
	Servers map[string]json.RawMessage `json:"servers"`
}

type manifestEntry struct {
	Command    string            `json:"command"`
	SourcePath string            `json:"sourcePath"`
	Args       []string          `json:"args"`
	Transport  string            `json:"transport"`
	Env        map[string]string `json:"env"`
	URL        string            `json:"url"`
	SSE        bool              `json:"sse"`
}

// LoadManifest reads the manifest at path. A missing file yields an empty
// manifest, not an error. Entries that do not decode or lack both command and
// sourcePath are skipped; only a file that is not a JSON object with an
// object-valued "servers" key is an error.
func LoadManifest(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}

	m := &Manifest{Path: abs}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m.Exists = true

	var file manifestFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, ErrManifestInvalid(abs, err)
	}

	dir := filepath.Dir(abs)
	for name, raw := range file.Servers {
		var entry manifestEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			m.Skipped = append(m.Skipped, name)
			continue
		}
		if name == "" || (entry.Command == "" && entry.SourcePath == "") {
			m.Skipped = append(m.Skipped, name)
			continue
		}
		m.Servers = append(m.Servers, entry.toServerConfig(name, dir))
	}

	sort.Slice(m.Servers, func(i, j int) bool {
		return m.Servers[i].Name < m.Servers[j].Name
	})
	sort.Strings(m.Skipped)

	return m, nil
}

func (e manifestEntry) toServerConfig(name, dir string) ServerConfig {
	cfg := ServerConfig{
		Name:      name,
		Command:   resolveCommand(e.Command, dir),
		Args:      append([]string(nil), e.Args...),
		Transport: inferTransport(e),
		URL:       e.URL,
		Dir:       dir,
	}

	if e.SourcePath != "" && e.Command == "" {
		cfg.SourcePath = resolvePath(e.SourcePath, dir)
	}

	if len(e.Env) > 0 {
		cfg.Env = make(map[string]string, len(e.Env))
		for k, v := range e.Env {
			cfg.Env[k] = os.ExpandEnv(v)
		}
	}

	return cfg
}

func inferTransport(e manifestEntry) Transport {
	switch strings.ToLower(e.Transport) {
	case string(TransportSSE):
		return TransportSSE
	case string(TransportStdio):
		return TransportStdio
	}
	if e.URL != "" || e.SSE {
		return TransportSSE
	}
	return TransportStdio
}

// resolveCommand anchors path-like commands at the manifest directory and
// leaves bare names for PATH lookup.
func resolveCommand(command, dir string) string {
	if command == "" || !strings.ContainsRune(command, filepath.Separator) {
		return command
	}
	return resolvePath(command, dir)
}

func resolvePath(path, dir string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(dir, path)
}
