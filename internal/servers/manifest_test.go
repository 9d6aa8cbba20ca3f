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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadManifest(t *testing.T) {
	t.Run("missing file is empty", func(t *testing.T) {
		m, err := LoadManifest(filepath.Join(t.TempDir(), "depot.json"))
		require.NoError(t, err)
		assert.False(t, m.Exists)
		assert.Empty(t, m.Servers)
	})

	t.Run("malformed json is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "depot.json")
		writeFile(t, path, `{"servers": {`)

		_, err := LoadManifest(path)
		require.Error(t, err)

		var serr *Error
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, ErrorCodeConfig, serr.Code)
	})

	t.Run("entries sorted and invalid ones skipped", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "depot.json")
		writeFile(t, path, `{
			"servers": {
				"zeta/tool": {"command": "zeta-server"},
				"alpha/tool": {"command": "./bin/alpha", "args": ["--verbose"]},
				"broken/tool": {"args": ["x"]},
				"src/tool": {"sourcePath": "./cmd/tool"}
			}
		}`)

		m, err := LoadManifest(path)
		require.NoError(t, err)
		assert.True(t, m.Exists)
		assert.Equal(t, []string{"alpha/tool", "src/tool", "zeta/tool"}, m.Names())
		assert.Equal(t, []string{"broken/tool"}, m.Skipped)

		alpha, ok := m.Get("alpha/tool")
		require.True(t, ok)
		assert.Equal(t, filepath.Join(dir, "bin", "alpha"), alpha.Command)
		assert.Equal(t, []string{"--verbose"}, alpha.Args)
		assert.Equal(t, dir, alpha.Dir)

		zeta, _ := m.Get("zeta/tool")
		assert.Equal(t, "zeta-server", zeta.Command, "bare commands are left for PATH lookup")

		src, _ := m.Get("src/tool")
		assert.Empty(t, src.Command)
		assert.Equal(t, filepath.Join(dir, "cmd", "tool"), src.SourcePath)
	})

	t.Run("entry with wrong field types is skipped", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "depot.json")
		writeFile(t, path, `{"servers": {
			"good/tool": {"command": "sleep", "args": ["60"]},
			"bad/tool": {"command": "x", "args": "not-an-array"},
			"worse/tool": 42
		}}`)

		m, err := LoadManifest(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"good/tool"}, m.Names())
		assert.Equal(t, []string{"bad/tool", "worse/tool"}, m.Skipped)

		good, ok := m.Get("good/tool")
		require.True(t, ok)
		assert.Equal(t, []string{"60"}, good.Args)
	})

	t.Run("env values are expanded", func(t *testing.T) {
		t.Setenv("DEPOT_TEST_TOKEN", "s3cret")
		path := filepath.Join(t.TempDir(), "depot.json")
		writeFile(t, path, `{"servers": {"a/x": {"command": "x", "env": {"TOKEN": "${DEPOT_TEST_TOKEN}", "PLAIN": "v"}}}}`)

		m, err := LoadManifest(path)
		require.NoError(t, err)
		cfg, _ := m.Get("a/x")
		assert.Equal(t, "s3cret", cfg.Env["TOKEN"])
		assert.Equal(t, []string{"PLAIN=v", "TOKEN=s3cret"}, cfg.EnvList())
	})

	t.Run("no servers key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "depot.json")
		writeFile(t, path, `{"dependencies": {}}`)

		m, err := LoadManifest(path)
		require.NoError(t, err)
		assert.True(t, m.Exists)
		assert.Empty(t, m.Servers)
	})
}

func TestInferTransport(t *testing.T) {
	tests := []struct {
		name  string
		entry manifestEntry
		want  Transport
	}{
		{"default", manifestEntry{Command: "x"}, TransportStdio},
		{"explicit stdio", manifestEntry{Command: "x", Transport: "stdio", URL: "http://localhost:1"}, TransportStdio},
		{"explicit sse", manifestEntry{Command: "x", Transport: "SSE"}, TransportSSE},
		{"url marker", manifestEntry{Command: "x", URL: "http://localhost:8080/sse"}, TransportSSE},
		{"sse marker", manifestEntry{Command: "x", SSE: true}, TransportSSE},
		{"unknown falls back to markers", manifestEntry{Command: "x", Transport: "ws"}, TransportStdio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferTransport(tt.entry))
		})
	}
}

func TestServerConfig_Port(t *testing.T) {
	assert.Equal(t, 8080, ServerConfig{URL: "http://localhost:8080/sse"}.Port())
	assert.Equal(t, 0, ServerConfig{URL: "http://localhost/sse"}.Port())
	assert.Equal(t, 0, ServerConfig{}.Port())
}
