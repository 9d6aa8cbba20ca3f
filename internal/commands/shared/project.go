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

package shared

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tombee/depot/internal/config"
)

// Project locates the files a command operates on.
type Project struct {
	// Dir is the project directory, the current working directory.
	Dir string

	// ManifestPath is the server manifest.
	ManifestPath string

	// RuntimeDir holds state, logs, pipes and built binaries.
	RuntimeDir string

	// Config is the loaded user configuration.
	Config *config.Config
}

// LoadProject loads the configuration named by --config and resolves the
// manifest and runtime directory, applying --manifest and --runtime-dir.
func LoadProject() (*Project, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, err
	}

	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine project directory: %w", err)
	}

	p := &Project{
		Dir:          dir,
		ManifestPath: cfg.Servers.ManifestFor(dir),
		RuntimeDir:   cfg.Servers.RuntimeDirFor(dir),
		Config:       cfg,
	}

	if m := GetManifestPath(); m != "" {
		p.ManifestPath = absFrom(dir, m)
	}
	if r := GetRuntimeDir(); r != "" {
		p.RuntimeDir = absFrom(dir, r)
	}

	return p, nil
}

func absFrom(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
