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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBuildTool compiles servers declared with a sourcePath.
const DefaultBuildTool = "go"

// BuildResult describes how an executable was obtained.
type BuildResult struct {
	// Path is the executable to run.
	Path string

	// Cached is true when an up-to-date binary was reused.
	Cached bool

	Duration time.Duration
}

// BuildCache compiles source-based servers into the runtime bin directory and
// reuses the output while it is newer than the source.
type BuildCache struct {
	binDir string
	tool   string
}

// NewBuildCache creates a build cache writing binaries to binDir.
func NewBuildCache(binDir, tool string) *BuildCache {
	if tool == "" {
		tool = DefaultBuildTool
	}
	return &BuildCache{binDir: binDir, tool: tool}
}

// BinaryPath returns the cached binary location for a server.
func (b *BuildCache) BinaryPath(name string) string {
	return filepath.Join(b.binDir, SanitizeName(name))
}

// Resolve returns the executable for cfg. Servers with a command are returned
// as-is; servers with a sourcePath are built when the cached binary is missing
// or older than the source.
func (b *BuildCache) Resolve(ctx context.Context, cfg ServerConfig) (BuildResult, error) {
	if cfg.SourcePath == "" {
		return BuildResult{Path: cfg.Command, Cached: true}, nil
	}

	start := time.Now()
	out := b.BinaryPath(cfg.Name)

	srcModTime, err := newestModTime(cfg.SourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return BuildResult{}, ErrSourceNotFound(cfg.Name, cfg.SourcePath)
		}
		return BuildResult{}, fmt.Errorf("failed to stat source: %w", err)
	}

	if info, err := os.Stat(out); err == nil && info.ModTime().After(srcModTime) {
		return BuildResult{Path: out, Cached: true, Duration: time.Since(start)}, nil
	}

	if err := os.MkdirAll(b.binDir, 0700); err != nil {
		return BuildResult{}, fmt.Errorf("failed to create bin directory: %w", err)
	}

	dir, target := buildTarget(cfg.SourcePath)
	cmd := exec.CommandContext(ctx, b.tool, "build", "-o", out, target)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return BuildResult{}, ErrBuildFailed(cfg.Name, string(output), err)
	}

	return BuildResult{Path: out, Duration: time.Since(start)}, nil
}

// buildTarget runs package builds from inside the package directory so the
// build tool finds the enclosing module.
func buildTarget(source string) (dir, target string) {
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		return source, "."
	}
	return filepath.Dir(source), filepath.Base(source)
}

// newestModTime returns the latest modification time under path. Hidden
// directories are skipped.
func newestModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	if !info.IsDir() {
		return info.ModTime(), nil
	}

	newest := info.ModTime()
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.ModTime().After(newest) {
			newest = fi.ModTime()
		}
		return nil
	})
	return newest, err
}
