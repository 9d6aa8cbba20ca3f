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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

const (
	// DefaultTailLines is how many lines logs prints before following.
	DefaultTailLines = 50

	// DefaultFollowInterval is how often a followed log is checked for growth.
	DefaultFollowInterval = 250 * time.Millisecond

	followStopGrace = 100 * time.Millisecond
)

// LogTail is the end of a log file.
type LogTail struct {
	// Lines are the last complete lines, without their newlines.
	Lines []string

	// Partial is a trailing line still being written, if any.
	Partial string

	// Offset is the end of the last complete line. Following from here
	// prints Partial once, with whatever completes it.
	Offset int64
}

// All returns Lines followed by Partial when there is one.
func (t LogTail) All() []string {
	if t.Partial == "" {
		return t.Lines
	}
	return append(append([]string(nil), t.Lines...), t.Partial)
}

// Tail reads the last n complete lines of the file at path.
func Tail(path string, n int) (LogTail, error) {
	f, err := os.Open(path)
	if err != nil {
		return LogTail{}, err
	}
	defer f.Close()

	var (
		ring   []string
		count  int
		result LogTail
	)
	if n > 0 {
		ring = make([]string, n)
	}

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			result.Partial = trimNewline(line)
			break
		}
		if err != nil {
			return LogTail{}, fmt.Errorf("failed to read log: %w", err)
		}
		result.Offset += int64(len(line))
		if n > 0 {
			ring[count%n] = trimNewline(line)
			count++
		}
	}

	size := min(count, n)
	start := count - size
	for i := 0; i < size; i++ {
		result.Lines = append(result.Lines, ring[(start+i)%n])
	}
	return result, nil
}

func trimNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '\r' {
		s = s[:len(s)-1]
	}
	return s
}

// Follow streams bytes appended to path after offset into w until ctx is
// cancelled. The file size is polled every interval; fsnotify write events
// wake the loop early when available. A file that shrinks below the last
// offset was truncated by a restart and is read again from the start.
func Follow(ctx context.Context, path string, offset int64, w io.Writer, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultFollowInterval
	}

	sctx := stopper.WithContext(ctx)
	wake := make(chan struct{}, 1)

	// Watching is best effort; polling alone is enough to make progress.
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			_ = watcher.Close()
		} else {
			sctx.Defer(func() {
				_ = watcher.Close()
			})
			sctx.Go(func(sctx *stopper.Context) error {
				return forwardWrites(sctx, watcher, path, wake)
			})
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		next, err := copyAppended(path, offset, w)
		if err != nil {
			sctx.Stop(followStopGrace)
			_ = sctx.Wait()
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			sctx.Stop(followStopGrace)
			_ = sctx.Wait()
			return nil
		case <-ticker.C:
		case <-wake:
		}
	}
}

func forwardWrites(sctx *stopper.Context, watcher *fsnotify.Watcher, path string, wake chan<- struct{}) error {
	for !sctx.IsStopping() {
		select {
		case <-sctx.Stopping():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
	return nil
}

// copyAppended writes everything past offset to w and returns the new offset.
func copyAppended(path string, offset int64, w io.Writer) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset, fmt.Errorf("failed to stat log: %w", err)
	}

	size := info.Size()
	if size < offset {
		offset = 0
	}
	if size == offset {
		return offset, nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("failed to seek log: %w", err)
	}
	n, err := io.CopyN(w, f, size-offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return offset + n, fmt.Errorf("failed to copy log: %w", err)
	}
	return offset + n, nil
}
