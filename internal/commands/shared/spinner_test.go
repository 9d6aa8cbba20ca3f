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
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner_NonTTYPrintsOnce(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinnerTo(&buf, false)

	s.Start("Stopping acme/tool")
	s.Start("ignored while active")
	elapsed := s.Stop()

	if got := buf.String(); got != "Stopping acme/tool\n" {
		t.Errorf("output = %q", got)
	}
	if elapsed < 0 {
		t.Errorf("elapsed = %v", elapsed)
	}
	if s.Stop() != 0 {
		t.Error("second Stop should report zero")
	}
}

func TestSpinner_AnimatesAndClears(t *testing.T) {
	var buf syncBuffer
	s := NewSpinnerTo(&buf, true)

	s.Start("Starting all servers")
	time.Sleep(3 * spinnerInterval)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "Starting all servers") {
		t.Errorf("output %q does not contain the message", out)
	}
	if !strings.HasSuffix(out, "\r\033[K") {
		t.Errorf("output %q does not end by clearing the line", out)
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{12*time.Second + 300*time.Millisecond, "12s"},
		{2 * time.Minute, "2m0s"},
		{83 * time.Second, "1m23s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.in); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
