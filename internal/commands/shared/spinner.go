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
	"io"
	"os"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 100 * time.Millisecond

// Spinner redraws a single status line with an animated frame and the
// elapsed time while a command blocks. Without animation the message is
// printed once.
type Spinner struct {
	out     io.Writer
	animate bool

	mu      sync.Mutex
	message string
	started time.Time
	stop    chan struct{}
	done    sync.WaitGroup
}

// NewSpinner creates a spinner on stderr that animates when stderr is a
// terminal.
func NewSpinner() *Spinner {
	return NewSpinnerTo(os.Stderr, IsTerminal(os.Stderr))
}

// NewSpinnerTo creates a spinner writing to w.
func NewSpinnerTo(w io.Writer, animate bool) *Spinner {
	return &Spinner{out: w, animate: animate}
}

// Start shows message. Calling Start on a running spinner does nothing.
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return
	}
	s.message = message
	s.started = time.Now()
	s.stop = make(chan struct{})

	if !s.animate {
		fmt.Fprintln(s.out, message)
		return
	}

	s.draw(0)
	s.done.Add(1)
	go s.loop(s.stop)
}

// Stop clears the spinner line and returns how long it ran. Stopping an
// idle spinner returns zero.
func (s *Spinner) Stop() time.Duration {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()

	if stop == nil {
		return 0
	}
	close(stop)
	s.done.Wait()

	if s.animate {
		fmt.Fprint(s.out, "\r\033[K")
	}
	return time.Since(s.started)
}

func (s *Spinner) loop(stop <-chan struct{}) {
	defer s.done.Done()

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for frame := 1; ; frame++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.draw(frame)
			s.mu.Unlock()
		}
	}
}

// draw must be called with mu held.
func (s *Spinner) draw(frame int) {
	glyph := spinnerFrames[frame%len(spinnerFrames)]
	if !ColorEnabled() {
		glyph = "..."
	}
	fmt.Fprintf(s.out, "\r\033[K%s %s %s", s.message,
		Muted.Render(glyph),
		Muted.Render("("+formatElapsed(time.Since(s.started))+")"))
}

// formatElapsed renders whole seconds, e.g. "12s" or "1m23s".
func formatElapsed(d time.Duration) string {
	return d.Round(time.Second).String()
}
