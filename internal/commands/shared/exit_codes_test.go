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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tombee/depot/internal/servers"
	pkgerrors "github.com/tombee/depot/pkg/errors"
)

// mockUserVisibleError is a test implementation of UserVisibleError
type mockUserVisibleError struct {
	message    string
	suggestion string
	visible    bool
}

func (e *mockUserVisibleError) Error() string {
	return e.message
}

func (e *mockUserVisibleError) IsUserVisible() bool {
	return e.visible
}

func (e *mockUserVisibleError) UserMessage() string {
	return e.message
}

func (e *mockUserVisibleError) Suggestion() string {
	return e.suggestion
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"usage exit error", NewUsageError("bad", nil), ExitUsage},
		{"failure exit error", NewFailureError("bad", nil), ExitFailure},
		{"server not found", servers.ErrServerNotFound("nope", []string{"a/b"}), ExitUsage},
		{"ambiguous name", servers.ErrAmbiguousName("tool", []string{"a/tool", "b/tool"}), ExitUsage},
		{"wrapped not found", fmt.Errorf("resolve: %w", servers.ErrServerNotFound("nope", nil)), ExitUsage},
		{"build failed", servers.ErrBuildFailed("a/b", "", errors.New("exit 1")), ExitFailure},
		{"silent", Silent(ExitFailure), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReportError_PrintsSuggestion(t *testing.T) {
	var buf bytes.Buffer
	err := servers.ErrServerNotFound("nope", []string{"acme/tool"})

	code := reportError(&buf, err)

	if code != ExitUsage {
		t.Errorf("code = %d, want %d", code, ExitUsage)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "Error: ") {
		t.Errorf("expected Error: prefix, got %q", out)
	}
	if !strings.Contains(out, "Suggestion: ") {
		t.Errorf("expected suggestion line, got %q", out)
	}
	if !strings.Contains(out, "acme/tool") {
		t.Errorf("expected available names in output, got %q", out)
	}
}

func TestReportError_WrappedUserVisible(t *testing.T) {
	var buf bytes.Buffer
	inner := &mockUserVisibleError{message: "lock busy", suggestion: "Retry in a moment", visible: true}

	reportError(&buf, NewFailureError("start failed", inner))

	if !strings.Contains(buf.String(), "Suggestion: Retry in a moment") {
		t.Errorf("expected suggestion from wrapped cause, got %q", buf.String())
	}
}

func TestReportError_HiddenSuggestion(t *testing.T) {
	var buf bytes.Buffer
	inner := &mockUserVisibleError{message: "internal", suggestion: "do not show", visible: false}

	reportError(&buf, inner)

	if strings.Contains(buf.String(), "Suggestion") {
		t.Errorf("suggestion of non user-visible error printed: %q", buf.String())
	}
}

func TestReportError_Silent(t *testing.T) {
	var buf bytes.Buffer

	code := reportError(&buf, Silent(ExitFailure))

	if code != ExitFailure {
		t.Errorf("code = %d, want %d", code, ExitFailure)
	}
	if buf.Len() != 0 {
		t.Errorf("silent error printed %q", buf.String())
	}
}

func TestExitError_Unwrap(t *testing.T) {
	innerErr := errors.New("inner error")
	exitErr := NewFailureError("stop failed", innerErr)

	if unwrapped := errors.Unwrap(exitErr); unwrapped != innerErr {
		t.Errorf("expected unwrapped error to be innerErr, got %v", unwrapped)
	}
	if exitErr.Error() != "stop failed: inner error" {
		t.Errorf("Error() = %q", exitErr.Error())
	}
}

func TestExitError_WithUserVisibleCause(t *testing.T) {
	cause := servers.ErrStateLocked("/tmp/servers.json.lock", errors.New("timeout"))
	exitErr := NewFailureError("status failed", cause)

	var userErr pkgerrors.UserVisibleError
	if !errors.As(exitErr, &userErr) {
		t.Fatal("expected to unwrap UserVisibleError from ExitError")
	}
	if userErr.Suggestion() == "" {
		t.Error("expected a suggestion for a locked state file")
	}
}
