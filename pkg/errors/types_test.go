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

package errors_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	depoterrors "github.com/tombee/depot/pkg/errors"
)

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *depoterrors.ConfigError
		want string
	}{
		{
			name: "with key",
			err:  &depoterrors.ConfigError{Key: "servers.log_lines", Reason: "must not be negative"},
			want: "config error at servers.log_lines: must not be negative",
		},
		{
			name: "without key",
			err:  &depoterrors.ConfigError{Reason: "file is not valid YAML"},
			want: "config error: file is not valid YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigError_Unwrap(t *testing.T) {
	cause := errors.New("permission denied")
	err := &depoterrors.ConfigError{Reason: "unreadable", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("ConfigError should unwrap to its cause")
	}
}

func TestTimeoutError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := &depoterrors.TimeoutError{Operation: "health check", Duration: 10 * time.Second}
		if got, want := err.Error(), "health check timed out after 10s"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})

	t.Run("with cause", func(t *testing.T) {
		err := &depoterrors.TimeoutError{
			Operation: "health check",
			Duration:  time.Second,
			Cause:     errors.New("connection refused"),
		}
		msg := err.Error()
		if !strings.HasPrefix(msg, "health check timed out after 1s") {
			t.Errorf("Error() = %q, want timeout prefix", msg)
		}
		if !strings.Contains(msg, "connection refused") {
			t.Errorf("Error() = %q, want cause included", msg)
		}
	})
}

func TestTimeoutError_Unwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := depoterrors.Wrap(&depoterrors.TimeoutError{Operation: "x", Cause: sentinel}, "waiting")

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should reach the cause through TimeoutError")
	}

	var timeoutErr *depoterrors.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatal("errors.As should find TimeoutError in chain")
	}
	if timeoutErr.Operation != "x" {
		t.Errorf("Operation = %q, want %q", timeoutErr.Operation, "x")
	}
}

func TestTimeoutError_Classifier(t *testing.T) {
	var classifier depoterrors.ErrorClassifier = &depoterrors.TimeoutError{Operation: "x"}

	if classifier.ErrorType() != "timeout" {
		t.Errorf("ErrorType() = %q, want %q", classifier.ErrorType(), "timeout")
	}
	if !classifier.IsRetryable() {
		t.Error("timeouts should be retryable")
	}
}
