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

package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tombee/depot/internal/tracing"
	pkgerrors "github.com/tombee/depot/pkg/errors"
)

func TestHealthChecker_Check(t *testing.T) {
	t.Run("returns success for healthy endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		checker := NewHealthChecker(server.URL)
		result := checker.Check(context.Background())

		if !result.Success {
			t.Errorf("Check() success = false, want true (error: %v)", result.Error)
		}
		if result.StatusCode != http.StatusOK {
			t.Errorf("Check() status = %d, want %d", result.StatusCode, http.StatusOK)
		}
	})

	t.Run("treats client errors as reachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusMethodNotAllowed)
		}))
		defer server.Close()

		result := NewHealthChecker(server.URL).Check(context.Background())
		if !result.Success {
			t.Errorf("Check() success = false for 405, want true")
		}
	})

	t.Run("returns failure for server errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		result := NewHealthChecker(server.URL).Check(context.Background())
		if result.Success {
			t.Error("Check() success = true, want false")
		}
		if result.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Check() status = %d, want %d", result.StatusCode, http.StatusServiceUnavailable)
		}
	})

	t.Run("returns error for connection failure", func(t *testing.T) {
		checker := NewHealthChecker("http://127.0.0.1:1/sse")
		result := checker.Check(context.Background())

		if result.Success {
			t.Error("Check() success = true, want false")
		}
		if result.Error == nil {
			t.Error("Check() error = nil, want non-nil")
		}
	})
}

func TestHealthChecker_WaitUntilHealthy(t *testing.T) {
	t.Run("succeeds once the endpoint recovers", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		checker := NewHealthChecker(server.URL).WithBackoff(Backoff{Initial: 5 * time.Millisecond, Max: 20 * time.Millisecond, Multiplier: 2})

		attempts := 0
		err := checker.WaitUntilHealthy(context.Background(), 2*time.Second, func(_ *HealthCheckResult, n int) {
			attempts = n
		})
		if err != nil {
			t.Fatalf("WaitUntilHealthy() error = %v", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("times out for a dead endpoint", func(t *testing.T) {
		checker := NewHealthChecker("http://127.0.0.1:1/sse").WithBackoff(Backoff{Initial: 5 * time.Millisecond, Max: 10 * time.Millisecond, Multiplier: 2})

		err := checker.WaitUntilHealthy(context.Background(), 100*time.Millisecond, nil)
		if !errors.Is(err, ErrHealthCheckTimeout) {
			t.Errorf("WaitUntilHealthy() error = %v, want ErrHealthCheckTimeout", err)
		}
	})
}

func TestHealthChecker_TimeoutError(t *testing.T) {
	checker := NewHealthChecker("http://127.0.0.1:1/sse").WithBackoff(Backoff{Initial: 5 * time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 1})

	err := checker.WaitUntilHealthy(context.Background(), 50*time.Millisecond, nil)

	var timeoutErr *pkgerrors.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("error = %T, want *errors.TimeoutError", err)
	}
	if timeoutErr.Duration != 50*time.Millisecond {
		t.Errorf("Duration = %v, want 50ms", timeoutErr.Duration)
	}
	if !strings.Contains(err.Error(), "127.0.0.1:1") {
		t.Errorf("error %q should name the endpoint", err)
	}
}

func TestHealthChecker_SendsCorrelationID(t *testing.T) {
	got := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get(tracing.HeaderCorrelationID)
	}))
	defer server.Close()

	ctx := tracing.ToContext(context.Background(), "550e8400-e29b-41d4-a716-446655440000")
	if res := NewHealthChecker(server.URL).Check(ctx); !res.Success {
		t.Fatalf("Check() failed: %v", res.Error)
	}
	if id := <-got; id != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("correlation header = %q", id)
	}
}

func TestBackoff_Next(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 35 * time.Millisecond, Multiplier: 2}
	d := b.Initial
	var seen []time.Duration
	for i := 0; i < 4; i++ {
		d = b.next(d)
		seen = append(seen, d)
	}
	want := []time.Duration{20 * time.Millisecond, 35 * time.Millisecond, 35 * time.Millisecond, 35 * time.Millisecond}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("step %d = %v, want %v", i, seen[i], want[i])
		}
	}
}
