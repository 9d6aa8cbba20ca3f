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
	"fmt"
	"net/http"
	"time"

	"github.com/tombee/depot/internal/tracing"
	pkgerrors "github.com/tombee/depot/pkg/errors"
)

// ErrHealthCheckTimeout is wrapped by the error WaitUntilHealthy returns
// when the endpoint never answered.
var ErrHealthCheckTimeout = errors.New("health check timeout")

// Backoff is an exponential retry schedule.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff starts at 50ms and doubles up to 1s.
var DefaultBackoff = Backoff{
	Initial:    50 * time.Millisecond,
	Max:        time.Second,
	Multiplier: 2,
}

func (b Backoff) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * b.Multiplier)
	if d > b.Max {
		return b.Max
	}
	return d
}

// HealthChecker waits for an sse server to accept connections. The process
// of such a server is usually alive well before its listener is.
type HealthChecker struct {
	endpoint string
	client   *http.Client
	backoff  Backoff
}

// HealthCheckResult is the outcome of one attempt.
type HealthCheckResult struct {
	Success      bool
	StatusCode   int
	ResponseTime time.Duration
	Error        error
}

// NewHealthChecker creates a checker for endpoint using DefaultBackoff.
func NewHealthChecker(endpoint string) *HealthChecker {
	return &HealthChecker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
		backoff:  DefaultBackoff,
	}
}

// WithBackoff replaces the retry schedule.
func (h *HealthChecker) WithBackoff(b Backoff) *HealthChecker {
	h.backoff = b
	return h
}

// Check performs a single attempt. Anything below 500 counts as up: an sse
// endpoint may answer a plain GET with 4xx while listening fine. Only the
// headers are read since event streams never end.
func (h *HealthChecker) Check(ctx context.Context) *HealthCheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint, nil)
	if err != nil {
		return &HealthCheckResult{Error: fmt.Errorf("invalid endpoint %q: %w", h.endpoint, err)}
	}
	req.Header.Set("Accept", "text/event-stream")
	tracing.InjectIntoRequest(ctx, req)

	start := time.Now()
	resp, err := h.client.Do(req)
	result := &HealthCheckResult{ResponseTime: time.Since(start)}
	if err != nil {
		result.Error = err
		return result
	}
	resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode < http.StatusInternalServerError
	if !result.Success {
		result.Error = fmt.Errorf("endpoint answered %s", resp.Status)
	}
	return result
}

// WaitUntilHealthy retries Check until it succeeds or timeout elapses.
// onAttempt, when non-nil, sees every result with its 1-based attempt
// number. The timeout error is a *pkgerrors.TimeoutError wrapping
// ErrHealthCheckTimeout.
func (h *HealthChecker) WaitUntilHealthy(ctx context.Context, timeout time.Duration, onAttempt func(*HealthCheckResult, int)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := h.backoff.Initial
	timer := time.NewTimer(0)
	defer timer.Stop()

	var last *HealthCheckResult
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return &pkgerrors.TimeoutError{
				Operation: "health check of " + h.endpoint,
				Duration:  timeout,
				Cause:     fmt.Errorf("%w after %d attempts: %v", ErrHealthCheckTimeout, attempt-1, lastError(last)),
			}
		case <-timer.C:
		}

		last = h.Check(ctx)
		if onAttempt != nil {
			onAttempt(last, attempt)
		}
		if last.Success {
			return nil
		}

		timer.Reset(delay)
		delay = h.backoff.next(delay)
	}
}

func lastError(r *HealthCheckResult) error {
	if r == nil {
		return errors.New("no attempt made")
	}
	return r.Error
}
