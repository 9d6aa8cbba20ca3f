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
	"fmt"
	"strings"
)

// ErrorCode represents a category of server management error.
type ErrorCode string

const (
	// ErrorCodeNotFound indicates no configured server matched a name.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeAmbiguous indicates a short name matched several servers.
	ErrorCodeAmbiguous ErrorCode = "AMBIGUOUS"
	// ErrorCodeSourceNotFound indicates a sourcePath does not exist.
	ErrorCodeSourceNotFound ErrorCode = "SOURCE_NOT_FOUND"
	// ErrorCodeBuildFailed indicates compiling a server from source failed.
	ErrorCodeBuildFailed ErrorCode = "BUILD_FAILED"
	// ErrorCodeStartFailed indicates the server process could not be spawned.
	ErrorCodeStartFailed ErrorCode = "START_FAILED"
	// ErrorCodeStateLocked indicates another invocation holds the state lock.
	ErrorCodeStateLocked ErrorCode = "STATE_LOCKED"
	// ErrorCodeConfig indicates the manifest could not be interpreted.
	ErrorCodeConfig ErrorCode = "CONFIG"
)

// Error is a server management error with suggestions for resolution.
type Error struct {
	// Code is the error category.
	Code ErrorCode
	// Message is the primary error message.
	Message string
	// Detail provides additional context.
	Detail string
	// Suggestions are actionable steps to resolve the error.
	Suggestions []string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Cause != nil && e.Detail == "" {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements pkg/errors.UserVisibleError.
func (e *Error) IsUserVisible() bool {
	return true
}

// UserMessage implements pkg/errors.UserVisibleError.
func (e *Error) UserMessage() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// Suggestion implements pkg/errors.UserVisibleError.
// The full list is available in Suggestions.
func (e *Error) Suggestion() string {
	if len(e.Suggestions) == 0 {
		return ""
	}
	return e.Suggestions[0]
}

// ErrorType implements pkg/errors.ErrorClassifier.
func (e *Error) ErrorType() string {
	return strings.ToLower(string(e.Code))
}

// IsRetryable implements pkg/errors.ErrorClassifier.
// Only lock contention clears up on its own.
func (e *Error) IsRetryable() bool {
	return e.Code == ErrorCodeStateLocked
}

// IsUsageError reports whether the error stems from how the command was
// invoked rather than from a server failing.
func (e *Error) IsUsageError() bool {
	return e.Code == ErrorCodeNotFound || e.Code == ErrorCodeAmbiguous
}

// NewError creates a new Error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithDetail adds detail to the error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithSuggestions adds suggestions to the error.
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = suggestions
	return e
}

// WithCause adds an underlying cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// ErrServerNotFound creates an error for a name that matches no server.
func ErrServerNotFound(name string, available []string) *Error {
	err := NewError(ErrorCodeNotFound, fmt.Sprintf("server '%s' not found", name))
	if len(available) == 0 {
		return err.WithSuggestions("Add servers to the manifest under \"servers\"")
	}
	return err.
		WithDetail("available: " + strings.Join(available, ", ")).
		WithSuggestions("Check configured servers: depot servers status")
}

// ErrAmbiguousName creates an error for a short name matching several servers.
func ErrAmbiguousName(name string, candidates []string) *Error {
	return NewError(ErrorCodeAmbiguous, fmt.Sprintf("server name '%s' is ambiguous", name)).
		WithDetail("matches: " + strings.Join(candidates, ", ")).
		WithSuggestions(fmt.Sprintf("Use the full name, e.g. depot servers start %s", candidates[0]))
}

// ErrSourceNotFound creates an error for a missing source directory.
func ErrSourceNotFound(server, path string) *Error {
	return NewError(ErrorCodeSourceNotFound, fmt.Sprintf("source for server '%s' not found", server)).
		WithDetail(path).
		WithSuggestions("Check the sourcePath entry in the manifest")
}

// ErrBuildFailed creates an error carrying compiler output.
func ErrBuildFailed(server, output string, cause error) *Error {
	return NewError(ErrorCodeBuildFailed, fmt.Sprintf("failed to build server '%s'", server)).
		WithDetail(strings.TrimSpace(output)).
		WithCause(cause).
		WithSuggestions("Fix the build errors above and run the command again")
}

// ErrStartFailed creates an error for a server that could not be spawned.
func ErrStartFailed(server string, cause error) *Error {
	return NewError(ErrorCodeStartFailed, fmt.Sprintf("failed to start server '%s'", server)).
		WithCause(cause).
		WithSuggestions(
			"Verify the command exists and is executable",
			fmt.Sprintf("Check the server log: depot servers logs %s --no-follow", server),
		)
}

// ErrStateLocked creates an error for lock contention on the state file.
func ErrStateLocked(path string, cause error) *Error {
	return NewError(ErrorCodeStateLocked, "server state is locked by another depot invocation").
		WithDetail(path).
		WithCause(cause).
		WithSuggestions("Wait for the other command to finish and try again")
}

// ErrManifestInvalid creates an error for a manifest that cannot be parsed.
func ErrManifestInvalid(path string, cause error) *Error {
	return NewError(ErrorCodeConfig, fmt.Sprintf("invalid manifest %s", path)).
		WithCause(cause).
		WithSuggestions("Check the manifest is valid JSON with a \"servers\" object")
}
