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

// Package errors holds the error contracts shared by depot's packages and
// its command layer.
package errors

// UserVisibleError is implemented by errors that carry a message and a
// suggested fix meant for the person at the terminal. The command layer
// prints both; servers.Error is the main implementation.
type UserVisibleError interface {
	error

	// IsUserVisible reports whether the message is fit to show as is.
	IsUserVisible() bool

	// UserMessage is the message without wrapped causes.
	UserMessage() string

	// Suggestion is one actionable next step, or "".
	Suggestion() string
}

// ErrorClassifier is implemented by errors that belong to a named category.
// The category selects the structured error code in JSON output.
type ErrorClassifier interface {
	error

	// ErrorType names the category, e.g. "not_found", "build_failed" or "timeout".
	ErrorType() string

	// IsRetryable reports whether running the same command again may succeed.
	IsRetryable() bool
}
