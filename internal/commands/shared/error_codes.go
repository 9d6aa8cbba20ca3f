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
	"errors"
	"strings"

	pkgerrors "github.com/tombee/depot/pkg/errors"
)

// Error codes for structured JSON output
const (
	// Resolution errors (E001-E099)
	ErrorCodeNotFound  = "E001" // No server matches the given name
	ErrorCodeAmbiguous = "E002" // Several servers match the given name

	// Lifecycle errors (E100-E199)
	ErrorCodeSourceNotFound = "E101" // Server source directory missing
	ErrorCodeBuildFailed    = "E102" // Build tool failed
	ErrorCodeStartFailed    = "E103" // Process could not be spawned
	ErrorCodeStateLocked    = "E104" // State file lock not acquired

	// Configuration errors (E200-E299)
	ErrorCodeInvalidConfig = "E201" // Config or manifest unreadable

	ErrorCodeInternal = "E402" // Anything else
)

// errorTypeCodes maps ErrorClassifier.ErrorType values to JSON codes.
var errorTypeCodes = map[string]string{
	"not_found":        ErrorCodeNotFound,
	"ambiguous":        ErrorCodeAmbiguous,
	"source_not_found": ErrorCodeSourceNotFound,
	"build_failed":     ErrorCodeBuildFailed,
	"start_failed":     ErrorCodeStartFailed,
	"state_locked":     ErrorCodeStateLocked,
	"config":           ErrorCodeInvalidConfig,
}

// ErrorCodeFor returns the JSON error code for err.
func ErrorCodeFor(err error) string {
	var classified pkgerrors.ErrorClassifier
	if errors.As(err, &classified) {
		if code, ok := errorTypeCodes[strings.ToLower(classified.ErrorType())]; ok {
			return code
		}
	}

	var cfgErr *pkgerrors.ConfigError
	if errors.As(err, &cfgErr) {
		return ErrorCodeInvalidConfig
	}

	return ErrorCodeInternal
}

// JSONErrorFor converts err into its structured form.
func JSONErrorFor(err error) JSONError {
	out := JSONError{
		Code:    ErrorCodeFor(err),
		Message: err.Error(),
	}

	var userErr pkgerrors.UserVisibleError
	if errors.As(err, &userErr) && userErr.IsUserVisible() {
		out.Suggestion = userErr.Suggestion()
	}

	return out
}
