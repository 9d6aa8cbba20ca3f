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

package tracing

import (
	"fmt"
	"io"
)

// Exporter names accepted in Config.Exporter.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config holds tracing configuration.
type Config struct {
	// Exporter selects where spans go: none, stdout or otlp.
	Exporter string

	// Endpoint is the OTLP HTTP receiver (host:port) for the otlp exporter.
	Endpoint string

	// Insecure disables TLS for the otlp exporter.
	Insecure bool

	// ServiceName identifies this service in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// Writer receives spans from the stdout exporter (default: os.Stdout).
	Writer io.Writer
}

// Validate checks the exporter selection.
func (c Config) Validate() error {
	switch c.Exporter {
	case "", ExporterNone, ExporterStdout:
		return nil
	case ExporterOTLP:
		if c.Endpoint == "" {
			return fmt.Errorf("otlp exporter requires an endpoint")
		}
		return nil
	default:
		return fmt.Errorf("unknown trace exporter %q", c.Exporter)
	}
}
