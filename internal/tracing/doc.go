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

/*
Package tracing provides OpenTelemetry spans and correlation IDs for depot
invocations.

Every invocation gets a correlation ID that is attached to diagnostic logs,
lifecycle audit events and outbound readiness checks. Spans around server
lifecycle operations are exported only when configured; by default the
global no-op tracer provider is left in place.

# Setup

	provider, err := tracing.Setup(ctx, tracing.Config{
	    Exporter:       tracing.ExporterStdout,
	    ServiceName:    "depot",
	    ServiceVersion: version,
	    Writer:         traceFile,
	})
	defer provider.Shutdown(ctx)

	tracer := provider.Tracer("depot.servers")

# Correlation IDs

	id := tracing.NewCorrelationID()
	ctx = tracing.ToContext(ctx, id)

	// readiness checks forward it as X-Correlation-ID
	tracing.InjectIntoRequest(ctx, req)

# Exporters

The stdout exporter writes compact JSON, one span per line, and depot
appends it to traces.jsonl in the runtime directory. The otlp exporter
speaks OTLP over HTTP to Endpoint.
*/
package tracing
