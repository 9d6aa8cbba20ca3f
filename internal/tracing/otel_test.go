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
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_None(t *testing.T) {
	p, err := Setup(context.Background(), Config{Exporter: ExporterNone})
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, span := p.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_Stdout(t *testing.T) {
	var buf bytes.Buffer
	p, err := Setup(context.Background(), Config{
		Exporter:       ExporterStdout,
		ServiceName:    "depot",
		ServiceVersion: "test",
		Writer:         &buf,
	})
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, span := p.Tracer("depot.servers").Start(context.Background(), "servers.start")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	var exported map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &exported))
	assert.Equal(t, "servers.start", exported["Name"])
}

func TestSetup_OTLPNeedsEndpoint(t *testing.T) {
	_, err := Setup(context.Background(), Config{Exporter: ExporterOTLP})
	assert.Error(t, err)
}

func TestSetup_OTLP(t *testing.T) {
	p, err := Setup(context.Background(), Config{
		Exporter: ExporterOTLP,
		Endpoint: "127.0.0.1:1",
		Insecure: true,
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.NoError(t, Config{Exporter: ExporterOTLP, Endpoint: "localhost:4318"}.Validate())
	assert.Error(t, Config{Exporter: ExporterOTLP}.Validate())
	assert.Error(t, Config{Exporter: "jaeger"}.Validate())
}
