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
	"context"
	"net"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
)

func TestProbe_SSEServer(t *testing.T) {
	mcpServer := server.NewMCPServer("probe-target", "1.2.3")
	ts := server.NewTestServer(mcpServer)
	defer ts.Close()

	res := Probe(context.Background(), ts.URL+"/sse", "test")

	assert.True(t, res.OK, res.Error)
	assert.Equal(t, "probe-target", res.ServerName)
	assert.Equal(t, "1.2.3", res.ServerVersion)
	assert.NotEmpty(t, res.ProtocolVersion)
	assert.Positive(t, res.Latency)
}

func TestProbe_Unreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot reserve a port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	res := Probe(context.Background(), "http://"+addr+"/sse", "test")

	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
}
