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
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultProbeTimeout bounds a single protocol probe.
const DefaultProbeTimeout = 5 * time.Second

// ProbeResult is the outcome of a protocol-level check of an sse server.
type ProbeResult struct {
	OK              bool          `json:"ok"`
	ServerName      string        `json:"server_name,omitempty"`
	ServerVersion   string        `json:"server_version,omitempty"`
	ProtocolVersion string        `json:"protocol_version,omitempty"`
	Latency         time.Duration `json:"latency"`
	Error           string        `json:"error,omitempty"`
}

// Probe connects to an sse server at url, performs the initialize handshake
// and a ping. Failures are reported in the result, not as an error.
func Probe(ctx context.Context, url, clientVersion string) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()

	start := time.Now()
	fail := func(err error) ProbeResult {
		return ProbeResult{Latency: time.Since(start), Error: err.Error()}
	}

	c, err := client.NewSSEMCPClient(url)
	if err != nil {
		return fail(fmt.Errorf("create client: %w", err))
	}
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		return fail(fmt.Errorf("connect: %w", err))
	}

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "depot",
				Version: clientVersion,
			},
		},
	}
	initResult, err := c.Initialize(ctx, initReq)
	if err != nil {
		return fail(fmt.Errorf("initialize request failed: %w", err))
	}

	if err := c.Ping(ctx); err != nil {
		return fail(fmt.Errorf("ping failed: %w", err))
	}

	return ProbeResult{
		OK:              true,
		ServerName:      initResult.ServerInfo.Name,
		ServerVersion:   initResult.ServerInfo.Version,
		ProtocolVersion: initResult.ProtocolVersion,
		Latency:         time.Since(start),
	}
}
