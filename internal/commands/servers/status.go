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
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tombee/depot/internal/commands/shared"
	"github.com/tombee/depot/internal/servers"
)

// newStatusCommand creates the 'servers status' command.
func newStatusCommand() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of every configured server",
		Long: `Show every server declared in the manifest and whether it is running.

Entries whose process has exited since the last command are dropped from
the state file and reported as stopped.

Examples:
  depot servers status
  depot servers status --probe
  depot servers status --json`,
		Args: shared.UsageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, probe)
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Probe running SSE servers with an MCP handshake")

	return cmd
}

// statusEntry is one server in the status output.
type statusEntry struct {
	servers.ServerStatus
	UptimeSeconds int64               `json:"uptime_seconds,omitempty"`
	LogSize       int64               `json:"log_size,omitempty"`
	Probe         *servers.ProbeResult `json:"probe,omitempty"`
}

type statusResponse struct {
	shared.JSONResponse
	Manifest string        `json:"manifest"`
	Servers  []statusEntry `json:"servers"`
	Skipped  []string      `json:"skipped,omitempty"`
}

func runStatus(cmd *cobra.Command, probe bool) error {
	const command = "servers status"

	ctx, rt, err := openRuntime(cmd)
	if err != nil {
		return fail(cmd, command, err)
	}
	defer rt.close()

	if ok, err := rt.configured(cmd, command); !ok {
		return err
	}

	statuses, err := rt.supervisor.Status(ctx)
	if err != nil {
		return fail(cmd, command, err)
	}
	rt.writeMetrics()

	entries := make([]statusEntry, 0, len(statuses))
	for _, st := range statuses {
		entry := statusEntry{
			ServerStatus:  st,
			UptimeSeconds: int64(st.Uptime / time.Second),
		}
		if st.LogFile != "" {
			if info, err := os.Stat(st.LogFile); err == nil {
				entry.LogSize = info.Size()
			}
		}
		if probe && st.Running && st.Transport == servers.TransportSSE && st.URL != "" {
			entry.Probe = probeServer(ctx, st.URL)
		}
		entries = append(entries, entry)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), statusResponse{
			JSONResponse: shared.NewJSONResponse(command, true),
			Manifest:     rt.manifest.Path,
			Servers:      entries,
			Skipped:      rt.manifest.Skipped,
		})
	}

	printStatus(cmd.OutOrStdout(), entries, time.Now())
	return nil
}

func probeServer(ctx context.Context, url string) *servers.ProbeResult {
	v, _, _ := shared.GetVersion()
	res := servers.Probe(ctx, url, v)
	return &res
}

func printStatus(w io.Writer, entries []statusEntry, now time.Time) {
	width := 0
	for _, e := range entries {
		if len(e.Name) > width {
			width = len(e.Name)
		}
	}

	for _, e := range entries {
		var details []string
		if e.Running {
			details = append(details,
				fmt.Sprintf("pid %d", e.PID),
				string(e.Transport),
				"up "+humanize.RelTime(e.StartedAt, now, "", ""))
			if e.LogSize > 0 {
				details = append(details, "log "+humanize.Bytes(uint64(e.LogSize)))
			}
		} else {
			details = append(details, string(e.Transport))
		}
		if e.URL != "" {
			details = append(details, e.URL)
		}

		fmt.Fprintf(w, "%-*s %s  %s\n", width, e.Name,
			shared.RenderState(e.Running),
			shared.Muted.Render(strings.Join(details, "  ")))

		if e.Probe != nil {
			fmt.Fprintf(w, "%-*s %s\n", width, "", renderProbe(e.Probe))
		}
	}
}

func renderProbe(p *servers.ProbeResult) string {
	if !p.OK {
		return shared.RenderError("probe failed: " + p.Error)
	}
	server := p.ServerName
	if p.ServerVersion != "" {
		server += " " + p.ServerVersion
	}
	return shared.RenderOK(fmt.Sprintf("mcp %s, protocol %s, %s",
		server, p.ProtocolVersion, p.Latency.Round(time.Millisecond)))
}
