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
	"github.com/spf13/cobra"
	"github.com/tombee/depot/internal/commands/shared"
)

// NewCommand creates the servers command for managing project tool servers.
func NewCommand() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use: "servers",
		Annotations: map[string]string{
			"group": "servers",
		},
		Short: "Manage the project's tool servers",
		Long: `Manage the tool servers declared in the project manifest (depot.json).

Servers run as detached background processes that outlive this command.
Their PIDs are recorded under .depot/servers and checked against the live
process table on every invocation, so a server that died on its own is
reported as stopped.

Commands:
  status    Show every configured server and whether it is running (default)
  start     Start one server, or all of them
  stop      Stop one server, or all of them
  restart   Restart one server, or all of them
  logs      Show and follow a server's output`,
		Args: shared.UsageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, probe)
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Probe running SSE servers with an MCP handshake")

	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newStartCommand())
	cmd.AddCommand(newStopCommand())
	cmd.AddCommand(newRestartCommand())
	cmd.AddCommand(newLogsCommand())

	return cmd
}
