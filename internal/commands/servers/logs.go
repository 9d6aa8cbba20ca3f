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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tombee/depot/internal/commands/completion"
	"github.com/tombee/depot/internal/commands/shared"
	"github.com/tombee/depot/internal/servers"
)

type logsOptions struct {
	noFollow bool
	lines    int
}

// newLogsCommand creates the 'servers logs' command.
func newLogsCommand() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs <name>",
		Short: "Show and follow a server's output",
		Long: `Print the last lines of a server's log file, then keep printing new
output as it is written until interrupted.

The log captures the server's stdout and stderr and is truncated each time
the server starts. With --json the tail is emitted once and not followed.

Examples:
  depot servers logs analytics/query-tool
  depot servers logs query-tool --lines 200
  depot servers logs query-tool --no-follow`,
		Args:              shared.UsageArgs(cobra.ExactArgs(1)),
		ValidArgsFunction: completion.CompleteServerNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("lines") {
				opts.lines = -1
			}
			return runLogs(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noFollow, "no-follow", false, "Print the tail and exit")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", servers.DefaultTailLines, "Number of lines to show")

	return cmd
}

type logsResponse struct {
	shared.JSONResponse
	Server  string   `json:"server"`
	LogFile string   `json:"log_file"`
	Lines   []string `json:"lines"`
}

func runLogs(cmd *cobra.Command, name string, opts logsOptions) error {
	const command = "servers logs"

	ctx, rt, err := openRuntime(cmd)
	if err != nil {
		return fail(cmd, command, err)
	}
	defer rt.close()

	if ok, err := rt.configured(cmd, command); !ok {
		return err
	}

	targets, err := servers.Resolve(rt.manifest, name)
	if err != nil {
		return fail(cmd, command, err)
	}
	target := targets[0]

	lines := opts.lines
	if lines < 0 {
		lines = rt.project.Config.Servers.LogLines
	}

	path := rt.store.LogPath(target.Name)
	tail, err := servers.Tail(path, lines)
	missing := errors.Is(err, fs.ErrNotExist)
	if err != nil && !missing {
		return fail(cmd, command, fmt.Errorf("failed to read log for %s: %w", target.Name, err))
	}

	out := cmd.OutOrStdout()

	if shared.GetJSON() {
		snapshot := tail.All()
		if snapshot == nil {
			snapshot = []string{}
		}
		return shared.EmitJSON(out, logsResponse{
			JSONResponse: shared.NewJSONResponse(command, true),
			Server:       target.Name,
			LogFile:      path,
			Lines:        snapshot,
		})
	}

	if missing {
		fmt.Fprintf(cmd.ErrOrStderr(), "No log for %s yet (start it with: depot servers start %s)\n", target.Name, target.Name)
	}
	for _, line := range tail.Lines {
		fmt.Fprintln(out, line)
	}

	// Following prints the partial line itself once it is continued.
	if opts.noFollow {
		if tail.Partial != "" {
			fmt.Fprintln(out, tail.Partial)
		}
		return nil
	}

	if shared.IsTerminal(os.Stderr) && !shared.GetQuiet() {
		fmt.Fprintln(cmd.ErrOrStderr(), shared.Muted.Render(fmt.Sprintf("Following %s (Ctrl+C to stop)", path)))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.logger.Debug("following log", "path", path, "offset", tail.Offset)
	return servers.Follow(ctx, path, tail.Offset, out, rt.project.Config.Servers.FollowInterval)
}
