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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/depot/internal/commands/completion"
	"github.com/tombee/depot/internal/commands/shared"
	"github.com/tombee/depot/internal/lifecycle"
	"github.com/tombee/depot/internal/log"
	"github.com/tombee/depot/internal/servers"
	pkgerrors "github.com/tombee/depot/pkg/errors"
)

// DefaultWaitTimeout bounds 'start --wait'.
const DefaultWaitTimeout = 10 * time.Second

// batchFunc is one of Supervisor.Start, Stop or Restart.
type batchFunc func(ctx context.Context, name string) ([]servers.Result, error)

type waitOptions struct {
	enabled bool
	timeout time.Duration
}

// newStartCommand creates the 'servers start' command.
func newStartCommand() *cobra.Command {
	var wait waitOptions

	cmd := &cobra.Command{
		Use:   "start [name]",
		Short: "Start a server, or all servers",
		Long: `Start the named server, or every configured server when no name is given.

A server that is already running is left alone. Servers declared with a
sourcePath are rebuilt first when their sources changed. Output goes to
.depot/servers/<name>.log, which is truncated on every start.

The name may be the full manifest key or its last path segment when that
is unambiguous.

Examples:
  depot servers start
  depot servers start analytics/query-tool
  depot servers start query-tool --wait`,
		Args:              shared.UsageArgs(cobra.MaximumNArgs(1)),
		ValidArgsFunction: completion.CompleteServerNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, "servers start", targetArg(args), wait,
				func(rt *runtime) batchFunc { return rt.supervisor.Start })
		},
	}

	cmd.Flags().BoolVar(&wait.enabled, "wait", false, "Wait until started SSE servers accept connections")
	cmd.Flags().DurationVar(&wait.timeout, "wait-timeout", DefaultWaitTimeout, "How long --wait waits per server")

	return cmd
}

// newStopCommand creates the 'servers stop' command.
func newStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop [name]",
		Short: "Stop a server, or all servers",
		Long: `Stop the named server, or every configured server when no name is given.

Each server receives SIGTERM and is given the shutdown timeout to exit
before SIGKILL is sent. The state entry is always removed.

Examples:
  depot servers stop
  depot servers stop analytics/query-tool`,
		Args:              shared.UsageArgs(cobra.MaximumNArgs(1)),
		ValidArgsFunction: completion.CompleteServerNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, "servers stop", targetArg(args), waitOptions{},
				func(rt *runtime) batchFunc { return rt.supervisor.Stop })
		},
	}

	return cmd
}

// newRestartCommand creates the 'servers restart' command.
func newRestartCommand() *cobra.Command {
	var wait waitOptions

	cmd := &cobra.Command{
		Use:   "restart [name]",
		Short: "Restart a server, or all servers",
		Long: `Stop and start the named server, or every configured server when no
name is given. A server that was not running is simply started.

Examples:
  depot servers restart
  depot servers restart analytics/query-tool`,
		Args:              shared.UsageArgs(cobra.MaximumNArgs(1)),
		ValidArgsFunction: completion.CompleteServerNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, "servers restart", targetArg(args), wait,
				func(rt *runtime) batchFunc { return rt.supervisor.Restart })
		},
	}

	cmd.Flags().BoolVar(&wait.enabled, "wait", false, "Wait until restarted SSE servers accept connections")
	cmd.Flags().DurationVar(&wait.timeout, "wait-timeout", DefaultWaitTimeout, "How long --wait waits per server")

	return cmd
}

func targetArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// resultEntry is one target in the JSON output.
type resultEntry struct {
	servers.Result
	Error string `json:"error,omitempty"`
	Ready *bool  `json:"ready,omitempty"`
}

type batchResponse struct {
	shared.JSONResponse
	Results []resultEntry      `json:"results"`
	Errors  []shared.JSONError `json:"errors,omitempty"`
}

func runBatch(cmd *cobra.Command, command, name string, wait waitOptions, pick func(*runtime) batchFunc) error {
	ctx, rt, err := openRuntime(cmd)
	if err != nil {
		return fail(cmd, command, err)
	}
	defer rt.close()

	if ok, err := rt.configured(cmd, command); !ok {
		return err
	}

	spinner := newBatchSpinner(command, name)
	results, err := pick(rt)(ctx, name)
	spinner.Stop()
	if err != nil {
		return fail(cmd, command, err)
	}

	entries := make([]resultEntry, 0, len(results))
	for _, res := range results {
		entry := resultEntry{Result: res}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		if wait.enabled && launched(res) {
			entry.Ready = waitReady(ctx, rt, res.Name, wait.timeout)
		}
		entries = append(entries, entry)
	}

	failed := servers.Failed(results)

	if shared.GetJSON() {
		resp := batchResponse{
			JSONResponse: shared.NewJSONResponse(command, !failed),
			Results:      entries,
		}
		for _, res := range results {
			if res.Err != nil {
				jerr := shared.JSONErrorFor(res.Err)
				jerr.Server = res.Name
				resp.Errors = append(resp.Errors, jerr)
			}
		}
		if err := shared.EmitJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		printResults(cmd.OutOrStdout(), cmd.ErrOrStderr(), entries)
	}

	if failed {
		return shared.Silent(shared.ExitFailure)
	}
	return nil
}

func launched(res servers.Result) bool {
	return res.Action == servers.ActionStarted || res.Action == servers.ActionRestarted
}

// waitReady polls a freshly started SSE server until it answers. Servers
// without a URL have nothing to poll and yield nil.
func waitReady(ctx context.Context, rt *runtime, name string, timeout time.Duration) *bool {
	cfg, ok := rt.manifest.Get(name)
	if !ok || cfg.Transport != servers.TransportSSE || cfg.URL == "" {
		return nil
	}

	logger := log.WithServer(rt.logger, name)
	checker := lifecycle.NewHealthChecker(cfg.URL)
	err := checker.WaitUntilHealthy(ctx, timeout, func(res *lifecycle.HealthCheckResult, attempt int) {
		if !res.Success {
			logger.Debug("server not ready yet", slog.Int("attempt", attempt), log.Error(res.Error))
		}
	})

	ready := err == nil
	if !ready {
		logger.Warn("server did not become ready", slog.String("url", cfg.URL), log.Error(err))
	}
	return &ready
}

func printResults(out, errOut io.Writer, entries []resultEntry) {
	quiet := shared.GetQuiet()

	for _, e := range entries {
		if e.Err != nil {
			fmt.Fprintln(errOut, shared.RenderError(fmt.Sprintf("%s: %v", e.Name, e.Err)))
			if s := suggestion(e.Err); s != "" {
				fmt.Fprintf(errOut, "  %s\n", shared.Muted.Render(s))
			}
			continue
		}
		if e.Forced {
			msg := fmt.Sprintf("%s did not exit after SIGTERM and was killed", e.Name)
			if e.Unconfirmed {
				msg += " (exit not confirmed)"
			}
			fmt.Fprintln(errOut, shared.RenderWarn(msg))
		}
		if e.Ready != nil && !*e.Ready {
			fmt.Fprintln(errOut, shared.RenderWarn(e.Name+" is running but not answering yet"))
		}
		if quiet {
			continue
		}
		fmt.Fprintln(out, describe(e.Result))
	}
}

func describe(res servers.Result) string {
	switch res.Action {
	case servers.ActionStarted:
		msg := fmt.Sprintf("Started %s (pid %d, %s)", res.Name, res.PID, res.Transport)
		if res.Built {
			msg += ", rebuilt"
		}
		return shared.RenderOK(msg) + "\n  " + shared.RenderLabel("log: "+res.LogFile)
	case servers.ActionAlreadyRunning:
		return shared.RenderInfo(fmt.Sprintf("%s already running (pid %d)", res.Name, res.PID))
	case servers.ActionStopped:
		return shared.RenderOK(fmt.Sprintf("Stopped %s (pid %d)", res.Name, res.PID))
	case servers.ActionNotRunning:
		return shared.RenderInfo(res.Name + " not running")
	case servers.ActionRestarted:
		if res.OldPID != 0 {
			return shared.RenderOK(fmt.Sprintf("Restarted %s (pid %d, was %d)", res.Name, res.PID, res.OldPID))
		}
		return shared.RenderOK(fmt.Sprintf("Started %s (pid %d, %s)", res.Name, res.PID, res.Transport))
	default:
		return fmt.Sprintf("%s: %s", res.Name, res.Action)
	}
}

func suggestion(err error) string {
	var userErr pkgerrors.UserVisibleError
	if errors.As(err, &userErr) && userErr.IsUserVisible() {
		return userErr.Suggestion()
	}
	return ""
}

// newBatchSpinner shows progress while a batch blocks on shutdown grace
// periods. It only animates on an interactive stderr.
func newBatchSpinner(command, name string) *shared.Spinner {
	spinner := shared.NewSpinner()
	if shared.GetJSON() || shared.GetQuiet() || !shared.IsTerminal(os.Stderr) {
		return spinner
	}

	target := name
	if target == "" {
		target = "all servers"
	}
	verb := map[string]string{
		"servers start":   "Starting",
		"servers stop":    "Stopping",
		"servers restart": "Restarting",
	}[command]
	spinner.Start(fmt.Sprintf("%s %s", verb, target))
	return spinner
}
