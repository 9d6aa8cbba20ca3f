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

package cli

import (
	"github.com/spf13/cobra"
	"github.com/tombee/depot/internal/commands/shared"
)

// SetVersion records the ldflags build metadata for the version command.
func SetVersion(version, commit, date string) {
	shared.SetVersion(version, commit, date)
}

// NewRootCommand creates the depot root command. Errors are neither printed
// nor followed by usage; HandleExitError renders them with the exit code.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "depot",
		Short: "depot - project tool server manager",
		Long: `depot manages the tool servers a project declares in depot.json.

Servers are started as detached background processes and tracked in a
state file under .depot/servers, so they keep running after depot exits
and are checked against the live process table on every command.

Run 'depot servers' to see what is configured and running.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shared.GetVerbose() && shared.GetQuiet() {
				return shared.NewUsageError("--verbose and --quiet cannot be combined", nil)
			}
			return nil
		},
	}

	shared.BindGlobalFlags(cmd.PersistentFlags())
	_ = cmd.MarkPersistentFlagFilename("config", "yaml", "yml")
	_ = cmd.MarkPersistentFlagFilename("manifest", "json")
	_ = cmd.MarkPersistentFlagDirname("runtime-dir")

	// Unknown subcommands and bad flags are usage errors
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return shared.NewUsageError("", err)
	})

	return cmd
}

// HandleExitError prints err and exits. Unknown subcommands exit 2.
func HandleExitError(err error) {
	if shared.IsUnknownCommand(err) {
		err = shared.NewUsageError("", err)
	}
	shared.HandleExitError(err)
}
