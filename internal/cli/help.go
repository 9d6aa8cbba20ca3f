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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tombee/depot/internal/commands/shared"
)

// commandInfo describes one node of the command tree in `help --json`.
type commandInfo struct {
	Path        string        `json:"path"`
	Short       string        `json:"short"`
	Usage       string        `json:"usage"`
	Group       string        `json:"group,omitempty"`
	Flags       []flagInfo    `json:"flags,omitempty"`
	Subcommands []commandInfo `json:"subcommands,omitempty"`
}

type flagInfo struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
}

type helpResponse struct {
	shared.JSONResponse
	Command     commandInfo `json:"tree"`
	GlobalFlags []flagInfo  `json:"global_flags"`
}

// NewHelpCommand creates a help command that also renders the command tree
// as JSON when --json is set.
func NewHelpCommand(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Show help for depot or one of its commands.

  depot help servers start
  depot help --json          # the whole command tree`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, rest, err := root.Find(args)
			if err != nil || len(rest) > 0 {
				return shared.NewUsageError("unknown help topic "+strings.Join(args, " "), err)
			}

			if !shared.GetJSON() {
				return target.Help()
			}

			return shared.EmitJSON(cmd.OutOrStdout(), helpResponse{
				JSONResponse: shared.NewJSONResponse("help", true),
				Command:      describeCommand(target),
				GlobalFlags:  collectFlags(root.PersistentFlags()),
			})
		},
	}
}

// describeCommand walks the visible part of the tree below cmd.
func describeCommand(cmd *cobra.Command) commandInfo {
	info := commandInfo{
		Path:  cmd.CommandPath(),
		Short: cmd.Short,
		Usage: cmd.UseLine(),
		Group: cmd.Annotations["group"],
		Flags: collectFlags(cmd.LocalNonPersistentFlags()),
	}
	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" {
			continue
		}
		info.Subcommands = append(info.Subcommands, describeCommand(sub))
	}
	return info
}

func collectFlags(fs *pflag.FlagSet) []flagInfo {
	var flags []flagInfo
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		flags = append(flags, flagInfo{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Usage:     f.Usage,
			Default:   f.DefValue,
		})
	})
	return flags
}
