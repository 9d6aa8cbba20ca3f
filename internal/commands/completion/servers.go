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

package completion

import (
	"github.com/spf13/cobra"
	"github.com/tombee/depot/internal/commands/shared"
	"github.com/tombee/depot/internal/servers"
)

// CompleteServerNames completes the first positional argument with the
// server names declared in the project manifest. Each candidate carries its
// transport as description. Any failure yields no candidates.
func CompleteServerNames(cmd *cobra.Command, args []string, toComplete string) (names []string, directive cobra.ShellCompDirective) {
	directive = cobra.ShellCompDirectiveNoFileComp
	defer func() {
		if r := recover(); r != nil {
			names = nil
		}
	}()

	if len(args) > 0 {
		return nil, directive
	}

	project, err := shared.LoadProject()
	if err != nil {
		return nil, directive
	}

	m, err := servers.LoadManifest(project.ManifestPath)
	if err != nil {
		return nil, directive
	}

	for _, s := range m.Servers {
		names = append(names, s.Name+"\t"+string(s.Transport))
	}
	return names, directive
}
