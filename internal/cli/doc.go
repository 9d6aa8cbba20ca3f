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

/*
Package cli builds the depot root command: the persistent flags every
command shares, a help command that can emit the command tree as JSON, and
the mapping of errors to exit codes.

Commands live in internal/commands and are attached by cmd/depot:

	depot
	  servers [status|start|stop|restart|logs]
	  completion
	  version
	  help

Exit codes are 0 on success, 1 when a command ran and failed (including a
failed target in a batch) and 2 for invalid usage, which covers unknown or
ambiguous server names.
*/
package cli
