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
Package servers manages the tool servers declared in a project manifest.

Each depot invocation is short lived, so the package keeps no in-memory
state. The manifest describes what should exist, the state file in the
runtime directory records which PIDs depot spawned, and the live process
table is the source of truth for whether they still run. Entries whose
process has died are dropped whenever they are encountered.

	m, err := servers.LoadManifest("depot.json")
	store := servers.NewStore(".depot/servers")
	sup := servers.NewSupervisor(m, store, servers.Options{})

	results, err := sup.Start(ctx, "query-tool")
	statuses, err := sup.Status(ctx)

Names given by users resolve against the manifest by exact match first and
then by their final path segment, so "query-tool" selects
"analytics/query-tool" unless another owner declares the same short name.

Runtime directory layout:

	servers.json          state file
	servers.json.lock     advisory lock for load-mutate-save cycles
	<key>.log             combined stdout and stderr, truncated on start
	<key>.stdin           keep-alive pipe of a stdio server
	bin/<key>             binary built from sourcePath
	lifecycle.log         JSON lines audit trail

where <key> is the server name with "/" replaced by "__".
*/
package servers
