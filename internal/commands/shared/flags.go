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

package shared

import "github.com/spf13/pflag"

// globalFlags holds the persistent flags of the root command. Commands read
// them through the getters below once cobra has parsed the command line.
type globalFlags struct {
	verbose    bool
	quiet      bool
	json       bool
	config     string
	manifest   string
	runtimeDir string
}

var globals globalFlags

// Build metadata, overwritten from main via SetVersion.
var build = struct{ version, commit, date string }{"dev", "unknown", "unknown"}

// BindGlobalFlags registers depot's persistent flags on fs.
func BindGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&globals.verbose, "verbose", "v", false, "Enable verbose output")
	fs.BoolVarP(&globals.quiet, "quiet", "q", false, "Suppress non-error output")
	fs.BoolVar(&globals.json, "json", false, "Output in JSON format")
	fs.StringVar(&globals.config, "config", "", "Path to config file (default: ~/.config/depot/config.yaml)")
	fs.StringVar(&globals.manifest, "manifest", "", "Path to the server manifest (default: ./depot.json)")
	fs.StringVar(&globals.runtimeDir, "runtime-dir", "", "Directory for server state and logs (default: ./.depot/servers)")
}

// SetVersion records the ldflags build metadata.
func SetVersion(version, commit, date string) {
	build.version, build.commit, build.date = version, commit, date
}

// GetVersion returns version, commit and build date.
func GetVersion() (string, string, string) {
	return build.version, build.commit, build.date
}

// Accessors for the parsed global flags.
func GetVerbose() bool        { return globals.verbose }
func GetQuiet() bool          { return globals.quiet }
func GetJSON() bool           { return globals.json }
func GetConfigPath() string   { return globals.config }
func GetManifestPath() string { return globals.manifest }
func GetRuntimeDir() string   { return globals.runtimeDir }

// SetConfigPathForTest overrides --config.
func SetConfigPathForTest(path string) { globals.config = path }

// SetJSONForTest overrides --json.
func SetJSONForTest(v bool) { globals.json = v }

// SetProjectForTest overrides --manifest and --runtime-dir.
func SetProjectForTest(manifest, runtimeDir string) {
	globals.manifest, globals.runtimeDir = manifest, runtimeDir
}
