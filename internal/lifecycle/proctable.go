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

package lifecycle

import (
	"slices"

	"github.com/shirou/gopsutil/v4/process"
)

// readProc reads the state and command line of pid from the process table.
func readProc(pid int) (procEntry, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return procEntry{}, err
	}

	var entry procEntry
	if status, err := p.Status(); err == nil {
		entry.zombie = slices.Contains(status, process.Zombie)
	}

	// A zombie has an empty command line; that is not an error.
	if cmdline, err := p.Cmdline(); err == nil {
		entry.cmdline = cmdline
	}
	return entry, nil
}
