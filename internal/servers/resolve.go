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

import "strings"

// Resolve narrows the manifest to the servers a user-supplied name refers
// to. An empty name selects every server. Otherwise an exact match wins,
// then a match on the final path segment ("query-tool" for
// "analytics/query-tool"). No match yields ErrServerNotFound and several
// suffix matches yield ErrAmbiguousName.
func Resolve(m *Manifest, name string) ([]ServerConfig, error) {
	if name == "" {
		return m.Servers, nil
	}

	if cfg, ok := m.Get(name); ok {
		return []ServerConfig{cfg}, nil
	}

	var matches []ServerConfig
	for _, cfg := range m.Servers {
		if shortName(cfg.Name) == name {
			matches = append(matches, cfg)
		}
	}

	switch len(matches) {
	case 0:
		return nil, ErrServerNotFound(name, m.Names())
	case 1:
		return matches, nil
	default:
		candidates := make([]string, len(matches))
		for i, cfg := range matches {
			candidates[i] = cfg.Name
		}
		return nil, ErrAmbiguousName(name, candidates)
	}
}

func shortName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
