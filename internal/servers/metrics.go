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
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects per-invocation server gauges for export through the
// node_exporter textfile collector.
type Metrics struct {
	registry *prometheus.Registry

	up     *prometheus.GaugeVec
	uptime *prometheus.GaugeVec
	stale  *prometheus.CounterVec
}

// NewMetrics creates a metrics set on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		up: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "depot_server_up",
				Help: "Whether the server process is running (1) or stopped (0)",
			},
			[]string{"server", "transport"},
		),
		uptime: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "depot_server_uptime_seconds",
				Help: "Seconds since the server process was started",
			},
			[]string{"server"},
		),
		stale: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depot_server_stale_reconciled_total",
				Help: "State entries removed because their process had died",
			},
			[]string{"server"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records a status snapshot.
func (m *Metrics) Observe(statuses []ServerStatus) {
	if m == nil {
		return
	}
	for _, st := range statuses {
		up := 0.0
		if st.Running {
			up = 1
		}
		m.up.WithLabelValues(st.Name, string(st.Transport)).Set(up)
		m.uptime.WithLabelValues(st.Name).Set(st.Uptime.Seconds())
	}
}

// recordStale increments the reconciliation counter.
func (m *Metrics) recordStale(server string) {
	if m == nil {
		return
	}
	m.stale.WithLabelValues(server).Inc()
}

// WriteTextfile writes the collected metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
