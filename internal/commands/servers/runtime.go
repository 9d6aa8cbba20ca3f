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
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/depot/internal/commands/shared"
	"github.com/tombee/depot/internal/lifecycle"
	"github.com/tombee/depot/internal/log"
	"github.com/tombee/depot/internal/servers"
	"github.com/tombee/depot/internal/tracing"
)

const (
	// tracesFileName receives spans when the stdout exporter is selected.
	tracesFileName = "traces.jsonl"

	shutdownFlushTimeout = 2 * time.Second
)

// runtime bundles everything one invocation needs to act on a project.
type runtime struct {
	project       *shared.Project
	manifest      *servers.Manifest
	store         *servers.Store
	supervisor    *servers.Supervisor
	metrics       *servers.Metrics
	logger        *slog.Logger
	correlationID tracing.CorrelationID

	provider *tracing.Provider
	closers  []io.Closer
}

// openRuntime loads configuration and the manifest and wires the supervisor.
// The returned context carries the invocation's correlation ID.
func openRuntime(cmd *cobra.Command) (context.Context, *runtime, error) {
	project, err := shared.LoadProject()
	if err != nil {
		return nil, nil, err
	}
	cfg := project.Config

	id := tracing.NewCorrelationID()
	ctx := tracing.ToContext(cmd.Context(), id)

	logger := newLogger(cmd, project)
	logger = log.WithCorrelationID(log.WithComponent(logger, "servers"), id.String())

	manifest, err := servers.LoadManifest(project.ManifestPath)
	if err != nil {
		return nil, nil, err
	}
	for _, name := range manifest.Skipped {
		logger.Warn("skipping invalid manifest entry", slog.String(log.ServerKey, name))
	}

	rt := &runtime{
		project:       project,
		manifest:      manifest,
		store:         servers.NewStore(project.RuntimeDir),
		logger:        logger,
		correlationID: id,
	}

	if err := rt.setupTracing(ctx); err != nil {
		rt.close()
		return nil, nil, err
	}

	if cfg.Servers.MetricsFile != "" {
		rt.metrics = servers.NewMetrics()
	}

	rt.supervisor = servers.NewSupervisor(manifest, rt.store, servers.Options{
		ShutdownTimeout: cfg.Servers.ShutdownTimeout,
		PollInterval:    cfg.Servers.PollInterval,
		KillSettle:      cfg.Servers.KillSettle,
		LockTimeout:     cfg.Servers.LockTimeout,
		BuildTool:       cfg.Servers.BuildTool,
		Logger:          logger,
		Events:          lifecycle.NewEventLog(rt.store.EventLogPath()).WithCorrelationID(id.String()),
		Metrics:         rt.metrics,
		Tracer:          rt.provider.Tracer("depot.servers"),
	})

	logger.Debug("runtime ready",
		slog.String("manifest", project.ManifestPath),
		slog.String("runtime_dir", project.RuntimeDir),
		slog.Int("servers", len(manifest.Servers)))

	return ctx, rt, nil
}

func newLogger(cmd *cobra.Command, project *shared.Project) *slog.Logger {
	fileCfg := project.Config.Log
	logCfg := log.DefaultConfig()
	logCfg.Output = cmd.ErrOrStderr()
	if fileCfg.Level != "" {
		logCfg.Level = fileCfg.Level
	}
	if fileCfg.Format != "" {
		logCfg.Format = log.Format(fileCfg.Format)
	}
	logCfg.AddSource = fileCfg.AddSource

	log.ApplyEnv(logCfg)
	if shared.GetVerbose() {
		logCfg.Level = "debug"
	}
	return log.New(logCfg)
}

func (r *runtime) setupTracing(ctx context.Context) error {
	cfg := r.project.Config.Tracing
	v, _, _ := shared.GetVersion()

	tcfg := tracing.Config{
		Exporter:       cfg.Exporter,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		ServiceName:    "depot",
		ServiceVersion: v,
	}

	if cfg.Exporter == tracing.ExporterStdout {
		if err := os.MkdirAll(r.store.Dir(), 0700); err != nil {
			return fmt.Errorf("failed to create runtime directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(r.store.Dir(), tracesFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}
		r.closers = append(r.closers, f)
		tcfg.Writer = f
	}

	provider, err := tracing.Setup(ctx, tcfg)
	if err != nil {
		return &servers.Error{
			Code:    servers.ErrorCodeConfig,
			Message: "invalid tracing configuration",
			Cause:   err,
		}
	}
	r.provider = provider
	return nil
}

// writeMetrics exports the metrics textfile when one is configured.
func (r *runtime) writeMetrics() {
	if r.metrics == nil {
		return
	}
	path := r.project.Config.Servers.MetricsFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.store.Dir(), path)
	}
	if err := r.metrics.WriteTextfile(path); err != nil {
		r.logger.Warn("failed to write metrics textfile", slog.String("path", path), log.Error(err))
	}
}

// close flushes spans and releases files.
func (r *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()

	if err := r.provider.Shutdown(ctx); err != nil {
		r.logger.Debug("tracer shutdown failed", log.Error(err))
	}
	for _, c := range r.closers {
		_ = c.Close()
	}
}

// configured reports whether there is anything to act on, printing the
// "nothing configured" notice when there is not.
func (r *runtime) configured(cmd *cobra.Command, command string) (bool, error) {
	if len(r.manifest.Servers) > 0 {
		return true, nil
	}

	if shared.GetJSON() {
		return false, shared.EmitJSON(cmd.OutOrStdout(), emptyResponse{
			JSONResponse: shared.NewJSONResponse(command, true),
			Manifest:     r.manifest.Path,
			Servers:      []any{},
		})
	}

	if !shared.GetQuiet() {
		msg := "No servers configured"
		if !r.manifest.Exists {
			msg += fmt.Sprintf(" (no manifest at %s)", r.manifest.Path)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
	}
	return false, nil
}

type emptyResponse struct {
	shared.JSONResponse
	Manifest string `json:"manifest"`
	Servers  []any  `json:"servers"`
}

// fail reports a command-level error. In JSON mode the error is emitted on
// stdout and the returned error only carries the exit code.
func fail(cmd *cobra.Command, command string, err error) error {
	if !shared.GetJSON() {
		return err
	}
	if emitErr := shared.EmitJSONError(cmd.OutOrStdout(), command, []shared.JSONError{shared.JSONErrorFor(err)}); emitErr != nil {
		return errors.Join(err, emitErr)
	}
	return shared.Silent(shared.ExitCode(err))
}
