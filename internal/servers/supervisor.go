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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/depot/internal/lifecycle"
	"github.com/tombee/depot/internal/log"
)

// Action is the outcome of a lifecycle operation on one server.
type Action string

const (
	ActionStarted        Action = "started"
	ActionAlreadyRunning Action = "already_running"
	ActionStopped        Action = "stopped"
	ActionNotRunning     Action = "not_running"
	ActionRestarted      Action = "restarted"
	ActionFailed         Action = "failed"
)

// Result reports what happened to one target of start, stop or restart.
type Result struct {
	Name      string    `json:"name"`
	Action    Action    `json:"action"`
	PID       int       `json:"pid,omitempty"`
	OldPID    int       `json:"old_pid,omitempty"`
	Transport Transport `json:"transport,omitempty"`
	LogFile   string    `json:"log_file,omitempty"`

	// Built is set when the binary was compiled from source for this start.
	Built bool `json:"built,omitempty"`

	// Forced is set when the server ignored SIGTERM and was killed.
	Forced bool `json:"forced,omitempty"`

	// Unconfirmed is set when the process was still visible after SIGKILL.
	Unconfirmed bool `json:"unconfirmed,omitempty"`

	Err error `json:"-"`
}

// Failed reports whether any result carries an error.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// ServerStatus is the reconciled state of one configured server.
type ServerStatus struct {
	Name      string        `json:"name"`
	Running   bool          `json:"running"`
	PID       int           `json:"pid,omitempty"`
	Transport Transport     `json:"transport"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	LogFile   string        `json:"log_file,omitempty"`
	URL       string        `json:"url,omitempty"`
	Port      int           `json:"port,omitempty"`

	// Reconciled is set when a dead entry was dropped during this scan.
	Reconciled bool `json:"reconciled,omitempty"`
}

// Options tunes a Supervisor. Zero values fall back to defaults.
type Options struct {
	ShutdownTimeout time.Duration
	PollInterval    time.Duration
	KillSettle      time.Duration
	LockTimeout     time.Duration
	BuildTool       string

	Logger  *slog.Logger
	Events  *lifecycle.EventLog
	Metrics *Metrics
	Tracer  trace.Tracer
}

// Supervisor drives server processes between the manifest, the state file
// and the live process table. It holds no state between invocations.
type Supervisor struct {
	manifest *Manifest
	store    *Store
	builds   *BuildCache
	spawner  *lifecycle.Spawner

	shutdown    lifecycle.ShutdownOptions
	lockTimeout time.Duration

	logger  *slog.Logger
	events  *lifecycle.EventLog
	metrics *Metrics
	tracer  trace.Tracer
}

// NewSupervisor creates a supervisor for the servers in m, keeping runtime
// files in store.
func NewSupervisor(m *Manifest, store *Store, opts Options) *Supervisor {
	s := &Supervisor{
		manifest: m,
		store:    store,
		builds:   NewBuildCache(store.BinDir(), opts.BuildTool),
		spawner:  lifecycle.NewSpawner(),
		shutdown: lifecycle.ShutdownOptions{
			Timeout:      opts.ShutdownTimeout,
			PollInterval: opts.PollInterval,
			KillSettle:   opts.KillSettle,
		},
		lockTimeout: opts.LockTimeout,
		logger:      opts.Logger,
		events:      opts.Events,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("depot.servers")
	}
	return s
}

// Manifest returns the manifest the supervisor acts on.
func (s *Supervisor) Manifest() *Manifest { return s.manifest }

// Store returns the runtime store.
func (s *Supervisor) Store() *Store { return s.store }

// Start starts the named server, or every server when name is empty.
// Resolution and state errors abort before anything is spawned; per-server
// failures are reported in the results.
func (s *Supervisor) Start(ctx context.Context, name string) ([]Result, error) {
	return s.run(ctx, "servers.start", name, s.startOne)
}

// Stop stops the named server, or every server when name is empty.
func (s *Supervisor) Stop(ctx context.Context, name string) ([]Result, error) {
	return s.run(ctx, "servers.stop", name, s.stopOne)
}

// Restart stops then starts the named server, or every server.
func (s *Supervisor) Restart(ctx context.Context, name string) ([]Result, error) {
	return s.run(ctx, "servers.restart", name, s.restartOne)
}

type targetFunc func(ctx context.Context, state *StateFile, cfg ServerConfig) Result

// run holds the state lock for a whole batch and persists after every target
// so a crash part way through still records spawned PIDs.
func (s *Supervisor) run(ctx context.Context, op, name string, fn targetFunc) ([]Result, error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("server.target", name)))
	defer span.End()

	targets, err := Resolve(s.manifest, name)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	unlock, err := s.store.Lock(ctx, s.lockTimeout)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer unlock()

	state, err := s.store.Load()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]Result, 0, len(targets))
	for _, cfg := range targets {
		res := fn(ctx, state, cfg)
		if err := s.store.Save(state); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return append(results, res), err
		}
		results = append(results, res)
	}

	if Failed(results) {
		span.SetStatus(codes.Error, "one or more servers failed")
	}
	return results, nil
}

// Status reports every configured server, dropping entries whose process
// has died. The state file is written once, and only if something changed.
func (s *Supervisor) Status(ctx context.Context) ([]ServerStatus, error) {
	ctx, span := s.tracer.Start(ctx, "servers.status")
	defer span.End()

	unlock, err := s.store.Lock(ctx, s.lockTimeout)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer unlock()

	state, err := s.store.Load()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	dirty := false
	statuses := make([]ServerStatus, 0, len(s.manifest.Servers))
	for _, cfg := range s.manifest.Servers {
		st := ServerStatus{
			Name:      cfg.Name,
			Transport: cfg.Transport,
			URL:       cfg.URL,
			Port:      cfg.Port(),
		}

		if entry, ok := state.Get(cfg.Name); ok {
			if alive, reason := s.checkAlive(entry); alive {
				st.Running = true
				st.PID = entry.PID
				st.Transport = entry.Transport
				st.StartedAt = entry.StartedAt
				st.Uptime = entry.Uptime()
				st.LogFile = s.store.LogPath(cfg.Name)
				if entry.Port != 0 {
					st.Port = entry.Port
				}
			} else {
				s.dropStale(state, cfg.Name, entry, reason)
				st.Reconciled = true
				dirty = true
			}
		}

		statuses = append(statuses, st)
	}

	span.SetAttributes(attribute.Int("servers.count", len(statuses)))

	if dirty {
		if err := s.store.Save(state); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return statuses, err
		}
	}

	s.metrics.Observe(statuses)
	return statuses, nil
}

func (s *Supervisor) startOne(ctx context.Context, state *StateFile, cfg ServerConfig) Result {
	ctx, span := s.tracer.Start(ctx, "servers.start_one", trace.WithAttributes(
		attribute.String("server.name", cfg.Name),
		attribute.String("server.transport", string(cfg.Transport)),
	))
	defer span.End()

	res := Result{Name: cfg.Name, Transport: cfg.Transport}
	logger := log.WithServer(s.logger, cfg.Name)

	if entry, ok := state.Get(cfg.Name); ok {
		alive, reason := s.checkAlive(entry)
		if alive {
			_ = s.events.LogAlreadyRunning(cfg.Name, entry.PID)
			res.Action = ActionAlreadyRunning
			res.PID = entry.PID
			res.Transport = entry.Transport
			res.LogFile = s.store.LogPath(cfg.Name)
			return res
		}
		s.dropStale(state, cfg.Name, entry, reason)
	}

	build, err := s.builds.Resolve(ctx, cfg)
	if err != nil {
		_ = s.events.LogBuildFailure(cfg.Name, err)
		logger.Debug("build failed", log.Error(err))
		return s.fail(span, res, err)
	}
	if cfg.SourcePath != "" {
		_ = s.events.LogBuild(cfg.Name, build.Cached, build.Duration)
		res.Built = !build.Cached
		logger.Debug("resolved server binary",
			slog.String("path", build.Path),
			slog.Bool("cached", build.Cached))
	}

	stdin, pipe, err := s.openStdin(cfg)
	if err != nil {
		_ = s.events.LogStartFailure(cfg.Name, err)
		return s.fail(span, res, ErrStartFailed(cfg.Name, err))
	}
	// The child holds its own descriptor once spawned.
	defer stdin.Close()

	logPath := s.store.LogPath(cfg.Name)
	pid, err := s.spawner.SpawnDetached(lifecycle.SpawnSpec{
		Binary:  build.Path,
		Args:    cfg.Args,
		Dir:     cfg.Dir,
		Env:     cfg.EnvList(),
		LogPath: logPath,
		Stdin:   stdin,
	})
	if err != nil {
		if pipe != nil {
			_ = pipe.Remove()
		}
		_ = s.events.LogStartFailure(cfg.Name, err)
		return s.fail(span, res, ErrStartFailed(cfg.Name, err))
	}

	state.Put(&ServerState{
		Name:      cfg.Name,
		PID:       pid,
		Transport: cfg.Transport,
		LogFile:   s.store.LogFileName(cfg.Name),
		Command:   build.Path,
		Args:      cfg.Args,
		StartedAt: time.Now().UTC(),
		Port:      cfg.Port(),
	})
	_ = s.events.LogStart(cfg.Name, pid, string(cfg.Transport))
	logger.Debug("server started", log.PID(pid))

	span.SetAttributes(attribute.Int("server.pid", pid))
	res.Action = ActionStarted
	res.PID = pid
	res.LogFile = logPath
	return res
}

// openStdin returns the keep-alive pipe for stdio servers and /dev/null for
// sse servers, which never read stdin.
func (s *Supervisor) openStdin(cfg ServerConfig) (*os.File, *lifecycle.KeepAlivePipe, error) {
	if cfg.Transport != TransportStdio {
		f, err := os.Open(os.DevNull)
		return f, nil, err
	}

	pipe := lifecycle.NewKeepAlivePipe(s.store.PipePath(cfg.Name))
	f, err := pipe.Open()
	if err != nil {
		return nil, nil, err
	}
	return f, pipe, nil
}

func (s *Supervisor) stopOne(ctx context.Context, state *StateFile, cfg ServerConfig) Result {
	_, span := s.tracer.Start(ctx, "servers.stop_one", trace.WithAttributes(
		attribute.String("server.name", cfg.Name),
	))
	defer span.End()

	res := Result{Name: cfg.Name, Transport: cfg.Transport, Action: ActionNotRunning}
	pipe := lifecycle.NewKeepAlivePipe(s.store.PipePath(cfg.Name))

	entry, ok := state.Get(cfg.Name)
	if !ok {
		_ = pipe.Remove()
		return res
	}
	res.PID = entry.PID
	res.Transport = entry.Transport

	if alive, reason := s.checkAlive(entry); !alive {
		s.dropStale(state, cfg.Name, entry, reason)
		_ = pipe.Remove()
		return res
	}

	logger := log.WithServer(s.logger, cfg.Name).With(log.PID(entry.PID))
	_ = s.events.LogStop(cfg.Name, entry.PID)

	shut, err := lifecycle.GracefulShutdown(entry.PID, s.shutdown)

	// The entry goes regardless of how the shutdown went.
	state.Delete(cfg.Name)
	if rmErr := pipe.Remove(); rmErr != nil {
		logger.Warn("failed to remove keep-alive pipe", log.Error(rmErr))
	}

	switch {
	case errors.Is(err, lifecycle.ErrProcessNotRunning):
		return res
	case err != nil:
		_ = s.events.LogStopFailure(cfg.Name, entry.PID, err)
		return s.fail(span, res, fmt.Errorf("failed to stop server '%s': %w", cfg.Name, err))
	}

	if shut.Forced {
		logger.Warn("server did not exit after SIGTERM, sent SIGKILL",
			log.Duration("grace_period", s.shutdown.Timeout),
			slog.Bool("confirmed", shut.Exited))
		_ = s.events.LogForcedKill(cfg.Name, entry.PID, shut.Exited)
	}
	_ = s.events.LogStopSuccess(cfg.Name, entry.PID, shut.Duration)

	span.SetAttributes(attribute.Bool("server.forced", shut.Forced))
	res.Action = ActionStopped
	res.Forced = shut.Forced
	res.Unconfirmed = !shut.Exited
	return res
}

func (s *Supervisor) restartOne(ctx context.Context, state *StateFile, cfg ServerConfig) Result {
	stopped := s.stopOne(ctx, state, cfg)
	if stopped.Err != nil {
		return stopped
	}

	started := s.startOne(ctx, state, cfg)
	if started.Err != nil {
		return started
	}

	if started.Action == ActionStarted {
		started.Action = ActionRestarted
	}
	if stopped.Action == ActionStopped {
		started.OldPID = stopped.PID
		started.Forced = stopped.Forced
	}
	return started
}

// checkAlive decides whether a recorded process is still the server depot
// spawned. A recycled PID shows up as a process that neither leads its own
// session nor runs the recorded command.
func (s *Supervisor) checkAlive(entry *ServerState) (bool, string) {
	if !lifecycle.IsProcessRunning(entry.PID) {
		return false, "process not running"
	}
	// Both must hold: a recycled PID can land on another session leader,
	// and stop signals the whole group of a session leader.
	if !lifecycle.MatchesCommand(entry.PID, entry.Command) || !lifecycle.IsSessionLeader(entry.PID) {
		return false, "pid reused by another process"
	}
	return true, ""
}

func (s *Supervisor) dropStale(state *StateFile, name string, entry *ServerState, reason string) {
	state.Delete(name)
	_ = s.events.LogStale(name, entry.PID, reason)
	s.metrics.recordStale(name)
	s.logger.Debug("removed stale server state",
		slog.String(log.ServerKey, name),
		log.PID(entry.PID),
		slog.String("reason", reason))
}

func (s *Supervisor) fail(span trace.Span, res Result, err error) Result {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	res.Action = ActionFailed
	res.Err = err
	return res
}
