// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/specialistvlad/sweepgrid/internal/ctxlog"
	"github.com/specialistvlad/sweepgrid/internal/environment"
	"github.com/specialistvlad/sweepgrid/internal/run"
	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
)

// DefaultKillGrace is used when Trainer.KillGrace is zero.
const DefaultKillGrace = 10 * time.Second

// Trainer describes the external training program.
type Trainer struct {
	// Command is the executable, e.g. "python".
	Command string
	// Args come before the harness-generated arguments, e.g. ["main.py"].
	Args []string
	// Timeout bounds each run; zero means no limit.
	Timeout   time.Duration
	KillGrace time.Duration
	// LogDir receives one <run name>.log per run. Empty sends Trainer output
	// to the launcher's output writer.
	LogDir  string
	WorkDir string
}

// Launcher turns run configs into Trainer processes, one at a time per call.
type Launcher struct {
	trainer Trainer
	runner  Runner
	output  io.Writer
	baseEnv func() []string
	now     func() time.Time
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option { return func(l *Launcher) { l.runner = r } }

// WithOutput sets where Trainer output goes when no log dir is configured.
func WithOutput(w io.Writer) Option { return func(l *Launcher) { l.output = w } }

// WithBaseEnv sets the environment the binding's variables are layered on.
func WithBaseEnv(fn func() []string) Option { return func(l *Launcher) { l.baseEnv = fn } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(l *Launcher) { l.now = now } }

// New validates the trainer description and returns a Launcher.
func New(trainer Trainer, opts ...Option) (*Launcher, error) {
	if strings.TrimSpace(trainer.Command) == "" {
		return nil, sweeperr.Configf("command", "trainer command is empty")
	}
	if trainer.Timeout < 0 {
		return nil, sweeperr.Configf("timeout", "must not be negative")
	}
	if trainer.KillGrace <= 0 {
		trainer.KillGrace = DefaultKillGrace
	}
	l := &Launcher{
		trainer: trainer,
		runner:  ProcessRunner{},
		output:  os.Stderr,
		baseEnv: os.Environ,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Trainer returns the trainer description in use.
func (l *Launcher) Trainer() Trainer { return l.trainer }

// Args builds the Trainer's argument list: the configured prefix, the dataset
// root, then every resolved field in the kind's flag order. It is a pure
// function of its inputs.
func (l *Launcher) Args(cfg *run.Config, binding *environment.Binding) []string {
	values := cfg.Values()
	args := make([]string, 0, len(l.trainer.Args)+2+2*len(values))
	args = append(args, l.trainer.Args...)
	args = append(args, "--root", binding.DatasetRoot())
	for _, v := range values {
		args = append(args, v.Field.Flag, v.Formatted())
	}
	return args
}

// Argv is the full command line, command included.
func (l *Launcher) Argv(cfg *run.Config, binding *environment.Binding) []string {
	return append([]string{l.trainer.Command}, l.Args(cfg, binding)...)
}

// LogPath is the per-run log file, or "" when output is not captured.
func (l *Launcher) LogPath(cfg *run.Config) string {
	if l.trainer.LogDir == "" {
		return ""
	}
	return filepath.Join(l.trainer.LogDir, cfg.Name()+".log")
}

// Dispatch runs the Trainer for cfg and blocks until it exits. The result is
// always terminal. A run that does not exit zero also returns a
// *sweeperr.TrainerFailure; nothing is retried.
func (l *Launcher) Dispatch(ctx context.Context, cfg *run.Config, binding *environment.Binding) (*run.Result, error) {
	logger := ctxlog.FromContext(ctx).With("run", cfg.Name())

	result := run.NewResult("", cfg)
	result.Args = l.Argv(cfg, binding)
	result.LogPath = l.LogPath(cfg)

	if err := result.Start(l.now()); err != nil {
		return nil, err
	}

	out, closeOut, err := l.openOutput(result)
	if err != nil {
		return l.fail(ctx, result, &sweeperr.TrainerFailure{Run: cfg.Name(), ExitCode: -1, Cause: sweeperr.CauseStart, Err: err})
	}
	defer closeOut()

	runCtx := ctx
	if l.trainer.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, l.trainer.Timeout)
		defer cancel()
	}

	logger.Info("🚀 Launching run.", "index", cfg.Index(), "devices", binding.DeviceKey())
	logger.Debug("Trainer command line.", "argv", strings.Join(result.Args, " "))

	exit, err := l.runner.Run(runCtx, Process{
		Path:      l.trainer.Command,
		Args:      result.Args[1:],
		Env:       binding.Environ(l.baseEnv()),
		Dir:       l.trainer.WorkDir,
		Stdout:    out,
		Stderr:    out,
		KillGrace: l.trainer.KillGrace,
	})
	if err != nil {
		return l.fail(ctx, result, &sweeperr.TrainerFailure{Run: cfg.Name(), ExitCode: -1, Cause: sweeperr.CauseStart, Err: err})
	}
	if exit.Code == 0 {
		if err := result.Succeed(l.now()); err != nil {
			return nil, err
		}
		logger.Info("✅ Run succeeded.", "duration", result.Duration())
		return result, nil
	}

	cause := sweeperr.CauseExit
	switch {
	case ctx.Err() != nil:
		cause = sweeperr.CauseCancelled
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		cause = sweeperr.CauseTimeout
	}
	return l.fail(ctx, result, &sweeperr.TrainerFailure{Run: cfg.Name(), ExitCode: exit.Code, Cause: cause})
}

func (l *Launcher) fail(ctx context.Context, result *run.Result, failure *sweeperr.TrainerFailure) (*run.Result, error) {
	if err := result.Fail(l.now(), failure); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Warn("❌ Run failed.",
		"run", result.Name, "exit_code", failure.ExitCode, "cause", failure.Cause, "log", result.LogPath)
	return result, failure
}

func (l *Launcher) openOutput(result *run.Result) (io.Writer, func(), error) {
	if result.LogPath == "" {
		return l.output, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(result.LogPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.Create(result.LogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create log file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "# %s\n", strings.Join(result.Args, " ")); err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("write log header: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
