// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package launcher

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"syscall"
	"time"
)

// Process is everything needed to start one Trainer process.
type Process struct {
	Path   string
	Args   []string
	Env    []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
	// KillGrace is how long a process may take to exit after SIGTERM before
	// it is killed.
	KillGrace time.Duration
}

// Exit describes how a process ended.
type Exit struct {
	Code     int
	Signaled bool
}

// Runner runs a process to completion. It returns an error only when the
// process could not be started; a non-zero exit is reported through Exit.
// When ctx is done the process must be asked to stop.
type Runner interface {
	Run(ctx context.Context, p Process) (Exit, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, p Process) (Exit, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, p Process) (Exit, error) { return f(ctx, p) }

// ProcessRunner runs real operating-system processes.
type ProcessRunner struct{}

// Run implements Runner. On cancellation the child gets SIGTERM, then SIGKILL
// once KillGrace has passed.
func (ProcessRunner) Run(ctx context.Context, p Process) (Exit, error) {
	cmd := exec.CommandContext(ctx, p.Path, p.Args...)
	cmd.Env = p.Env
	cmd.Dir = p.Dir
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = p.KillGrace

	err := cmd.Run()
	if cmd.ProcessState == nil {
		// Never started.
		return Exit{}, err
	}
	return exitOf(cmd.ProcessState.Sys(), cmd.ProcessState.ExitCode(), err), nil
}

func exitOf(sys any, code int, err error) Exit {
	if ws, ok := sys.(syscall.WaitStatus); ok && ws.Signaled() {
		return Exit{Code: 128 + int(ws.Signal()), Signaled: true}
	}
	if code < 0 {
		code = 1
	}
	var exitErr *exec.ExitError
	if code == 0 && err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
		code = 1
	}
	return Exit{Code: code}
}
