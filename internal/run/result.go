// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package run

import (
	"fmt"
	"time"

	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
)

// State is the lifecycle state of one run.
//
//	Pending -> Running -> Succeeded
//	                   -> Failed
type State int32

const (
	Pending State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	for _, st := range []State{Pending, Running, Succeeded, Failed} {
		if st.String() == s {
			return st, nil
		}
	}
	return Pending, fmt.Errorf("unknown run state %q", s)
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Succeeded || s == Failed }

// Result is the record of one dispatched run.
type Result struct {
	SweepID   string
	Index     int
	Name      string
	Protocol  string
	State     State
	ExitCode  int
	Cause     sweeperr.Cause
	Error     string
	StartedAt time.Time
	EndedAt   time.Time
	Args      []string
	LogPath   string
}

// NewResult returns a Pending result for cfg.
func NewResult(sweepID string, cfg *Config) *Result {
	return &Result{
		SweepID:  sweepID,
		Index:    cfg.Index(),
		Name:     cfg.Name(),
		Protocol: cfg.Template().Identity(),
		State:    Pending,
	}
}

func (r *Result) transition(from, to State) error {
	if r.State != from {
		return fmt.Errorf("run %s: invalid transition %s -> %s", r.Name, r.State, to)
	}
	r.State = to
	return nil
}

// Start moves the run from Pending to Running.
func (r *Result) Start(at time.Time) error {
	if err := r.transition(Pending, Running); err != nil {
		return err
	}
	r.StartedAt = at
	return nil
}

// Succeed moves the run from Running to Succeeded.
func (r *Result) Succeed(at time.Time) error {
	if err := r.transition(Running, Succeeded); err != nil {
		return err
	}
	r.EndedAt = at
	r.ExitCode = 0
	return nil
}

// Fail moves the run from Running to Failed and records the failure.
func (r *Result) Fail(at time.Time, failure *sweeperr.TrainerFailure) error {
	if err := r.transition(Running, Failed); err != nil {
		return err
	}
	r.EndedAt = at
	r.ExitCode = failure.ExitCode
	r.Cause = failure.Cause
	r.Error = failure.Error()
	return nil
}

// Duration is the wall time of a terminal run.
func (r *Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
