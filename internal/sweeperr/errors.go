// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package sweeperr defines the error taxonomy shared by every stage of a sweep.
//
// There are exactly three kinds of failure:
//
//   - ConfigError: bad, missing or mismatched hyperparameters. Raised while a
//     sweep is being planned and aborts the whole sweep, since no run built
//     from a broken configuration can be trusted.
//   - EnvironmentError: the execution context cannot be honoured (unknown
//     device, bad tracking mode, failed device probe). Also fatal.
//   - TrainerFailure: one Trainer process exited non-zero, timed out or was
//     cancelled. Recorded on that run's result; the sweep carries on.
//
// Each kind matches its sentinel (ErrConfig, ErrEnvironment, ErrTrainer)
// through errors.Is, so callers never need to type-switch.
package sweeperr

import (
	"errors"
	"fmt"
)

var (
	ErrConfig      = errors.New("configuration error")
	ErrEnvironment = errors.New("environment error")
	ErrTrainer     = errors.New("trainer failure")
)

// ConfigError reports an invalid sweep definition.
type ConfigError struct {
	// Field is the offending field or axis name, empty when the problem is
	// not tied to a single field.
	Field  string
	Reason string
}

// Configf builds a ConfigError for field.
func Configf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// MissingField is the error for a required field with no value anywhere.
func MissingField(name string) *ConfigError {
	return &ConfigError{Field: name, Reason: "missing field " + name}
}

func (e *ConfigError) Error() string {
	if e.Field == "" || e.Reason == "missing field "+e.Field {
		return "ConfigError: " + e.Reason
	}
	return fmt.Sprintf("ConfigError: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// EnvironmentError reports an execution context that cannot be bound.
type EnvironmentError struct {
	Reason string
	Err    error
}

// Environmentf builds an EnvironmentError.
func Environmentf(format string, args ...any) *EnvironmentError {
	return &EnvironmentError{Reason: fmt.Sprintf(format, args...)}
}

func (e *EnvironmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("EnvironmentError: %s: %v", e.Reason, e.Err)
	}
	return "EnvironmentError: " + e.Reason
}

func (e *EnvironmentError) Is(target error) bool { return target == ErrEnvironment }

func (e *EnvironmentError) Unwrap() error { return e.Err }

// Cause says why a Trainer run failed.
type Cause string

const (
	CauseExit      Cause = "exit"
	CauseTimeout   Cause = "timeout"
	CauseCancelled Cause = "cancelled"
	// CauseStart means the process could not be started at all.
	CauseStart Cause = "start"
)

// TrainerFailure is the failure of a single dispatched run.
type TrainerFailure struct {
	Run      string
	ExitCode int
	Cause    Cause
	Err      error
}

func (e *TrainerFailure) Error() string {
	switch e.Cause {
	case CauseTimeout:
		return fmt.Sprintf("TrainerFailure: run %s timed out (exit code %d)", e.Run, e.ExitCode)
	case CauseCancelled:
		return fmt.Sprintf("TrainerFailure: run %s cancelled (exit code %d)", e.Run, e.ExitCode)
	case CauseStart:
		return fmt.Sprintf("TrainerFailure: run %s could not start: %v", e.Run, e.Err)
	default:
		return fmt.Sprintf("TrainerFailure: run %s exited with code %d", e.Run, e.ExitCode)
	}
}

func (e *TrainerFailure) Is(target error) bool { return target == ErrTrainer }

func (e *TrainerFailure) Unwrap() error { return e.Err }
