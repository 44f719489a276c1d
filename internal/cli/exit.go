package cli

import (
	"context"
	"errors"

	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitTrainerFailure = 1
	ExitUsage          = 2
	ExitEnvironment    = 3
	ExitCancelled      = 130
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// usageError marks a command-line mistake.
func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Message: err.Error()}
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.Is(err, sweeperr.ErrConfig):
		return ExitUsage
	case errors.Is(err, sweeperr.ErrEnvironment):
		return ExitEnvironment
	default:
		return ExitTrainerFailure
	}
}
