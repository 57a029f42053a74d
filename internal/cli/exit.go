package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitSuccess      = 0 // every selected scenario passed
	ExitFailure      = 1 // at least one scenario failed
	ExitCommandError = 2 // nothing ran: bad flags, config, or scenario files
)

// Error codes carried in command error output.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeConfig      = "E002"
	ErrCodeNoScenarios = "E003"
	ErrCodeLoadFailed  = "E004"
	ErrCodeNotFound    = "E005"
	ErrCodeHistory     = "E006"
	ErrCodeWriteFailed = "E007"
)

// ExitError is returned by commands that need a specific process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps a command error to the process exit code. Errors that
// are not an ExitError come from cobra itself (unknown flag, bad args) and
// count as command errors.
func GetExitCode(err error) int {
	var ee *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &ee):
		return ee.Code
	default:
		return ExitCommandError
	}
}

// failWith reports the error through f and returns the matching ExitError.
func failWith(f *OutputFormatter, exitCode int, errCode, message string, details any) error {
	if err := f.Error(errCode, message, details); err != nil {
		return err
	}
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", errCode, message))
}
