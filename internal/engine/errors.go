package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a process-level failure that prevents a scenario
// from running at all.
//
// Runtime errors include:
//   - Browser start: the UI factory could not open a browser session
//   - Target unreachable: the preflight probe got no answer from the target
//   - Session unavailable: the run was cancelled while waiting for a session
//
// The Runner turns a RuntimeError into a result whose first step failed,
// so it never escapes Run.
type RuntimeError struct {
	Code     RuntimeErrorCode
	Message  string
	Scenario string // empty when the failure is not tied to one scenario
	Err      error
}

type RuntimeErrorCode string

const (
	ErrCodeBrowserStart       RuntimeErrorCode = "BROWSER_START"
	ErrCodeTargetUnreachable  RuntimeErrorCode = "TARGET_UNREACHABLE"
	ErrCodeSessionUnavailable RuntimeErrorCode = "SESSION_UNAVAILABLE"
)

func (e *RuntimeError) Error() string {
	if e.Scenario != "" {
		return fmt.Sprintf("%s: %s (scenario=%s)", e.Code, e.Message, e.Scenario)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// IsBrowserStartError reports whether err wraps a browser start failure.
func IsBrowserStartError(err error) bool {
	return hasCode(err, ErrCodeBrowserStart)
}

func IsUnreachableError(err error) bool {
	return hasCode(err, ErrCodeTargetUnreachable)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == code
}

func NewBrowserStartError(err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBrowserStart,
		Message: fmt.Sprintf("cannot start browser session: %v", err),
		Err:     err,
	}
}

// NewUnreachableError creates a RuntimeError for a failed preflight probe.
func NewUnreachableError(baseURL string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTargetUnreachable,
		Message: fmt.Sprintf("target unreachable: %s: %v", baseURL, err),
		Err:     err,
	}
}
