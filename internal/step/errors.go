package step

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/stepwise/internal/execctx"
	"github.com/roach88/stepwise/internal/scenario"
)

// Failure is the classified error of a failed step attempt.
//
// The kind decides retry behavior and what the report shows:
//   - transient: network errors, timeouts; retried
//   - target_rejected: an unexpected 4xx/5xx; only 5xx is retried
//   - assertion: the target answered but not as expected; never retried
//   - harness_fault: the scenario or harness itself is broken; never
//     retried and ends the run
type Failure struct {
	Kind scenario.FailureKind

	// Detail is the human-readable error detail recorded in the outcome.
	Detail string

	// StatusCode is set for target rejections.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return f.Detail
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Retryable reports whether another attempt may succeed.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case scenario.FailureTransient:
		return true
	case scenario.FailureTargetRejected:
		return f.StatusCode >= 500
	default:
		return false
	}
}

// Transient creates a retryable failure.
func Transient(format string, args ...any) *Failure {
	return &Failure{Kind: scenario.FailureTransient, Detail: fmt.Sprintf(format, args...)}
}

// Rejected creates a target rejection for an unexpected status code.
func Rejected(code int, body string) *Failure {
	detail := fmt.Sprintf("HTTP %d", code)
	if ex := excerpt(body, 200); ex != "" {
		detail += ": " + ex
	}
	return &Failure{Kind: scenario.FailureTargetRejected, Detail: detail, StatusCode: code}
}

// Assertion wraps an assertion error.
func Assertion(err error) *Failure {
	return &Failure{Kind: scenario.FailureAssertion, Detail: err.Error(), Err: err}
}

// Fault creates a harness fault.
func Fault(format string, args ...any) *Failure {
	return &Failure{Kind: scenario.FailureHarnessFault, Detail: "harness fault: " + fmt.Sprintf(format, args...)}
}

// Classify maps any error returned by an attempt to a Failure. Undefined
// variables are harness faults; context errors are transient; anything
// unrecognized is treated as transient.
func Classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	var undef *execctx.UndefinedError
	if errors.As(err, &undef) {
		return &Failure{Kind: scenario.FailureHarnessFault, Detail: "harness fault: " + undef.Error(), Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Failure{Kind: scenario.FailureTransient, Detail: cancelledPrefix + err.Error(), Err: err}
	}
	return &Failure{Kind: scenario.FailureTransient, Detail: err.Error(), Err: err}
}

const cancelledPrefix = "cancelled: "

// Interrupted reports whether out failed because its context was cancelled
// or its deadline passed, rather than on its own.
func Interrupted(out scenario.StepOutcome) bool {
	return out.Status == scenario.StatusFailed &&
		out.Failure == scenario.FailureTransient &&
		strings.HasPrefix(out.ErrorDetail, cancelledPrefix)
}

// IsHarnessFault reports whether err classifies as a harness fault.
func IsHarnessFault(err error) bool {
	return err != nil && Classify(err).Kind == scenario.FailureHarnessFault
}

// excerpt collapses whitespace and truncates s to at most n runes.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// AssertionError describes a value that did not meet an expectation.
type AssertionError struct {
	Op       string // operator or check, e.g. "eq", "status", "expect_body"
	Path     string // where the value came from
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: expected %s, got %s", e.Op, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s %s: expected %s, got %s", e.Path, e.Op, e.Expected, e.Actual)
}
