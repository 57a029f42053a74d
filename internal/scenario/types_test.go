package scenario

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaults(t *testing.T) {
	nonFatal := false
	s := &Scenario{
		Name: "s",
		Tags: []string{"api"},
		Steps: []Step{
			{Name: "a", HTTP: &HTTPCall{Method: "GET", Path: "/"}},
			{Name: "b", HTTP: &HTTPCall{Method: "GET", Path: "/"}, TimeoutMs: 50,
				Retry: &RetryPolicy{MaxAttempts: 4, BackoffMs: 10}, Fatal: &nonFatal},
		},
	}

	out := s.WithDefaults(Defaults{StepTimeoutMs: 1000, RunTimeoutMs: 9000, Retry: RetryPolicy{MaxAttempts: 2, BackoffMs: 5}})

	assert.Equal(t, 9000, out.TimeoutMs)
	assert.Equal(t, 1000, out.Steps[0].TimeoutMs)
	assert.Equal(t, &RetryPolicy{MaxAttempts: 2, BackoffMs: 5}, out.Steps[0].Retry)
	assert.Equal(t, 50, out.Steps[1].TimeoutMs)
	assert.Equal(t, &RetryPolicy{MaxAttempts: 4, BackoffMs: 10}, out.Steps[1].Retry)
	assert.False(t, out.Steps[1].IsFatal())

	// The loaded scenario is untouched and shares nothing mutable.
	assert.Zero(t, s.TimeoutMs)
	assert.Nil(t, s.Steps[0].Retry)
	assert.Zero(t, s.Steps[0].TimeoutMs)
	out.Steps[1].Retry.MaxAttempts = 9
	*out.Steps[1].Fatal = true
	out.Tags[0] = "changed"
	assert.Equal(t, 4, s.Steps[1].Retry.MaxAttempts)
	assert.False(t, *s.Steps[1].Fatal)
	assert.Equal(t, "api", s.Tags[0])
}

func TestWithDefaults_ZeroRetryMeansOneAttempt(t *testing.T) {
	s := &Scenario{Name: "s", Steps: []Step{{Name: "a", Assert: &Assertion{Var: "x", Op: OpExists}}}}
	out := s.WithDefaults(Defaults{})
	require.NotNil(t, out.Steps[0].Retry)
	assert.Equal(t, 1, out.Steps[0].Retry.MaxAttempts)
}

func TestNeedsUI(t *testing.T) {
	api := &Scenario{Steps: []Step{{HTTP: &HTTPCall{}}, {Assert: &Assertion{}}}}
	ui := &Scenario{Steps: []Step{{HTTP: &HTTPCall{}}, {UI: &UIAction{}}}}
	waitUI := &Scenario{Steps: []Step{{Wait: &Wait{UI: &UIAction{}}}}}

	assert.False(t, api.NeedsUI())
	assert.True(t, ui.NeedsUI())
	assert.True(t, waitUI.NeedsUI())
}

func TestResult_Finalize(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &Result{
		Scenario:   "s",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Outcomes: []StepOutcome{
			{Index: 0, Name: "a", Status: StatusPassed},
			{Index: 1, Name: "b", Status: StatusFailed, Failure: FailureAssertion, ErrorDetail: "x eq: expected 1, got 2"},
			{Index: 2, Name: "c", Status: StatusPassed},
		},
	}
	r.Finalize()

	assert.Equal(t, StatusFailed, r.Status, "a non-fatal failure still fails the scenario")
	assert.False(t, r.Passed())
	assert.Equal(t, 1500*time.Millisecond, r.Duration())
	assert.Equal(t, []Status{StatusPassed, StatusFailed, StatusPassed}, r.Statuses())
	assert.Equal(t, 2, r.CountStatus(StatusPassed))
	require.Len(t, r.Failures(), 1)
	assert.Equal(t, `step 1 "b" failed [assertion] x eq: expected 1, got 2`, r.Failures()[0].String())
	assert.Equal(t, `step 0 "a" passed`, r.Outcomes[0].String())

	r.Outcomes = []StepOutcome{{Status: StatusPassed}, {Status: StatusPassed}}
	r.Finalize()
	assert.True(t, r.Passed())
}
