// Package step executes single scenario steps.
//
// Execute runs one step with its retry policy and per-attempt timeout and
// returns the recorded outcome. Each attempt runs in its own goroutine; when
// the attempt deadline fires the executor stops waiting and the attempt is
// abandoned. Variables captured by an attempt are returned as Effects and
// only written into the execution context once the attempt has succeeded in
// time, so an abandoned attempt never changes the run's state.
package step

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/roach88/stepwise/internal/execctx"
	"github.com/roach88/stepwise/internal/scenario"
)

// Env is everything a step needs from its run and session.
type Env struct {
	// BaseURL is prefixed to relative HTTP paths and UI navigation targets.
	BaseURL string

	// HTTP is the session's client. Nil means http.DefaultClient.
	HTTP *http.Client

	// UI is the session's browser driver. Nil when the scenario has no UI steps.
	UI UIDriver

	// Vars is the run's execution context.
	Vars *execctx.Context

	// Now returns the current time. Nil means time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) client() *http.Client {
	if e.HTTP != nil {
		return e.HTTP
	}
	return http.DefaultClient
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Effects are the variables captured by a successful attempt.
type Effects map[string]ldvalue.Value

func (fx Effects) merge(other Effects) {
	for k, v := range other {
		fx[k] = v
	}
}

// Apply writes the captured variables into the context.
func (fx Effects) Apply(vars *execctx.Context) {
	for k, v := range fx {
		vars.Set(k, v)
	}
}

// progress carries the most recent failure reason out of a polling attempt
// so that a timeout can report why the condition never held.
type progress struct {
	last atomic.Pointer[string]
}

func (p *progress) note(reason string) {
	p.last.Store(&reason)
}

func (p *progress) lastReason() string {
	if r := p.last.Load(); r != nil {
		return *r
	}
	return ""
}

// Execute runs the step at index and returns its outcome. It never returns
// an error: every failure, including a recovered panic, is recorded in the
// outcome. The step's retry policy and timeout must already be resolved
// (see scenario.Scenario.WithDefaults); zero values mean one attempt
// without a per-attempt deadline.
func Execute(ctx context.Context, index int, st scenario.Step, env *Env) scenario.StepOutcome {
	log := env.logger().With("step", index, "name", st.Name, "kind", st.Kind())

	policy := scenario.RetryPolicy{MaxAttempts: 1}
	if st.Retry != nil {
		policy = *st.Retry
		if policy.MaxAttempts < 1 {
			policy.MaxAttempts = 1
		}
	}

	out := scenario.StepOutcome{
		Index:       index,
		Name:        st.Name,
		Kind:        st.Kind(),
		MaxAttempts: policy.MaxAttempts,
		Fatal:       st.IsFatal(),
	}

	start := env.now()
	var failure *Failure
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		out.Attempts = attempt

		fx, err := runAttempt(ctx, st, env)
		if err == nil {
			fx.Apply(env.Vars)
			failure = nil
			break
		}

		failure = Classify(err)
		log.Debug("attempt failed",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"failure_kind", failure.Kind,
			"detail", failure.Detail,
		)

		if !failure.Retryable() || attempt == policy.MaxAttempts || ctx.Err() != nil {
			break
		}
		if err := sleep(ctx, time.Duration(policy.BackoffMs)*time.Millisecond); err != nil {
			break
		}
	}
	out.DurationMs = env.now().Sub(start).Milliseconds()

	if failure != nil {
		out.Status = scenario.StatusFailed
		out.Failure = failure.Kind
		out.ErrorDetail = failure.Detail
		log.Info("step failed", "attempts", out.Attempts, "failure_kind", failure.Kind, "detail", failure.Detail)
		return out
	}
	out.Status = scenario.StatusPassed
	log.Debug("step passed", "attempts", out.Attempts)
	return out
}

type attemptResult struct {
	fx  Effects
	err error
}

// runAttempt performs one attempt under the step timeout. It returns as soon
// as either the attempt finishes or the deadline fires.
func runAttempt(ctx context.Context, st scenario.Step, env *Env) (Effects, error) {
	actx := ctx
	cancel := context.CancelFunc(func() {})
	if st.TimeoutMs > 0 {
		actx, cancel = context.WithTimeout(ctx, st.Timeout())
	}
	defer cancel()

	prog := &progress{}
	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult{err: Fault("panic in %s step: %v", st.Kind(), r)}
			}
		}()
		fx, err := perform(actx, st, env, prog)
		done <- attemptResult{fx: fx, err: err}
	}()

	timedOut := func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		detail := fmt.Sprintf("timeout after %dms", st.TimeoutMs)
		if reason := prog.lastReason(); reason != "" {
			detail += " (last: " + reason + ")"
		}
		return Transient("%s", detail)
	}

	select {
	case res := <-done:
		// An attempt that failed because its deadline fired reports the
		// timeout, not the cancellation error it observed.
		if res.err != nil && actx.Err() != nil && !IsHarnessFault(res.err) {
			return nil, timedOut()
		}
		return res.fx, res.err
	case <-actx.Done():
		return nil, timedOut()
	}
}

func perform(ctx context.Context, st scenario.Step, env *Env, prog *progress) (Effects, error) {
	switch {
	case st.HTTP != nil:
		return doHTTP(ctx, st.HTTP, env, env.Vars)
	case st.UI != nil:
		return doUI(ctx, st.UI, env, env.Vars)
	case st.Assert != nil:
		return nil, doAssert(st.Assert, env.Vars)
	case st.Wait != nil:
		return doWait(ctx, st.Wait, env, prog)
	default:
		return nil, Fault("step %q has no action", st.Name)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
