package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/stepwise/internal/execctx"
	"github.com/roach88/stepwise/internal/scenario"
	"github.com/roach88/stepwise/internal/step"
)

// Options configures a Runner.
type Options struct {
	// BaseURL of the target system.
	BaseURL string

	// Parallelism is the maximum number of scenarios run at once and the
	// size of the session pool. Values below 1 mean 1.
	Parallelism int

	// Defaults fill in step timeouts, retry policies and the run budget.
	Defaults scenario.Defaults

	// Vars seed every run's execution context. They are copied per run.
	Vars map[string]any

	// Preflight enables the once-per-process reachability probe.
	Preflight bool
}

// Runner executes scenarios. A single Runner may run many scenarios
// concurrently; each run gets a fresh execution context and a fresh session.
type Runner struct {
	opts      Options
	pool      *SessionPool
	clock     Clock
	logger    *slog.Logger
	preflight *Preflight
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock replaces the wall clock used for timestamps and durations.
func WithClock(c Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
		r.pool.logger = l
	}
}

// WithUIFactory sets how browser sessions are started.
func WithUIFactory(f UIFactory) Option {
	return func(r *Runner) { r.pool.ui = f }
}

// New creates a Runner.
func New(opts Options, options ...Option) *Runner {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	r := &Runner{
		opts:   opts,
		pool:   NewSessionPool(opts.Parallelism, nil),
		clock:  SystemClock{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range options {
		o(r)
	}
	if opts.Preflight {
		r.preflight = NewPreflight(opts.BaseURL, nil)
	}
	return r
}

// Pool exposes the session pool, mainly for tests.
func (r *Runner) Pool() *SessionPool {
	return r.pool
}

// RunAll runs scenarios with at most Parallelism in flight and returns the
// results in input order.
func (r *Runner) RunAll(ctx context.Context, scenarios []*scenario.Scenario) []*scenario.Result {
	results := make([]*scenario.Result, len(scenarios))

	var g errgroup.Group
	g.SetLimit(r.opts.Parallelism)
	for i, s := range scenarios {
		i, s := i, s
		g.Go(func() error {
			results[i] = r.Run(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Run executes one scenario and returns its result. It never returns an
// error: step failures, budget expiry and process-level failures (browser
// start, unreachable target) are all recorded in the result.
func (r *Runner) Run(ctx context.Context, s *scenario.Scenario) *scenario.Result {
	sc := s.WithDefaults(r.opts.Defaults)
	log := r.logger.With("scenario", sc.Name)

	res := &scenario.Result{
		Scenario:  sc.Name,
		Source:    sc.Source,
		Tags:      sc.Tags,
		StartedAt: r.clock.Now(),
	}
	log.Debug("scenario starting", "steps", len(sc.Steps))

	if r.preflight != nil {
		if err := r.preflight.Check(ctx); err != nil {
			res.Outcomes = processFailure(sc, scenario.FailureTransient, runtimeDetail(err))
			return r.finish(res, log)
		}
	}

	err := r.pool.WithSession(ctx, sc.NeedsUI(), func(sess *Session) error {
		res.Outcomes = r.runSteps(ctx, sc, sess, log)
		return nil
	})
	if err != nil {
		kind := scenario.FailureTransient
		if IsBrowserStartError(err) {
			kind = scenario.FailureHarnessFault
		}
		log.Error("scenario could not start", "error", err)
		res.Outcomes = processFailure(sc, kind, runtimeDetail(err))
	}
	return r.finish(res, log)
}

func (r *Runner) finish(res *scenario.Result, log *slog.Logger) *scenario.Result {
	res.FinishedAt = r.clock.Now()
	res.Finalize()
	log.Info("scenario finished",
		"status", res.Status,
		"passed_steps", res.CountStatus(scenario.StatusPassed),
		"failed_steps", res.CountStatus(scenario.StatusFailed),
		"skipped_steps", res.CountStatus(scenario.StatusSkipped),
	)
	return res
}

// runSteps executes the steps of sc strictly in order. After a fatal
// failure, a harness fault or budget expiry every remaining step is skipped.
func (r *Runner) runSteps(ctx context.Context, sc *scenario.Scenario, sess *Session, log *slog.Logger) []scenario.StepOutcome {
	runCtx := ctx
	if sc.TimeoutMs > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(sc.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	env := &step.Env{
		BaseURL: r.opts.BaseURL,
		HTTP:    sess.HTTP,
		Vars:    execctx.NewSeeded(r.clock.Now(), r.opts.Vars),
		Now:     r.clock.Now,
		Logger:  log,
	}
	if sess.UI != nil {
		env.UI = sess.UI
	}

	outcomes := make([]scenario.StepOutcome, 0, len(sc.Steps))
	halted := false
	for i, st := range sc.Steps {
		if halted {
			outcomes = append(outcomes, skipped(i, st))
			continue
		}

		var out scenario.StepOutcome
		interrupted := runCtx.Err() != nil
		if interrupted {
			out = skipped(i, st)
			out.Status = scenario.StatusFailed
		} else {
			out = step.Execute(runCtx, i, st, env)
			interrupted = step.Interrupted(out)
		}

		// A step that failed on its own keeps its failure even when the
		// budget ran out right after; only interrupted steps are relabelled.
		if out.Status == scenario.StatusFailed {
			switch {
			case ctx.Err() != nil:
				if interrupted {
					out.Failure = scenario.FailureTransient
					out.ErrorDetail = fmt.Sprintf("run cancelled: %v", ctx.Err())
				}
				halted = true
			case errors.Is(runCtx.Err(), context.DeadlineExceeded):
				if interrupted {
					out.Failure = scenario.FailureTransient
					out.ErrorDetail = fmt.Sprintf("run budget exhausted after %dms", sc.TimeoutMs)
				}
				halted = true
			case out.Fatal || out.Failure == scenario.FailureHarnessFault:
				halted = true
			}
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func skipped(i int, st scenario.Step) scenario.StepOutcome {
	out := scenario.StepOutcome{
		Index:  i,
		Name:   st.Name,
		Kind:   st.Kind(),
		Status: scenario.StatusSkipped,
		Fatal:  st.IsFatal(),
	}
	if st.Retry != nil {
		out.MaxAttempts = st.Retry.MaxAttempts
	}
	return out
}

// processFailure builds the outcomes of a run that never got to execute:
// the first step carries the failure, the rest are skipped.
func processFailure(sc *scenario.Scenario, kind scenario.FailureKind, detail string) []scenario.StepOutcome {
	outcomes := make([]scenario.StepOutcome, len(sc.Steps))
	for i, st := range sc.Steps {
		outcomes[i] = skipped(i, st)
	}
	if len(outcomes) > 0 {
		outcomes[0].Status = scenario.StatusFailed
		outcomes[0].Failure = kind
		outcomes[0].ErrorDetail = detail
	}
	return outcomes
}

func runtimeDetail(err error) string {
	var re *RuntimeError
	if !errors.As(err, &re) {
		return err.Error()
	}
	if re.Code == ErrCodeBrowserStart {
		return "harness fault: " + re.Message
	}
	return re.Message
}
