package scenario

import (
	"fmt"
	"time"
)

// Kind identifies which action a Step performs.
type Kind string

// Step kinds.
const (
	KindHTTP   Kind = "http"
	KindUI     Kind = "ui"
	KindAssert Kind = "assert"
	KindWait   Kind = "wait"
)

// Status is the outcome status of a step or a whole scenario.
type Status string

// Outcome statuses. Scenarios only ever use Passed or Failed.
const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// FailureKind classifies why a step failed. Reports use it to tell a flaky
// environment apart from a wrong expectation or a broken harness.
type FailureKind string

// Failure kinds.
const (
	FailureTransient      FailureKind = "transient"
	FailureAssertion      FailureKind = "assertion"
	FailureTargetRejected FailureKind = "target_rejected"
	FailureHarnessFault   FailureKind = "harness_fault"
)

// Scenario is an ordered, named sequence of steps. Scenarios are treated as
// immutable once loaded; WithDefaults returns a resolved copy.
type Scenario struct {
	// Name uniquely identifies the scenario within a run.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description,omitempty"`

	// Tags are used for filtering (--tag).
	Tags []string `yaml:"tags,omitempty"`

	// TimeoutMs is the run-level budget for the whole scenario.
	// Zero means the configured default.
	TimeoutMs int `yaml:"timeout_ms,omitempty"`

	// Steps execute strictly in declared order.
	Steps []Step `yaml:"steps"`

	// Source is the file the scenario was loaded from. Not part of the file format.
	Source string `yaml:"-"`
}

// Step is one atomic action. Exactly one of HTTP, UI, Assert or Wait is set.
type Step struct {
	Name string `yaml:"name"`

	HTTP   *HTTPCall  `yaml:"http,omitempty"`
	UI     *UIAction  `yaml:"ui,omitempty"`
	Assert *Assertion `yaml:"assert,omitempty"`
	Wait   *Wait      `yaml:"wait,omitempty"`

	// TimeoutMs bounds each attempt. Zero means the configured default.
	TimeoutMs int `yaml:"timeout_ms,omitempty"`

	// Retry overrides the configured default retry policy.
	Retry *RetryPolicy `yaml:"retry,omitempty"`

	// Fatal controls whether a failure skips the remaining steps. Defaults to true.
	Fatal *bool `yaml:"fatal,omitempty"`
}

// RetryPolicy controls re-attempts of a failed step.
type RetryPolicy struct {
	MaxAttempts int `yaml:"max_attempts"`
	BackoffMs   int `yaml:"backoff_ms"`
}

// HTTPCall issues one request against the target system.
//
// Retrying a non-idempotent call (POST creating a resource) may create
// duplicates on the target; nothing here deduplicates them.
type HTTPCall struct {
	Method  string            `yaml:"method"`
	Path    string            `yaml:"path"`
	Query   map[string]string `yaml:"query,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`

	// JSON is marshalled as the request body with Content-Type application/json.
	JSON any `yaml:"json,omitempty"`

	// Body is sent verbatim when JSON is not set.
	Body string `yaml:"body,omitempty"`

	// ExpectStatus lists acceptable status codes. Empty accepts any 2xx.
	ExpectStatus []int `yaml:"expect_status,omitempty"`

	// ExpectBody is matched as a subset of the decoded JSON response.
	ExpectBody map[string]any `yaml:"expect_body,omitempty"`

	// ExpectType requires the JSON body to be of the given type
	// ("array", "object", "string", "number", "bool", "null").
	ExpectType string `yaml:"expect_type,omitempty"`

	// Capture maps variable names to paths into the JSON response body.
	Capture map[string]string `yaml:"capture,omitempty"`

	// CaptureStatus stores the response status code under this variable name.
	CaptureStatus string `yaml:"capture_status,omitempty"`
}

// UIAction drives the browser session through an opaque locator.
type UIAction struct {
	Action     string `yaml:"action"`
	Locator    string `yaml:"locator,omitempty"`
	URL        string `yaml:"url,omitempty"`
	Value      string `yaml:"value,omitempty"`
	Capture    string `yaml:"capture,omitempty"`
	ExpectText string `yaml:"expect_text,omitempty"`
}

// UI actions.
const (
	UINavigate    = "navigate"
	UIClick       = "click"
	UIFill        = "fill"
	UIWaitVisible = "wait_visible"
	UIText        = "text"
)

// Assertion checks a value held in the execution context.
type Assertion struct {
	// Var is a path into the execution context, e.g. "rfps" or "rfp.status".
	Var string `yaml:"var"`

	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Value is the expected value. Strings may contain ${...} templates.
	Value any `yaml:"value,omitempty"`

	// Each applies the check to this path of every element of an array.
	Each string `yaml:"each,omitempty"`
}

// Assertion operators.
const (
	OpEq        = "eq"
	OpNe        = "ne"
	OpLt        = "lt"
	OpLte       = "lte"
	OpGt        = "gt"
	OpGte       = "gte"
	OpLenEq     = "len_eq"
	OpLenLte    = "len_lte"
	OpLenGte    = "len_gte"
	OpContains  = "contains"
	OpMatches   = "matches"
	OpExists    = "exists"
	OpNotExists = "not_exists"
	OpType      = "type"
	OpOneOf     = "one_of"
)

// Wait polls a condition until it holds or the step timeout elapses.
// The condition is the optional HTTP call followed by the optional assertion.
type Wait struct {
	IntervalMs int        `yaml:"interval_ms,omitempty"`
	HTTP       *HTTPCall  `yaml:"http,omitempty"`
	UI         *UIAction  `yaml:"ui,omitempty"`
	Assert     *Assertion `yaml:"assert,omitempty"`
}

// Kind reports the kind of the step.
func (s Step) Kind() Kind {
	switch {
	case s.HTTP != nil:
		return KindHTTP
	case s.UI != nil:
		return KindUI
	case s.Assert != nil:
		return KindAssert
	case s.Wait != nil:
		return KindWait
	default:
		return ""
	}
}

// IsFatal reports whether a failure of this step skips the rest of the scenario.
func (s Step) IsFatal() bool {
	return s.Fatal == nil || *s.Fatal
}

// Timeout returns the per-attempt timeout.
func (s Step) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// NeedsUI reports whether any step of the scenario drives a browser.
func (s *Scenario) NeedsUI() bool {
	for _, st := range s.Steps {
		if st.UI != nil || (st.Wait != nil && st.Wait.UI != nil) {
			return true
		}
	}
	return false
}

// HasTag reports whether the scenario carries the tag.
func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Defaults holds the configured values applied to steps that leave them unset.
type Defaults struct {
	StepTimeoutMs int
	RunTimeoutMs  int
	Retry         RetryPolicy
}

// WithDefaults returns a copy of the scenario with every timeout and retry
// policy resolved. The receiver is not modified.
func (s *Scenario) WithDefaults(d Defaults) *Scenario {
	out := *s
	out.Tags = append([]string(nil), s.Tags...)
	if out.TimeoutMs == 0 {
		out.TimeoutMs = d.RunTimeoutMs
	}
	out.Steps = make([]Step, len(s.Steps))
	for i, st := range s.Steps {
		if st.TimeoutMs == 0 {
			st.TimeoutMs = d.StepTimeoutMs
		}
		if st.Retry == nil {
			r := d.Retry
			if r.MaxAttempts < 1 {
				r.MaxAttempts = 1
			}
			st.Retry = &r
		} else {
			r := *st.Retry
			st.Retry = &r
		}
		if st.Fatal != nil {
			f := *st.Fatal
			st.Fatal = &f
		}
		out.Steps[i] = st
	}
	return &out
}

// StepOutcome is the recorded outcome of one step. Immutable after creation.
type StepOutcome struct {
	Index       int         `json:"index"`
	Name        string      `json:"name"`
	Kind        Kind        `json:"kind"`
	Status      Status      `json:"status"`
	DurationMs  int64       `json:"duration_ms"`
	Attempts    int         `json:"attempts"`
	MaxAttempts int         `json:"max_attempts"`
	Fatal       bool        `json:"fatal"`
	Failure     FailureKind `json:"failure_kind,omitempty"`
	ErrorDetail string      `json:"error_detail,omitempty"`
}

// Result is the outcome of one scenario run.
type Result struct {
	Scenario   string        `json:"scenario"`
	Source     string        `json:"source,omitempty"`
	Tags       []string      `json:"tags,omitempty"`
	Status     Status        `json:"status"`
	Outcomes   []StepOutcome `json:"outcomes"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Passed reports whether the scenario passed.
func (r *Result) Passed() bool {
	return r.Status == StatusPassed
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failures returns the failed outcomes in step order.
func (r *Result) Failures() []StepOutcome {
	var out []StepOutcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// CountStatus returns how many outcomes have the given status.
func (r *Result) CountStatus(status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Statuses returns the ordered list of step statuses.
func (r *Result) Statuses() []Status {
	out := make([]Status, len(r.Outcomes))
	for i, o := range r.Outcomes {
		out[i] = o.Status
	}
	return out
}

// Finalize derives the overall status from the outcomes. Failure is sticky:
// any failed step fails the scenario, fatal or not.
func (r *Result) Finalize() {
	r.Status = StatusPassed
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			r.Status = StatusFailed
			return
		}
	}
}

// String implements fmt.Stringer for log output.
func (o StepOutcome) String() string {
	if o.Status == StatusFailed {
		return fmt.Sprintf("step %d %q %s [%s] %s", o.Index, o.Name, o.Status, o.Failure, o.ErrorDetail)
	}
	return fmt.Sprintf("step %d %q %s", o.Index, o.Name, o.Status)
}
