// Package report renders scenario results for people and for machines.
//
// Three renderings share one model: a colored text summary for the
// terminal, a JSON document for tooling, and JUnit XML for CI systems.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/stepwise/internal/fingerprint"
	"github.com/roach88/stepwise/internal/scenario"
)

// Exit codes of a run.
const (
	ExitPassed = 0
	ExitFailed = 1
)

// Report is the outcome of one invocation of the runner.
type Report struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Passed     int               `json:"passed"`
	Failed     int               `json:"failed"`
	Total      int               `json:"total"`
	Scenarios  []*ScenarioReport `json:"scenarios"`
}

// ScenarioReport is one scenario's result plus derived fields.
type ScenarioReport struct {
	*scenario.Result
	DurationMs  int64  `json:"duration_ms"`
	Fingerprint string `json:"fingerprint"`
}

// New builds a report from results in run order.
func New(runID string, startedAt, finishedAt time.Time, results []*scenario.Result) (*Report, error) {
	r := &Report{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Total:      len(results),
		Scenarios:  make([]*ScenarioReport, 0, len(results)),
	}
	for _, res := range results {
		fp, err := fingerprint.Of(res)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", res.Scenario, err)
		}
		if res.Passed() {
			r.Passed++
		} else {
			r.Failed++
		}
		r.Scenarios = append(r.Scenarios, &ScenarioReport{
			Result:      res,
			DurationMs:  res.Duration().Milliseconds(),
			Fingerprint: fp,
		})
	}
	return r, nil
}

// OK reports whether every scenario passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// ExitCode is 0 when every scenario passed and 1 otherwise.
func (r *Report) ExitCode() int {
	if r.OK() {
		return ExitPassed
	}
	return ExitFailed
}

// Duration is the wall time of the whole run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedNames lists the failed scenarios in run order.
func (r *Report) FailedNames() []string {
	var names []string
	for _, s := range r.Scenarios {
		if !s.Passed() {
			names = append(names, s.Scenario)
		}
	}
	return names
}

// WriteFile renders the report into path with fn, creating parent
// directories as needed.
func WriteFile(path string, rep *Report, fn func(io.Writer, *Report) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := fn(f, rep); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return f.Close()
}
