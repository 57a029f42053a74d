package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/stepwise/internal/scenario"
)

// ErrRunNotFound is returned by LoadRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// RunRecord summarizes one stored run.
type RunRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	BaseURL    string    `json:"base_url,omitempty"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Total      int       `json:"total"`
}

// ScenarioRecord is one stored scenario result without its step outcomes.
type ScenarioRecord struct {
	RunID       string          `json:"run_id"`
	Scenario    string          `json:"scenario"`
	Source      string          `json:"source,omitempty"`
	Status      scenario.Status `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	DurationMs  int64           `json:"duration_ms"`
	Fingerprint string          `json:"fingerprint"`
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, base_url, passed, failed, total
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var started, finished string
	if err := row.Scan(&rec.ID, &started, &finished, &rec.BaseURL, &rec.Passed, &rec.Failed, &rec.Total); err != nil {
		return RunRecord{}, err
	}
	var err error
	if rec.StartedAt, err = parseTime(started); err != nil {
		return RunRecord{}, err
	}
	if rec.FinishedAt, err = parseTime(finished); err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

// ScenarioHistory returns the stored results of one scenario, newest first.
func (s *Store) ScenarioHistory(ctx context.Context, name string, limit int) ([]ScenarioRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, scenario, source, status, started_at, duration_ms, fingerprint
		FROM scenario_results
		WHERE scenario = ?
		ORDER BY started_at DESC, run_id COLLATE BINARY DESC
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query scenario history: %w", err)
	}
	defer rows.Close()

	history := []ScenarioRecord{}
	for rows.Next() {
		var rec ScenarioRecord
		var status, started string
		if err := rows.Scan(&rec.RunID, &rec.Scenario, &rec.Source, &status, &started, &rec.DurationMs, &rec.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan scenario result: %w", err)
		}
		rec.Status = scenario.Status(status)
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		history = append(history, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenario history: %w", err)
	}
	return history, nil
}

// Unstable reports whether the two most recent entries of a newest-first
// history have different fingerprints.
func Unstable(history []ScenarioRecord) bool {
	return len(history) >= 2 && history[0].Fingerprint != history[1].Fingerprint
}

// UnstableScenarios returns, sorted by name, every scenario whose two most
// recent results have different fingerprints.
func (s *Store) UnstableScenarios(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario, fingerprint FROM (
			SELECT scenario, fingerprint,
			       ROW_NUMBER() OVER (
			           PARTITION BY scenario
			           ORDER BY started_at DESC, run_id COLLATE BINARY DESC
			       ) AS rn
			FROM scenario_results
		)
		WHERE rn <= 2
		ORDER BY scenario COLLATE BINARY ASC, rn ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query unstable scenarios: %w", err)
	}
	defer rows.Close()

	unstable := []string{}
	var prevName, prevFP string
	for rows.Next() {
		var name, fp string
		if err := rows.Scan(&name, &fp); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		if name == prevName && fp != prevFP {
			unstable = append(unstable, name)
		}
		prevName, prevFP = name, fp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprints: %w", err)
	}
	return unstable, nil
}

// LoadRun reads a run back with every scenario result and step outcome, in
// the order they were recorded.
func (s *Store) LoadRun(ctx context.Context, runID string) (RunRecord, []*scenario.Result, error) {
	rec, err := scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, base_url, passed, failed, total
		FROM runs WHERE id = ?
	`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return RunRecord{}, nil, fmt.Errorf("load run: %w", err)
	}

	results, err := s.loadResults(ctx, runID)
	if err != nil {
		return RunRecord{}, nil, err
	}
	if err := s.loadOutcomes(ctx, runID, results); err != nil {
		return RunRecord{}, nil, err
	}
	return rec, results, nil
}

func (s *Store) loadResults(ctx context.Context, runID string) ([]*scenario.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario, source, status, started_at, finished_at
		FROM scenario_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query scenario results: %w", err)
	}
	defer rows.Close()

	var results []*scenario.Result
	for rows.Next() {
		r := &scenario.Result{Outcomes: []scenario.StepOutcome{}}
		var status, started, finished string
		if err := rows.Scan(&r.Scenario, &r.Source, &status, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan scenario result: %w", err)
		}
		r.Status = scenario.Status(status)
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenario results: %w", err)
	}
	return results, nil
}

func (s *Store) loadOutcomes(ctx context.Context, runID string, results []*scenario.Result) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario_seq, step_index, name, kind, status, duration_ms,
		       attempts, max_attempts, fatal, failure_kind, error_detail
		FROM step_outcomes
		WHERE run_id = ?
		ORDER BY scenario_seq ASC, step_index ASC
	`, runID)
	if err != nil {
		return fmt.Errorf("query step outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int
		var o scenario.StepOutcome
		var kind, status, failure string
		if err := rows.Scan(&seq, &o.Index, &o.Name, &kind, &status, &o.DurationMs,
			&o.Attempts, &o.MaxAttempts, &o.Fatal, &failure, &o.ErrorDetail); err != nil {
			return fmt.Errorf("scan step outcome: %w", err)
		}
		if seq < 0 || seq >= len(results) {
			return fmt.Errorf("step outcome references unknown scenario %d", seq)
		}
		o.Kind = scenario.Kind(kind)
		o.Status = scenario.Status(status)
		o.Failure = scenario.FailureKind(failure)
		results[seq].Outcomes = append(results[seq].Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate step outcomes: %w", err)
	}
	return nil
}
