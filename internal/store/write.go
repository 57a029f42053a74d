package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/stepwise/internal/report"
)

// timeFormat is fixed width so stored timestamps order lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// WriteRun records a finished run with all of its scenario results and
// step outcomes in one transaction. Writing the same run id twice fails.
func (s *Store) WriteRun(ctx context.Context, rep *report.Report, baseURL string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, base_url, passed, failed, total)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rep.RunID,
		formatTime(rep.StartedAt),
		formatTime(rep.FinishedAt),
		baseURL,
		rep.Passed,
		rep.Failed,
		rep.Total,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	for seq, sr := range rep.Scenarios {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scenario_results
			(run_id, seq, scenario, source, status, started_at, finished_at, duration_ms, fingerprint)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rep.RunID,
			seq,
			sr.Scenario,
			sr.Source,
			string(sr.Status),
			formatTime(sr.StartedAt),
			formatTime(sr.FinishedAt),
			sr.DurationMs,
			sr.Fingerprint,
		)
		if err != nil {
			return fmt.Errorf("write scenario result %q: %w", sr.Scenario, err)
		}

		for _, o := range sr.Outcomes {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO step_outcomes
				(run_id, scenario_seq, step_index, name, kind, status, duration_ms,
				 attempts, max_attempts, fatal, failure_kind, error_detail)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				rep.RunID,
				seq,
				o.Index,
				o.Name,
				string(o.Kind),
				string(o.Status),
				o.DurationMs,
				o.Attempts,
				o.MaxAttempts,
				o.Fatal,
				string(o.Failure),
				o.ErrorDetail,
			)
			if err != nil {
				return fmt.Errorf("write step outcome %q/%d: %w", sr.Scenario, o.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}
