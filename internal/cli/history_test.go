package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepwise/internal/report"
	"github.com/roach88/stepwise/internal/scenario"
	"github.com/roach88/stepwise/internal/store"
	"github.com/roach88/stepwise/internal/testutil"
)

func historyResult(name string, start time.Time, statuses ...scenario.Status) *scenario.Result {
	r := &scenario.Result{
		Scenario:   name,
		StartedAt:  start,
		FinishedAt: start.Add(100 * time.Millisecond),
	}
	for i, st := range statuses {
		o := scenario.StepOutcome{Index: i, Name: "step", Kind: scenario.KindHTTP, Status: st, Attempts: 1, MaxAttempts: 1, Fatal: true}
		if st == scenario.StatusFailed {
			o.Failure = scenario.FailureTargetRejected
			o.ErrorDetail = "HTTP 404: not found"
		}
		r.Outcomes = append(r.Outcomes, o)
	}
	r.Finalize()
	return r
}

// seedHistory records two runs: "login" flips from passed to failed and
// "health" passes both times.
func seedHistory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	first := testutil.Epoch
	second := first.Add(time.Hour)
	for _, rr := range []struct {
		id      string
		start   time.Time
		results []*scenario.Result
	}{
		{"run-1", first, []*scenario.Result{
			historyResult("health", first, scenario.StatusPassed),
			historyResult("login", first, scenario.StatusPassed, scenario.StatusPassed),
		}},
		{"run-2", second, []*scenario.Result{
			historyResult("health", second, scenario.StatusPassed),
			historyResult("login", second, scenario.StatusFailed, scenario.StatusSkipped),
		}},
	} {
		rep, err := report.New(rr.id, rr.start, rr.start.Add(time.Second), rr.results)
		require.NoError(t, err)
		require.NoError(t, st.WriteRun(context.Background(), rep, "http://target"))
	}
	return path
}

func TestHistory_ListRuns(t *testing.T) {
	db := seedHistory(t)

	out, _, err := executeRoot(t, "history", "--db", db)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"RUN", "STARTED", "DURATION", "PASSED", "FAILED"}, strings.Fields(lines[0]))
	assert.True(t, strings.HasPrefix(lines[1], "run-2"), "newest first")
	assert.Contains(t, lines[1], "1/2")
	assert.True(t, strings.HasPrefix(lines[2], "run-1"))

	out, _, err = executeRoot(t, "history", "--db", db, "--limit", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "run-1")
}

func TestHistory_Scenario(t *testing.T) {
	db := seedHistory(t)

	out, _, err := executeRoot(t, "history", "--db", db, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "login: UNSTABLE")
	assert.Contains(t, out, "failed")

	out, _, err = executeRoot(t, "history", "--db", db, "--format", "json", "health")
	require.NoError(t, err)
	var resp struct {
		Data ScenarioHistory `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "health", resp.Data.Scenario)
	assert.False(t, resp.Data.Unstable)
	require.Len(t, resp.Data.Results, 2)
	assert.Equal(t, "run-2", resp.Data.Results[0].RunID)
	assert.Equal(t, resp.Data.Results[0].Fingerprint, resp.Data.Results[1].Fingerprint)
}

func TestHistory_UnknownScenario(t *testing.T) {
	db := seedHistory(t)

	out, _, err := executeRoot(t, "history", "--db", db, "nobody")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestHistory_Unstable(t *testing.T) {
	db := seedHistory(t)

	out, _, err := executeRoot(t, "history", "--db", db, "--unstable")
	require.NoError(t, err)
	assert.Equal(t, "login\n", out)
}

func TestHistory_ShowRun(t *testing.T) {
	db := seedHistory(t)

	out, _, err := executeRoot(t, "history", "--db", db, "--show", "run-2")
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-2: 1/2 scenarios passed")
	assert.Contains(t, out, "PASS  health")
	assert.Contains(t, out, "FAIL  login")
	assert.Contains(t, out, "HTTP 404: not found")

	out, _, err = executeRoot(t, "history", "--db", db, "--show", "run-9")
	require.Error(t, err)
	assert.Contains(t, out, "Error [E005]")
}

func TestHistory_MissingDatabase(t *testing.T) {
	out, _, err := executeRoot(t, "history", "--db", filepath.Join(t.TempDir(), "none.db"))

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]: history database not found")
}

func TestHistory_DatabaseFromConfig(t *testing.T) {
	db := seedHistory(t)
	cfg := writeTestFile(t, t.TempDir(), "stepwise.yaml", "history:\n  db_path: "+db+"\n")

	out, _, err := executeRoot(t, "history", "--config", cfg)
	require.NoError(t, err, "history does not need a base_url")
	assert.Contains(t, out, "run-2")
}
