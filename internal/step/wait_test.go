package step

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepwise/internal/scenario"
)

func TestWaitPollsUntilConditionHolds(t *testing.T) {
	var polls atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if polls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})
	httphelpers.WithServer(h, func(server *httptest.Server) {
		env := newEnv(server.URL)
		st := scenario.Step{
			Name: "document processed",
			Wait: &scenario.Wait{
				IntervalMs: 5,
				HTTP:       &scenario.HTTPCall{Method: "GET", Path: "/api/documents/1", Capture: map[string]string{"state": "status"}},
				Assert:     &scenario.Assertion{Var: "state", Op: scenario.OpEq, Value: "ready"},
			},
			TimeoutMs: 2000,
		}

		out := Execute(context.Background(), 0, st, env)

		require.Equal(t, scenario.StatusPassed, out.Status, out.ErrorDetail)
		assert.EqualValues(t, 3, polls.Load())
		v, ok := env.Vars.Get("state")
		require.True(t, ok)
		assert.Equal(t, "ready", v.StringValue())
	})
}

func TestWaitTimeoutReportsLastReason(t *testing.T) {
	h := httphelpers.HandlerWithJSONResponse(map[string]any{"status": "processing"}, nil)
	httphelpers.WithServer(h, func(server *httptest.Server) {
		env := newEnv(server.URL)
		st := scenario.Step{
			Name: "never ready",
			Wait: &scenario.Wait{
				IntervalMs: 5,
				HTTP:       &scenario.HTTPCall{Method: "GET", Path: "/", Capture: map[string]string{"state": "status"}},
				Assert:     &scenario.Assertion{Var: "state", Op: scenario.OpEq, Value: "ready"},
			},
			TimeoutMs: 60,
		}

		out := Execute(context.Background(), 0, st, env)

		assert.Equal(t, scenario.StatusFailed, out.Status)
		assert.Equal(t, scenario.FailureTransient, out.Failure)
		assert.Equal(t, "timeout after 60ms (last: state eq: expected ready, got processing)", out.ErrorDetail)
		_, ok := env.Vars.Get("state")
		assert.False(t, ok, "captures of failed polls must not leak")
	})
}

func TestWaitHarnessFaultStopsPolling(t *testing.T) {
	env := newEnv("")
	st := scenario.Step{
		Name:      "bad reference",
		Wait:      &scenario.Wait{Assert: &scenario.Assertion{Var: "missing", Op: scenario.OpEq, Value: 1}},
		TimeoutMs: 1000,
	}

	out := Execute(context.Background(), 0, st, env)

	assert.Equal(t, scenario.FailureHarnessFault, out.Failure)
}
