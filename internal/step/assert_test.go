package step

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/roach88/stepwise/internal/execctx"
	"github.com/roach88/stepwise/internal/scenario"
)

func assertVars() *execctx.Context {
	c := execctx.NewSeeded(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), map[string]any{"page_size": 20})
	c.Set("rfps", ldvalue.Parse([]byte(`[
		{"id":"a","status":"open","budget":100},
		{"id":"b","status":"open","budget":250}
	]`)))
	c.Set("rfp", ldvalue.Parse([]byte(`{"id":"a","title":"Test RFP","status":"open","budget":100}`)))
	c.Set("status_code", ldvalue.Int(201))
	c.Set("tags", ldvalue.ArrayOf(ldvalue.String("api"), ldvalue.String("rfps")))
	return c
}

func TestAssertOperators(t *testing.T) {
	tests := []struct {
		name   string
		a      scenario.Assertion
		detail string // empty means the assertion holds
	}{
		{"eq string", scenario.Assertion{Var: "rfp.status", Op: "eq", Value: "open"}, ""},
		{"eq number", scenario.Assertion{Var: "status_code", Op: "eq", Value: 201}, ""},
		{"eq mismatch", scenario.Assertion{Var: "rfp.status", Op: "eq", Value: "closed"},
			"rfp.status eq: expected closed, got open"},
		{"ne", scenario.Assertion{Var: "rfp.status", Op: "ne", Value: "closed"}, ""},
		{"lt", scenario.Assertion{Var: "rfp.budget", Op: "lt", Value: 101}, ""},
		{"gte fails", scenario.Assertion{Var: "rfp.budget", Op: "gte", Value: 200},
			"rfp.budget gte: expected >= 200, got 100"},
		{"lte string", scenario.Assertion{Var: "rfp.id", Op: "lte", Value: "b"}, ""},
		{"incomparable", scenario.Assertion{Var: "rfp.id", Op: "gt", Value: 1},
			"rfp.id gt: expected a value comparable with 1, got string a"},
		{"len_lte templated", scenario.Assertion{Var: "rfps", Op: "len_lte", Value: "${page_size}"}, ""},
		{"len_eq fails", scenario.Assertion{Var: "rfps", Op: "len_eq", Value: 3},
			"rfps len_eq: expected length == 3, got length 2"},
		{"len_gte string", scenario.Assertion{Var: "rfp.title", Op: "len_gte", Value: 8}, ""},
		{"contains substring", scenario.Assertion{Var: "rfp.title", Op: "contains", Value: "RFP"}, ""},
		{"contains key", scenario.Assertion{Var: "rfp", Op: "contains", Value: "budget"}, ""},
		{"contains element", scenario.Assertion{Var: "tags", Op: "contains", Value: "rfps"}, ""},
		{"contains element fails", scenario.Assertion{Var: "tags", Op: "contains", Value: "x"},
			`tags contains: expected to contain x, got ["api","rfps"]`},
		{"matches", scenario.Assertion{Var: "rfp.title", Op: "matches", Value: "^Test"}, ""},
		{"type array", scenario.Assertion{Var: "rfps", Op: "type", Value: "array"}, ""},
		{"type mismatch", scenario.Assertion{Var: "rfp", Op: "type", Value: "array"},
			"rfp type: expected array, got object"},
		{"one_of", scenario.Assertion{Var: "rfp.status", Op: "one_of", Value: []any{"draft", "open"}}, ""},
		{"exists", scenario.Assertion{Var: "rfp.id", Op: "exists"}, ""},
		{"not_exists", scenario.Assertion{Var: "rfp.deleted_at", Op: "not_exists"}, ""},
		{"exists fails", scenario.Assertion{Var: "rfp.deleted_at", Op: "exists"},
			"rfp.deleted_at exists: expected defined, got undefined"},
		{"each", scenario.Assertion{Var: "rfps", Op: "eq", Value: "open", Each: "status"}, ""},
		{"each fails", scenario.Assertion{Var: "rfps", Op: "lte", Value: 200, Each: "budget"},
			"rfps.1.budget lte: expected <= 200, got 250"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.a
			err := doAssert(&a, assertVars())
			if tt.detail == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			f := Classify(err)
			assert.Equal(t, scenario.FailureAssertion, f.Kind)
			assert.Equal(t, tt.detail, f.Detail)
		})
	}
}

func TestAssertUndefinedVariable(t *testing.T) {
	err := doAssert(&scenario.Assertion{Var: "never_captured", Op: "eq", Value: 1}, assertVars())
	assert.True(t, IsHarnessFault(err))
}

func TestAssertionErrorFormat(t *testing.T) {
	err := &AssertionError{Op: "status", Expected: "201", Actual: "200"}
	assert.Equal(t, "status: expected 201, got 200", err.Error())

	err.Path = "rfp.id"
	err.Op = "eq"
	assert.Equal(t, "rfp.id eq: expected 201, got 200", err.Error())
}
