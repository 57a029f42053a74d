package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepwise/internal/scenario"
)

func result(name string, statuses ...scenario.Status) *scenario.Result {
	r := &scenario.Result{Scenario: name}
	for i, s := range statuses {
		r.Outcomes = append(r.Outcomes, scenario.StepOutcome{Index: i, Status: s})
	}
	return r
}

func TestOf_Deterministic(t *testing.T) {
	a := result("login", scenario.StatusPassed, scenario.StatusPassed)
	b := result("login", scenario.StatusPassed, scenario.StatusPassed)
	// Timing and error detail do not take part.
	b.Outcomes[0].DurationMs = 999
	b.Outcomes[1].Attempts = 3

	fa, err := Of(a)
	require.NoError(t, err)
	fb, err := Of(b)
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
	assert.Len(t, fa, 64)
}

func TestOf_ChangesWithStatuses(t *testing.T) {
	base, err := Of(result("login", scenario.StatusPassed, scenario.StatusPassed))
	require.NoError(t, err)

	cases := map[string]*scenario.Result{
		"different status":  result("login", scenario.StatusPassed, scenario.StatusFailed),
		"different order":   result("login", scenario.StatusFailed, scenario.StatusPassed),
		"different name":    result("logout", scenario.StatusPassed, scenario.StatusPassed),
		"different length":  result("login", scenario.StatusPassed),
		"skipped vs passed": result("login", scenario.StatusPassed, scenario.StatusSkipped),
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			fp, err := Of(r)
			require.NoError(t, err)
			assert.NotEqual(t, base, fp)
		})
	}
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`{"scenario":"x"}`)
	assert.NotEqual(t, hashWithDomain(Domain, data), hashWithDomain("other/v1", data))
	// The separator keeps "ab"+"c" and "a"+"bc" apart.
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}
