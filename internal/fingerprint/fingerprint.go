// Package fingerprint derives a stable identity for the observable outcome
// of a scenario run.
//
// Two runs of the same scenario against the same target state must produce
// the same ordered list of step statuses. Hashing that list lets run
// history detect non-determinism without storing every outcome.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/stepwise/internal/scenario"
)

// Domain separates result fingerprints from any other hash. The version
// suffix allows changing what is hashed later.
const Domain = "stepwise/result/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Of computes the fingerprint of a result: the scenario name plus its
// ordered step statuses. Timings, attempt counts and error text are
// excluded because they legitimately vary between runs.
func Of(r *scenario.Result) (string, error) {
	statuses := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		statuses[i] = string(o.Status)
	}
	canonical, err := MarshalCanonical(map[string]any{
		"scenario": r.Scenario,
		"statuses": statuses,
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(Domain, canonical), nil
}
