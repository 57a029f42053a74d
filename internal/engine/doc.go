// Package engine runs scenarios against a target system.
//
// ARCHITECTURE:
//
// Runner:
// Run executes one scenario: it acquires a session from the pool, opens a
// fresh execution context seeded from configuration, and executes the steps
// strictly in declared order. RunAll fans scenarios out with bounded
// parallelism and returns results in input order.
//
// Sessions:
// A Session is the isolated resource set of one run: its own HTTP client
// and cookie jar and, when the scenario has UI steps, its own browser.
// SessionPool caps how many exist at once and always releases on return.
//
// Failure handling:
//   - A failed fatal step skips every later step.
//   - A failed non-fatal step lets the run continue, but the scenario fails.
//   - A harness fault skips every later step, fatal or not.
//   - When the run budget expires the current step fails with
//     "run budget exhausted after <n>ms" and the rest are skipped.
//   - Process-level failures (browser start, unreachable target) become a
//     result whose first step failed. Run never returns an error.
//
// Nothing is shared between concurrent runs except the session pool and
// the once-per-process preflight probe.
package engine
