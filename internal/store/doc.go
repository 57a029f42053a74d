// Package store keeps the history of runs in SQLite.
//
// Every run is one row in runs, with one scenario_results row per scenario
// (carrying its fingerprint) and one step_outcomes row per step. History is
// append-only: a run is written once, in a single transaction, after it
// finished.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// A scenario is unstable when the fingerprints of its two most recent
// results differ: the same scenario produced a different sequence of step
// statuses.
package store
