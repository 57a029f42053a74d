// Package metrics records run statistics as Prometheus metrics and writes
// them in the node-exporter textfile format, so a CI host's exporter can
// pick up the results of the last run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/stepwise/internal/scenario"
)

const namespace = "stepwise"

// Recorder holds the metrics of one process. It owns a private registry so
// repeated runs in tests never collide on registration.
type Recorder struct {
	registry *prometheus.Registry

	scenarios        *prometheus.CounterVec   // By status
	steps            *prometheus.CounterVec   // By kind and status
	failures         *prometheus.CounterVec   // By failure_kind
	attempts         *prometheus.HistogramVec // By kind
	scenarioDuration prometheus.Histogram
	lastRunPassed    prometheus.Gauge
}

// New creates a Recorder with every metric registered.
func New() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Scenarios run, by overall status",
		}, []string{"status"}), // status: passed, failed

		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Steps recorded, by kind and status",
		}, []string{"kind", "status"}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Failed steps, by failure kind",
		}, []string{"failure_kind"}),

		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_attempts",
			Help:      "Attempts used by executed steps",
			Buckets:   []float64{1, 2, 3, 5, 10},
		}, []string{"kind"}),

		scenarioDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Wall time of a scenario run in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),

		lastRunPassed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_passed",
			Help:      "1 if every scenario of the last run passed, 0 otherwise",
		}),
	}

	collectors := []prometheus.Collector{
		r.scenarios, r.steps, r.failures, r.attempts, r.scenarioDuration, r.lastRunPassed,
	}
	for _, c := range collectors {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return r, nil
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records one scenario result.
func (r *Recorder) Observe(res *scenario.Result) {
	r.scenarios.WithLabelValues(string(res.Status)).Inc()
	r.scenarioDuration.Observe(res.Duration().Seconds())

	for _, o := range res.Outcomes {
		r.steps.WithLabelValues(string(o.Kind), string(o.Status)).Inc()
		if o.Status == scenario.StatusSkipped {
			continue
		}
		r.attempts.WithLabelValues(string(o.Kind)).Observe(float64(o.Attempts))
		if o.Status == scenario.StatusFailed {
			r.failures.WithLabelValues(string(o.Failure)).Inc()
		}
	}
}

// ObserveRun records every result of a run and the run's overall outcome.
func (r *Recorder) ObserveRun(results []*scenario.Result) {
	passed := 1.0
	for _, res := range results {
		r.Observe(res)
		if !res.Passed() {
			passed = 0
		}
	}
	r.lastRunPassed.Set(passed)
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is written atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
