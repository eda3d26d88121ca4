// Package metrics defines the operational metrics surface used by ingest and
// profiling. Services depend only on Backend; concrete sinks live in
// subpackages.
package metrics

import "time"

// Metric names recorded by keyscout.
const (
	StepTotal           = "keyscout_step_total"
	StepDurationSeconds = "keyscout_step_duration_seconds"
	RowsLoadedTotal     = "keyscout_rows_loaded_total"
	CombinationsTotal   = "keyscout_combinations_total"
	TruncatedRunsTotal  = "keyscout_profile_truncated_total"
	KeyDecisionsTotal   = "keyscout_key_decisions_total"
)

// Step names.
const (
	StepIngest  = "ingest"
	StepProfile = "profile"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives counters and histogram observations.
// Implementations must be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }
func (Nop) Close() error                             { return nil }

var _ Backend = Nop{}

// OrNop returns b, or Nop when b is nil.
func OrNop(b Backend) Backend {
	if b == nil {
		return Nop{}
	}
	return b
}

// RecordStep counts one execution of step and observes its duration.
func RecordStep(b Backend, step string, started time.Time, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	labels := Labels{"step": step, "status": status}
	b.IncCounter(StepTotal, 1, labels)
	b.ObserveHistogram(StepDurationSeconds, time.Since(started).Seconds(), labels)
}
