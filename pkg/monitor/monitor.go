// Package monitor defines the LoadMonitor collaborator: the metric
// sampler the execution loop pauses for the duration of an execution so
// that in-flight reassignments don't pollute the cluster's load
// observations.
package monitor

import "errors"

// ErrNotReady is returned by PauseMetricSampling when the monitor cannot
// honor a pause request yet (for example, because it is still completing
// a sampling pass it had already started). The execution loop treats this
// as transient and retries indefinitely.
var ErrNotReady = errors.New("load monitor not ready")

// LoadMonitor is the capability the execution loop needs from whatever
// system samples cluster load metrics.
type LoadMonitor interface {
	// PauseMetricSampling suspends sampling until a matching
	// ResumeMetricSampling call, recording reason for diagnostics. It may
	// return ErrNotReady.
	PauseMetricSampling(reason string) error

	// ResumeMetricSampling resumes sampling after a pause.
	ResumeMetricSampling(reason string)
}
