package monitor

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// SimpleLoadMonitor is a LoadMonitor backed by a plain paused flag
// rather than an actual metric-sampling goroutine. It exists so that the
// execution loop's pause/resume contract is exercised by a real,
// concurrency-safe implementation without requiring this module to own a
// metrics pipeline of its own -- sampling real broker load is outside the
// engine's scope (see spec §1) and left to the LoadMonitor's caller to
// wire up against whatever sampler they already run.
type SimpleLoadMonitor struct {
	mu     sync.Mutex
	paused bool
	ready  bool
}

var _ LoadMonitor = (*SimpleLoadMonitor)(nil)

// NewSimpleLoadMonitor returns a SimpleLoadMonitor that is immediately
// ready to accept pause requests.
func NewSimpleLoadMonitor() *SimpleLoadMonitor {
	return &SimpleLoadMonitor{ready: true}
}

// SetReady controls whether the next PauseMetricSampling call succeeds or
// returns ErrNotReady. Used by this package's tests to check the
// ErrNotReady path.
func (m *SimpleLoadMonitor) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ready = ready
}

// PauseMetricSampling implements LoadMonitor.
func (m *SimpleLoadMonitor) PauseMetricSampling(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return ErrNotReady
	}

	log.Infof("Pausing metric sampling: %s", reason)
	m.paused = true
	return nil
}

// ResumeMetricSampling implements LoadMonitor.
func (m *SimpleLoadMonitor) ResumeMetricSampling(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log.Infof("Resuming metric sampling: %s", reason)
	m.paused = false
}

// Paused reports whether sampling is currently paused. Used by tests.
func (m *SimpleLoadMonitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.paused
}
