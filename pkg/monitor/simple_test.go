package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleLoadMonitorPauseResume(t *testing.T) {
	m := NewSimpleLoadMonitor()

	assert.False(t, m.Paused())

	require.NoError(t, m.PauseMetricSampling("execution starting"))
	assert.True(t, m.Paused())

	m.ResumeMetricSampling("execution finished")
	assert.False(t, m.Paused())
}

func TestSimpleLoadMonitorNotReady(t *testing.T) {
	m := NewSimpleLoadMonitor()
	m.SetReady(false)

	err := m.PauseMetricSampling("execution starting")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.False(t, m.Paused())

	m.SetReady(true)
	require.NoError(t, m.PauseMetricSampling("execution starting"))
	assert.True(t, m.Paused())
}
