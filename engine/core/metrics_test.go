package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRollingAverage(t *testing.T) {
	m := NewMetrics()

	// Average only publishes once a full window has been observed.
	for i := 0; i < avgCount-1; i++ {
		m.Update(0.016)
	}
	assert.Zero(t, m.FrameTime())

	m.Update(0.016)
	assert.InDelta(t, 16.0, m.FrameTime(), 0.01)
}

func TestMetricsFPSPerSecond(t *testing.T) {
	m := NewMetrics()

	// 100 frames at 10ms each crosses the one second mark.
	for i := 0; i < 100; i++ {
		assert.Zero(t, m.FPS())
		m.Update(0.010)
	}
	m.Update(0.010)
	assert.InDelta(t, 100.0, m.FPS(), 1.0)
}

func TestClockLifecycle(t *testing.T) {
	c := NewClock()

	// Update on a stopped clock is a no-op.
	c.Update()
	assert.Zero(t, c.Elapsed())

	c.Start()
	c.Update()
	assert.GreaterOrEqual(t, c.Elapsed(), 0.0)

	c.Stop()
	before := c.Elapsed()
	c.Update()
	assert.Equal(t, before, c.Elapsed())
}
