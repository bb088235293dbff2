package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/borescope/scopelink/pkg/frame"
)

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus("test", reg).(*prom)

	m.FrameAssembled(100, 10*time.Millisecond)
	m.FrameAssembled(50, 5*time.Millisecond)
	m.FrameDropped(frame.DropOutOfOrder)
	m.DatagramRejected()
	m.HeartbeatSent(false)
	m.HeartbeatSent(true)
	m.EventPolled(true)
	m.EventPolled(false)
	m.EventPolled(false)
	m.EventTriggered()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.frames))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.frameBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("out_of_order")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.dropped.WithLabelValues("size_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.heartbeats))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hbErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.polls.WithLabelValues("silent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsFired))
}

func TestDummy(t *testing.T) {
	m := NewDummy()
	m.FrameAssembled(1, time.Second)
	m.FrameDropped(frame.DropSizeMismatch)
	m.EventTriggered()
}
