// Package metrics records link activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/borescope/scopelink/pkg/frame"
)

// Recorder records link metrics.
type Recorder interface {
	frame.Observer
	DatagramRejected()
	HeartbeatSent(hasErr bool)
	EventPolled(answered bool)
	EventTriggered()
}

type dummy struct{}

// NewDummy constructs a new dummy metrics recorder.
func NewDummy() Recorder {
	return &dummy{}
}

func (m *dummy) FrameAssembled(int, time.Duration) {}
func (m *dummy) FrameDropped(frame.DropReason)     {}
func (m *dummy) DatagramRejected()                 {}
func (m *dummy) HeartbeatSent(bool)                {}
func (m *dummy) EventPolled(bool)                  {}
func (m *dummy) EventTriggered()                   {}

type prom struct {
	frames      prometheus.Counter
	frameBytes  prometheus.Counter
	assembly    prometheus.Summary
	dropped     *prometheus.CounterVec
	rejected    prometheus.Counter
	heartbeats  prometheus.Counter
	hbErrors    prometheus.Counter
	polls       *prometheus.CounterVec
	eventsFired prometheus.Counter
}

// NewPrometheus constructs a new Prometheus metrics recorder registered on reg.
func NewPrometheus(service string, reg prometheus.Registerer) Recorder {
	f := promauto.With(reg)
	return &prom{
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: service + "_frames_total",
			Help: "The total number of reassembled frames",
		}),
		frameBytes: f.NewCounter(prometheus.CounterOpts{
			Name: service + "_frame_bytes_total",
			Help: "The total number of bytes in reassembled frames",
		}),
		assembly: f.NewSummary(prometheus.SummaryOpts{
			Name: service + "_frame_assembly_seconds",
			Help: "Time between a frame's start fragment and its completion",
		}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: service + "_frames_dropped_total",
			Help: "Frames abandoned during reassembly",
		}, []string{"reason"}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: service + "_datagrams_rejected_total",
			Help: "Video datagrams that failed to decode",
		}),
		heartbeats: f.NewCounter(prometheus.CounterOpts{
			Name: service + "_heartbeats_total",
			Help: "Heartbeat datagrams sent",
		}),
		hbErrors: f.NewCounter(prometheus.CounterOpts{
			Name: service + "_heartbeat_errors_total",
			Help: "Heartbeat datagrams that failed to send",
		}),
		polls: f.NewCounterVec(prometheus.CounterOpts{
			Name: service + "_event_polls_total",
			Help: "Event poll cycles by outcome",
		}, []string{"outcome"}),
		eventsFired: f.NewCounter(prometheus.CounterOpts{
			Name: service + "_events_total",
			Help: "Remote events detected",
		}),
	}
}

func (m *prom) FrameAssembled(size int, took time.Duration) {
	m.frames.Inc()
	m.frameBytes.Add(float64(size))
	m.assembly.Observe(took.Seconds())
}

func (m *prom) FrameDropped(reason frame.DropReason) {
	m.dropped.WithLabelValues(reason.String()).Inc()
}

func (m *prom) DatagramRejected() { m.rejected.Inc() }

func (m *prom) HeartbeatSent(hasErr bool) {
	if hasErr {
		m.hbErrors.Inc()
		return
	}
	m.heartbeats.Inc()
}

func (m *prom) EventPolled(answered bool) {
	outcome := "silent"
	if answered {
		outcome = "answered"
	}
	m.polls.WithLabelValues(outcome).Inc()
}

func (m *prom) EventTriggered() { m.eventsFired.Inc() }
