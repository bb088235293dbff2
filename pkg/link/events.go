package link

import (
	"net"
	"time"

	"github.com/borescope/scopelink/pkg/event"
	"github.com/borescope/scopelink/pkg/wire"
)

// eventLoop polls the device's event counter once per EventInterval.
// Each cycle sends one request and waits EventTimeout for its reply; a
// missing, malformed or stale reply just means no event this cycle.
func (s *Session) eventLoop(conn *net.UDPConn, done <-chan struct{}) {
	var (
		tracker event.Tracker
		counter wire.RequestCounter
		buf     = make([]byte, eventBufLen)
	)

	for s.running.Get() {
		if s.pollOnce(conn, &tracker, &counter, buf) {
			s.capture.Set(true)
			s.m.EventTriggered()
			s.log.Info("Device event received")
			if s.cb.OnEventTriggered != nil {
				s.cb.OnEventTriggered()
			}
		}

		select {
		case <-done:
			return
		case <-time.After(s.conf.EventInterval):
		}
	}
}

// pollOnce runs a single request/response exchange and reports whether the
// tracker saw a new event.
func (s *Session) pollOnce(conn *net.UDPConn, tracker *event.Tracker, counter *wire.RequestCounter, buf []byte) bool {
	c := counter.Next()
	if _, err := conn.WriteToUDP(wire.EncodeEventRequest(c), s.eventAddr); err != nil {
		s.log.WithError(err).Debug("Failed to send event request")
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.conf.EventTimeout)); err != nil {
		s.m.EventPolled(false)
		return false
	}
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		if !s.isTimeout(err) && s.running.Get() {
			s.log.WithError(err).Debug("Event receive failed")
		}
		s.m.EventPolled(false)
		return false
	}

	resp, ok := wire.DecodeEventResponse(buf[:n])
	if !ok || resp.Counter != c {
		s.m.EventPolled(false)
		return false
	}
	s.m.EventPolled(true)
	return tracker.Observe(resp.ServerCounter)
}
