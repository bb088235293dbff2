package link

import (
	"net"
	"time"

	"github.com/borescope/scopelink/pkg/wire"
)

// heartbeatLoop sends a keepalive every HeartbeatInterval until done is
// closed, then sends a single Stop datagram. Sends are best-effort.
func (s *Session) heartbeatLoop(conn *net.UDPConn, done <-chan struct{}) {
	hb := wire.Heartbeat()
	ticker := time.NewTicker(s.conf.HeartbeatInterval)
	defer ticker.Stop()

	for s.running.Get() {
		_, err := conn.WriteToUDP(hb, s.videoAddr)
		s.m.HeartbeatSent(err != nil)
		if err != nil {
			s.log.WithError(err).Warn("Failed to send heartbeat")
		} else {
			s.log.Debugf("Sent heartbeat (%d bytes)", len(hb))
		}

		select {
		case <-done:
		case <-ticker.C:
		}
	}

	if _, err := conn.WriteToUDP(wire.Stop(), s.videoAddr); err != nil {
		s.log.WithError(err).Debug("Failed to send stop")
		return
	}
	s.log.Debug("Sent stop")
}
