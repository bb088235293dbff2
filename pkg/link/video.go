package link

import (
	"net"
	"time"

	"github.com/borescope/scopelink/pkg/frame"
	"github.com/borescope/scopelink/pkg/wire"
)

// videoLoop receives fragments, reassembles frames and hands them out.
// Malformed datagrams are dropped silently; receive timeouts only re-check
// the running flag.
func (s *Session) videoLoop(conn *net.UDPConn) {
	r := frame.NewReassembler(s.m)
	buf := make([]byte, maxDatagram)

	for s.running.Get() {
		if err := conn.SetReadDeadline(time.Now().Add(s.conf.VideoTimeout)); err != nil {
			if !s.running.Get() {
				return
			}
			s.log.WithError(err).Warn("Failed to set video read deadline")
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if s.isTimeout(err) || !s.running.Get() {
				continue
			}
			s.log.WithError(err).Warn("Video receive failed")
			continue
		}

		f, ok := wire.DecodeFragment(buf[:n])
		if !ok {
			s.m.DatagramRejected()
			continue
		}

		jpeg, ok := r.Submit(f)
		if !ok {
			continue
		}
		s.deliver(jpeg)
	}
}

func (s *Session) deliver(jpeg []byte) {
	s.latest.Store(jpeg)

	if s.capture.TestAndClear() {
		if s.cb.OnCapture != nil {
			s.cb.OnCapture(jpeg)
		}
		s.log.Infof("Captured frame for remote request (%d bytes)", len(jpeg))
	}

	if s.cb.OnFrameReady != nil {
		s.cb.OnFrameReady(jpeg)
	}
}
