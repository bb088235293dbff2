// Package wire implements the datagram formats spoken by the camera:
// keepalive control messages, fragmented JPEG video and event polling.
// All multi-byte fields are little-endian.
package wire

import "bytes"

var heartbeat = []byte{
	0x99, 0x99, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

var stop = []byte{
	0x99, 0x99, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// ControlType identifies a keepalive control datagram.
type ControlType byte

// Control datagram types.
const (
	HeartbeatType = ControlType(0x01)
	StopType      = ControlType(0x02)
)

func (ct ControlType) String() string {
	switch ct {
	case HeartbeatType:
		return "HEARTBEAT"
	case StopType:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Heartbeat returns the keepalive datagram.
func Heartbeat() []byte { return append([]byte(nil), heartbeat...) }

// Stop returns the datagram that ends a video session.
func Stop() []byte { return append([]byte(nil), stop...) }

// ParseControl reports whether b is one of the control datagrams and which.
// Only the device side needs this; the client sends them verbatim.
func ParseControl(b []byte) (ControlType, bool) {
	switch {
	case bytes.Equal(b, heartbeat):
		return HeartbeatType, true
	case bytes.Equal(b, stop):
		return StopType, true
	default:
		return 0, false
	}
}
