package wire

import (
	"bytes"
	"encoding/binary"
	"sync/atomic"
)

const (
	// EventRequestLen is the size of an event poll request.
	EventRequestLen = 18

	// EventResponseLen is the size of an event poll response.
	EventResponseLen = 20
)

var (
	eventRequestPrefix  = []byte("SETCMD")
	eventRequestTail    = []byte{0x00, 0x00, 0x90, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00}
	eventResponsePrefix = []byte("RETCMD")
	eventResponseMiddle = []byte{0x00, 0x00, 0x90, 0x00, 0x04, 0x00}
)

// EventResponse is a decoded reply to an event poll request.
type EventResponse struct {
	Counter       uint16 // echoed request counter
	ServerCounter uint16 // device-side event counter
}

// EncodeEventRequest builds the poll request carrying counter.
func EncodeEventRequest(counter uint16) []byte {
	b := make([]byte, 0, EventRequestLen)
	b = append(b, eventRequestPrefix...)
	b = append(b, byte(counter), byte(counter>>8))
	return append(b, eventRequestTail...)
}

// DecodeEventRequest returns the counter of a poll request.
func DecodeEventRequest(b []byte) (uint16, bool) {
	if len(b) != EventRequestLen ||
		!bytes.Equal(b[:6], eventRequestPrefix) ||
		!bytes.Equal(b[8:], eventRequestTail) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b[6:8]), true
}

// EncodeEventResponse builds the reply for a poll request.
func EncodeEventResponse(r EventResponse) []byte {
	b := make([]byte, EventResponseLen)
	copy(b, eventResponsePrefix)
	binary.LittleEndian.PutUint16(b[6:8], r.Counter)
	copy(b[8:14], eventResponseMiddle)
	binary.LittleEndian.PutUint16(b[18:20], r.ServerCounter)
	return b
}

// DecodeEventResponse parses a poll reply. Any length, prefix or constant
// mismatch makes it fail. Matching the echoed counter is left to the caller.
func DecodeEventResponse(b []byte) (EventResponse, bool) {
	if len(b) != EventResponseLen ||
		!bytes.Equal(b[:6], eventResponsePrefix) ||
		!bytes.Equal(b[8:14], eventResponseMiddle) {
		return EventResponse{}, false
	}
	return EventResponse{
		Counter:       binary.LittleEndian.Uint16(b[6:8]),
		ServerCounter: binary.LittleEndian.Uint16(b[18:20]),
	}, true
}

// RequestCounter hands out poll request counters, wrapping at 65536.
type RequestCounter struct {
	n uint32
}

// Next returns the current counter value and advances it.
func (c *RequestCounter) Next() uint16 {
	return uint16(atomic.AddUint32(&c.n, 1) - 1)
}

// Reset sets the next value returned by Next.
func (c *RequestCounter) Reset(v uint16) {
	atomic.StoreUint32(&c.n, uint32(v))
}
