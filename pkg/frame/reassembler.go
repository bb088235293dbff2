// Package frame reassembles fragmented JPEG frames from the video stream.
package frame

import (
	"bytes"
	"time"

	"github.com/borescope/scopelink/pkg/wire"
)

// DropReason explains why a frame in progress was abandoned.
type DropReason int

const (
	// DropOutOfOrder is reported when a fragment index differs from the expected one.
	DropOutOfOrder DropReason = iota

	// DropSizeMismatch is reported when an End fragment closes a frame whose
	// length differs from the size declared by its Start fragment, or as soon
	// as the buffered length exceeds that size.
	DropSizeMismatch
)

func (r DropReason) String() string {
	switch r {
	case DropOutOfOrder:
		return "out_of_order"
	case DropSizeMismatch:
		return "size_mismatch"
	default:
		return "unknown"
	}
}

// Observer receives reassembly outcomes. Implementations must not block.
type Observer interface {
	FrameAssembled(size int, took time.Duration)
	FrameDropped(reason DropReason)
}

// State is the reassembly state of the frame in progress.
type State struct {
	ID            uint8
	HasID         bool
	ExpectedSize  uint32
	HasSize       bool
	Buffered      int
	ExpectedIndex uint16
	StartedAt     time.Time
}

// Reassembler accumulates in-order fragments into complete frames.
// It is not safe for concurrent use; it belongs to a single receive loop.
type Reassembler struct {
	id      *uint8
	size    *uint32
	buf     bytes.Buffer
	next    uint16
	started time.Time

	obs Observer
	now func() time.Time
}

// NewReassembler returns an empty Reassembler. obs may be nil.
func NewReassembler(obs Observer) *Reassembler {
	return &Reassembler{obs: obs, now: time.Now}
}

// Submit feeds one decoded fragment. It returns the frame bytes when f
// completes a frame whose length matches the declared size.
//
// A Start fragment always discards the frame in progress. Any fragment whose
// index is not the expected one discards the frame in progress and is itself
// dropped, so a single lost, duplicated or reordered fragment loses the frame.
func (r *Reassembler) Submit(f wire.Fragment) ([]byte, bool) {
	if f.Flag.IsStart() {
		id, size := f.FrameID, f.FrameSize
		r.id, r.size = &id, &size
		r.buf = bytes.Buffer{}
		r.next = 0
		r.started = r.now()
	}

	if f.Index != r.next {
		hadFrame := r.buf.Len() > 0 || r.next > 0
		r.reset()
		if hadFrame {
			r.dropped(DropOutOfOrder)
		}
		return nil, false
	}

	r.buf.Write(f.Payload)
	r.next++

	// An overfull buffer can never match the declared size.
	if r.size != nil && r.buf.Len() > int(*r.size) {
		r.reset()
		r.dropped(DropSizeMismatch)
		return nil, false
	}

	if !f.Flag.IsEnd() {
		return nil, false
	}

	r.next = 0
	if r.size == nil || r.buf.Len() != int(*r.size) {
		r.dropped(DropSizeMismatch)
		return nil, false
	}

	out := make([]byte, r.buf.Len())
	copy(out, r.buf.Bytes())
	if r.obs != nil {
		r.obs.FrameAssembled(len(out), r.now().Sub(r.started))
	}
	return out, true
}

// State returns a snapshot of the frame in progress.
func (r *Reassembler) State() State {
	s := State{
		Buffered:      r.buf.Len(),
		ExpectedIndex: r.next,
		StartedAt:     r.started,
	}
	if r.id != nil {
		s.ID, s.HasID = *r.id, true
	}
	if r.size != nil {
		s.ExpectedSize, s.HasSize = *r.size, true
	}
	return s
}

func (r *Reassembler) reset() {
	r.buf.Reset()
	r.next = 0
}

func (r *Reassembler) dropped(reason DropReason) {
	if r.obs != nil {
		r.obs.FrameDropped(reason)
	}
}
