package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// FragmentHeaderLen is the size of a video fragment header.
	FragmentHeaderLen = 24

	// MaxFragmentPayload is the largest payload a fragment header can declare.
	MaxFragmentPayload = math.MaxUint16

	fragmentMagic0 = 0x66
	fragmentMagic2 = 0x01
)

// Flag marks a fragment's position within a frame.
type Flag byte

// Fragment flags. Any value other than FlagStart and FlagEnd is a middle fragment.
const (
	FlagMiddle = Flag(0x0)
	FlagStart  = Flag(0x1)
	FlagEnd    = Flag(0x2)
)

// IsStart reports whether the fragment opens a frame.
func (f Flag) IsStart() bool { return f == FlagStart }

// IsEnd reports whether the fragment closes a frame.
func (f Flag) IsEnd() bool { return f == FlagEnd }

func (f Flag) String() string {
	switch f {
	case FlagStart:
		return "START"
	case FlagEnd:
		return "END"
	case FlagMiddle:
		return "MIDDLE"
	default:
		return fmt.Sprintf("MIDDLE:%d", byte(f))
	}
}

// Fragment is one video datagram carrying part of a JPEG frame.
type Fragment struct {
	Flag      Flag
	FrameID   uint8
	FrameSize uint32 // declared total frame size, meaningful on FlagStart
	Index     uint16
	Payload   []byte
}

// String implements fmt.Stringer.
func (f Fragment) String() string {
	return fmt.Sprintf("<flag:%s><frame:%d><size:%d><index:%d><payload:%d>",
		f.Flag, f.FrameID, f.FrameSize, f.Index, len(f.Payload))
}

// DecodeFragment parses a video datagram. It returns false when the datagram
// is shorter than a header, either magic byte mismatches, or the payload
// length differs from the length declared in the header.
// The returned payload aliases b.
func DecodeFragment(b []byte) (Fragment, bool) {
	if len(b) < FragmentHeaderLen {
		return Fragment{}, false
	}
	if b[0] != fragmentMagic0 || b[2] != fragmentMagic2 {
		return Fragment{}, false
	}

	payload := b[FragmentHeaderLen:]
	if len(payload) != int(binary.LittleEndian.Uint16(b[14:16])) {
		return Fragment{}, false
	}

	return Fragment{
		Flag:      Flag(b[1]),
		FrameID:   b[3],
		FrameSize: binary.LittleEndian.Uint32(b[4:8]),
		Index:     binary.LittleEndian.Uint16(b[12:14]),
		Payload:   payload,
	}, true
}

// EncodeFragment builds the datagram for f. It panics if the payload does
// not fit the 16-bit size field.
func EncodeFragment(f Fragment) []byte {
	if len(f.Payload) > MaxFragmentPayload {
		panic("fragment payload size exceeded")
	}

	b := make([]byte, FragmentHeaderLen+len(f.Payload))
	b[0] = fragmentMagic0
	b[1] = byte(f.Flag)
	b[2] = fragmentMagic2
	b[3] = f.FrameID
	binary.LittleEndian.PutUint32(b[4:8], f.FrameSize)
	binary.LittleEndian.PutUint16(b[12:14], f.Index)
	binary.LittleEndian.PutUint16(b[14:16], uint16(len(f.Payload)))
	copy(b[FragmentHeaderLen:], f.Payload)
	return b
}

// SplitFrame cuts a frame into in-order fragments carrying at most chunk
// bytes each. A frame that fits one chunk still yields a Start and an End.
func SplitFrame(id uint8, frame []byte, chunk int) []Fragment {
	if chunk <= 0 || chunk > MaxFragmentPayload {
		chunk = MaxFragmentPayload
	}

	var frags []Fragment
	for off := 0; off < len(frame) || len(frags) == 0; off += chunk {
		end := off + chunk
		if end > len(frame) {
			end = len(frame)
		}
		frags = append(frags, Fragment{
			Flag:      FlagMiddle,
			FrameID:   id,
			FrameSize: uint32(len(frame)),
			Index:     uint16(len(frags)),
			Payload:   frame[off:end],
		})
	}
	if len(frags) == 1 {
		frags = append(frags, Fragment{
			FrameID:   id,
			FrameSize: uint32(len(frame)),
			Index:     1,
			Payload:   []byte{},
		})
	}

	frags[0].Flag = FlagStart
	frags[len(frags)-1].Flag = FlagEnd
	return frags
}
