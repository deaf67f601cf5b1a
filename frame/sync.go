package frame

import "fmt"

// Kind selects which frame shapes a Synchronizer recognizes.
type Kind int

const (
	// KindControl recognizes 5 byte supervisory and unnumbered frames only.
	KindControl Kind = iota
	// KindInformation recognizes information frames as well as control frames.
	KindInformation
)

// State is the position of a Synchronizer inside a frame.
type State int

const (
	StateIdle State = iota
	StateSawFlag
	StateSawAddress
	StateSawControl
	StateAccumulating
	StateAwaitingFlag
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSawFlag:
		return "SawFlag"
	case StateSawAddress:
		return "SawAddress"
	case StateSawControl:
		return "SawControl"
	case StateAccumulating:
		return "AccumulatingPayload"
	case StateAwaitingFlag:
		return "AwaitingFinalFlag"
	default:
		return "Unknown"
	}
}

// Event is the verdict produced by feeding one byte to a Synchronizer.
type Event int

const (
	// NeedMore means the byte was consumed and no verdict is available yet.
	NeedMore Event = iota
	// FrameReady means a complete, valid frame was recognized.
	FrameReady
	// Discarded means the bytes of the current candidate frame were dropped.
	Discarded
)

func (e Event) String() string {
	switch e {
	case NeedMore:
		return "NeedMore"
	case FrameReady:
		return "FrameReady"
	case Discarded:
		return "Discarded"
	default:
		return "Unknown"
	}
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithAddresses restricts accepted frames to the given address bytes.
// By default every address except the flag value is accepted.
func WithAddresses(addrs ...byte) SyncOption {
	return func(s *Synchronizer) {
		s.anyAddress = false
		for _, a := range addrs {
			s.addresses[a] = true
		}
	}
}

// WithControls restricts accepted frames to the given control bytes.
// By default every control byte except the flag value is accepted.
func WithControls(controls ...byte) SyncOption {
	return func(s *Synchronizer) {
		s.anyControl = false
		for _, c := range controls {
			s.controls[c] = true
		}
	}
}

// WithMaxPayload sets the largest information payload the Synchronizer buffers.
func WithMaxPayload(n int) SyncOption {
	return func(s *Synchronizer) {
		if n > 0 {
			s.maxPayload = n
		}
	}
}

// Synchronizer locates frames inside a raw byte stream, one byte at a time.
//
// It never fails: malformed input resolves to Discarded and the machine is
// immediately ready to resynchronize on the next flag. A Synchronizer is not
// safe for concurrent use.
type Synchronizer struct {
	kind       Kind
	state      State
	anyAddress bool
	anyControl bool
	addresses  [256]bool
	controls   [256]bool
	maxPayload int

	address byte
	control byte
	buf     []byte
	err     error
}

// NewSynchronizer creates a Synchronizer for the given frame kind.
func NewSynchronizer(kind Kind, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		kind:       kind,
		anyAddress: true,
		anyControl: true,
		maxPayload: DefaultMaxPayload,
	}

	for _, opt := range opts {
		opt(s)
	}

	if kind == KindInformation {
		s.buf = make([]byte, 0, s.maxPayload+1)
	}

	return s
}

// State returns the current state.
func (s *Synchronizer) State() State { return s.state }

// Kind returns the frame kind the Synchronizer was created for.
func (s *Synchronizer) Kind() Kind { return s.kind }

// Err returns the reason for the most recent Discarded event, or nil.
func (s *Synchronizer) Err() error { return s.err }

// Header returns the address and control of the frame being (or last) assembled.
func (s *Synchronizer) Header() (address, control byte) { return s.address, s.control }

// Reset drops any partial frame and returns to Idle.
func (s *Synchronizer) Reset() {
	s.state = StateIdle
	s.err = nil
	s.buf = s.buf[:0]
}

// Feed consumes one byte. The returned Frame is only meaningful with FrameReady.
func (s *Synchronizer) Feed(b byte) (Event, Frame) {
	switch s.state {
	case StateIdle:
		if b == Flag {
			s.state = StateSawFlag
		}

		return NeedMore, Frame{}

	case StateSawFlag:
		switch {
		case b == Flag:
			return NeedMore, Frame{}
		case s.acceptAddress(b):
			s.address = b
			s.state = StateSawAddress

			return NeedMore, Frame{}
		default:
			return s.discard(b, fmt.Errorf("%w: address 0x%02X", ErrUnexpectedHeader, b))
		}

	case StateSawAddress:
		if b != Flag && s.acceptControl(b) {
			s.control = b
			s.state = StateSawControl

			return NeedMore, Frame{}
		}

		return s.discard(b, fmt.Errorf("%w: control 0x%02X", ErrUnexpectedHeader, b))

	case StateSawControl:
		// A flag is never a valid header checksum: without stuffing it could
		// not be told apart from a frame boundary.
		if b == Flag || b != s.address^s.control {
			return s.discard(b, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrHeaderChecksum, b, s.address^s.control))
		}

		if s.kind == KindInformation && IsInformation(s.control) {
			s.buf = s.buf[:0]
			s.state = StateAccumulating
		} else {
			s.state = StateAwaitingFlag
		}

		return NeedMore, Frame{}

	case StateAccumulating:
		return s.accumulate(b)

	case StateAwaitingFlag:
		if b != Flag {
			return s.discard(b, ErrBadTerminator)
		}

		return s.complete()

	default:
		s.Reset()

		return NeedMore, Frame{}
	}
}

func (s *Synchronizer) accumulate(b byte) (Event, Frame) {
	if b != Flag {
		s.buf = append(s.buf, b)
		if len(s.buf) <= s.maxPayload {
			return NeedMore, Frame{}
		}

		// Buffer is full: the last byte must be the trailer, verify it now
		// instead of growing past the limit.
		if !s.payloadValid() {
			return s.discard(b, ErrFrameTooLong)
		}
		s.state = StateAwaitingFlag

		return NeedMore, Frame{}
	}

	if len(s.buf) == 0 {
		// FLAG straight after the header checksum: no trailer byte at all.
		return s.discard(b, fmt.Errorf("%w: missing payload checksum", ErrInvalidFrame))
	}

	if !s.payloadValid() {
		return s.discard(b, ErrPayloadChecksum)
	}

	return s.complete()
}

func (s *Synchronizer) payloadValid() bool {
	n := len(s.buf) - 1
	return Checksum(s.buf[:n]...) == s.buf[n]
}

func (s *Synchronizer) complete() (Event, Frame) {
	f := Frame{Address: s.address, Control: s.control}
	if s.kind == KindInformation && IsInformation(s.control) {
		n := len(s.buf) - 1
		f.Payload = make([]byte, n)
		copy(f.Payload, s.buf[:n])
	}

	s.state = StateIdle
	s.err = nil
	s.buf = s.buf[:0]

	return FrameReady, f
}

// discard drops the candidate frame. A flag byte that caused the discard is
// kept as the opening flag of the next frame.
func (s *Synchronizer) discard(b byte, reason error) (Event, Frame) {
	s.err = reason
	s.buf = s.buf[:0]
	if b == Flag {
		s.state = StateSawFlag
	} else {
		s.state = StateIdle
	}

	return Discarded, Frame{}
}

func (s *Synchronizer) acceptAddress(b byte) bool {
	return s.anyAddress || s.addresses[b]
}

func (s *Synchronizer) acceptControl(b byte) bool {
	return s.anyControl || s.controls[b]
}
