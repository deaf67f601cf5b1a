package frame

import (
	"errors"
	"fmt"
	"strings"
)

// Flag delimits every frame on the wire, both at the start and at the end.
const Flag byte = 0x7E

// Address bytes identify which peer issued a frame.
const (
	// AddrTransmitter marks frames sent by the transmitting (connecting) peer.
	AddrTransmitter byte = 0x03
	// AddrReceiver marks frames sent by the receiving (accepting) peer.
	AddrReceiver byte = 0x01
)

// Control bytes.
//
// Information frames carry the send sequence number Ns in bit 6.
// RR and REJ carry the receive sequence number Nr in bit 7.
const (
	ControlSET  byte = 0x03 // connection request
	ControlUA   byte = 0x07 // unnumbered acknowledgment
	ControlDISC byte = 0x0B // disconnect

	ControlI0 byte = 0x00 // information, Ns = 0
	ControlI1 byte = 0x40 // information, Ns = 1

	ControlRR0 byte = 0x05 // receiver ready, Nr = 0
	ControlRR1 byte = 0x85 // receiver ready, Nr = 1

	ControlREJ0 byte = 0x01 // reject, Nr = 0
	ControlREJ1 byte = 0x81 // reject, Nr = 1
)

const (
	// ControlFrameSize is the wire size of a supervisory or unnumbered frame.
	ControlFrameSize = 5

	// InformationOverhead is the number of non-payload bytes in an information frame.
	InformationOverhead = 6

	// DefaultMaxPayload is the payload limit used when none is configured.
	DefaultMaxPayload = 256
)

var (
	// ErrInvalidFrame is returned (or wrapped) whenever a byte sequence is not a valid frame.
	ErrInvalidFrame = errors.New("frame: invalid frame")

	// ErrHeaderChecksum indicates that BCC1 does not equal address XOR control.
	ErrHeaderChecksum = fmt.Errorf("%w: header checksum mismatch", ErrInvalidFrame)

	// ErrPayloadChecksum indicates that BCC2 does not match the payload.
	ErrPayloadChecksum = fmt.Errorf("%w: payload checksum mismatch", ErrInvalidFrame)

	// ErrBadTerminator indicates that the byte after the checksum was not a flag.
	ErrBadTerminator = fmt.Errorf("%w: malformed terminator", ErrInvalidFrame)

	// ErrUnexpectedHeader indicates an address or control byte that was not expected.
	ErrUnexpectedHeader = fmt.Errorf("%w: unexpected header byte", ErrInvalidFrame)

	// ErrFrameTooLong indicates that the payload exceeded the configured maximum.
	ErrFrameTooLong = fmt.Errorf("%w: payload exceeds maximum length", ErrInvalidFrame)

	// ErrFlagInPayload is returned when a payload cannot be framed without byte stuffing.
	ErrFlagInPayload = errors.New("frame: payload or its checksum contains the flag byte")

	// ErrPayloadTooLarge is returned when a payload exceeds the maximum payload size.
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// Frame is a decoded, validated frame.
//
// Payload is nil for supervisory and unnumbered frames and non-nil (possibly
// empty) for information frames.
type Frame struct {
	Address byte
	Control byte
	Payload []byte
}

// IsInformation reports whether f is an information frame.
func (f Frame) IsInformation() bool {
	return f.Payload != nil
}

// Bytes returns the wire encoding of f. Information frames whose payload
// cannot be framed are encoded anyway; use EncodeInformation to validate.
func (f Frame) Bytes() []byte {
	if !f.IsInformation() {
		return EncodeControl(f.Address, f.Control)
	}

	return appendInformation(make([]byte, 0, len(f.Payload)+InformationOverhead), f.Address, f.Control, f.Payload)
}

// String returns a short human readable description such as "RR1(a=0x01)".
func (f Frame) String() string {
	var sb strings.Builder
	sb.WriteString(ControlName(f.Control))
	fmt.Fprintf(&sb, "(a=0x%02X", f.Address)
	if f.IsInformation() {
		fmt.Fprintf(&sb, " len=%d", len(f.Payload))
	}
	sb.WriteByte(')')

	return sb.String()
}

// Checksum XOR-folds data. The same function produces and verifies both
// the header checksum (over address and control) and the payload checksum.
func Checksum(data ...byte) byte {
	var bcc byte
	for _, b := range data {
		bcc ^= b
	}

	return bcc
}

// EncodeControl builds the 5 byte frame FLAG, A, C, A^C, FLAG.
func EncodeControl(address, control byte) []byte {
	return []byte{Flag, address, control, address ^ control, Flag}
}

// DecodeControl validates a 5 byte control frame and returns its address and control.
func DecodeControl(raw []byte) (address, control byte, err error) {
	if len(raw) != ControlFrameSize {
		return 0, 0, fmt.Errorf("%w: length %d, want %d", ErrInvalidFrame, len(raw), ControlFrameSize)
	}

	if raw[0] != Flag || raw[4] != Flag {
		return 0, 0, fmt.Errorf("%w: missing flag delimiters", ErrInvalidFrame)
	}

	if raw[3] != raw[1]^raw[2] {
		return 0, 0, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrHeaderChecksum, raw[3], raw[1]^raw[2])
	}

	return raw[1], raw[2], nil
}

// EncodeInformation builds FLAG, A, C, A^C, payload..., BCC2, FLAG.
//
// No byte stuffing is performed, so a payload containing the flag value,
// or whose checksum equals the flag value, is rejected with ErrFlagInPayload.
func EncodeInformation(address, control byte, payload []byte, maxPayload int) ([]byte, error) {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}

	if len(payload) > maxPayload {
		return nil, fmt.Errorf("%w: %d bytes, maximum %d", ErrPayloadTooLarge, len(payload), maxPayload)
	}

	for i, b := range payload {
		if b == Flag {
			return nil, fmt.Errorf("%w: offset %d", ErrFlagInPayload, i)
		}
	}

	if Checksum(payload...) == Flag {
		return nil, fmt.Errorf("%w: payload checksum", ErrFlagInPayload)
	}

	return appendInformation(make([]byte, 0, len(payload)+InformationOverhead), address, control, payload), nil
}

func appendInformation(buf []byte, address, control byte, payload []byte) []byte {
	buf = append(buf, Flag, address, control, address^control)
	buf = append(buf, payload...)

	return append(buf, Checksum(payload...), Flag)
}

// DecodeInformation validates a complete information frame.
func DecodeInformation(raw []byte) (Frame, error) {
	if len(raw) < InformationOverhead {
		return Frame{}, fmt.Errorf("%w: length %d, want at least %d", ErrInvalidFrame, len(raw), InformationOverhead)
	}

	last := len(raw) - 1
	if raw[0] != Flag || raw[last] != Flag {
		return Frame{}, fmt.Errorf("%w: missing flag delimiters", ErrInvalidFrame)
	}

	if raw[3] != raw[1]^raw[2] {
		return Frame{}, ErrHeaderChecksum
	}

	payload := raw[4 : last-1]
	if Checksum(payload...) != raw[last-1] {
		return Frame{}, ErrPayloadChecksum
	}

	out := make([]byte, len(payload))
	copy(out, payload)

	return Frame{Address: raw[1], Control: raw[2], Payload: out}, nil
}

// IsInformation reports whether control denotes an information frame.
func IsInformation(control byte) bool {
	return control == ControlI0 || control == ControlI1
}

// InformationControl returns the information control byte for sequence seq (0 or 1).
func InformationControl(seq byte) byte {
	if seq&1 == 0 {
		return ControlI0
	}

	return ControlI1
}

// RRControl returns the receiver-ready control byte acknowledging up to nr.
func RRControl(nr byte) byte {
	if nr&1 == 0 {
		return ControlRR0
	}

	return ControlRR1
}

// REJControl returns the reject control byte requesting retransmission of nr.
func REJControl(nr byte) byte {
	if nr&1 == 0 {
		return ControlREJ0
	}

	return ControlREJ1
}

// Sequence extracts the sequence bit carried by an I, RR or REJ control byte.
func Sequence(control byte) byte {
	switch control {
	case ControlI1, ControlRR1, ControlREJ1:
		return 1
	default:
		return 0
	}
}

// ControlName returns the mnemonic of a control byte.
func ControlName(control byte) string {
	switch control {
	case ControlSET:
		return "SET"
	case ControlUA:
		return "UA"
	case ControlDISC:
		return "DISC"
	case ControlI0:
		return "I0"
	case ControlI1:
		return "I1"
	case ControlRR0:
		return "RR0"
	case ControlRR1:
		return "RR1"
	case ControlREJ0:
		return "REJ0"
	case ControlREJ1:
		return "REJ1"
	default:
		return fmt.Sprintf("C(0x%02X)", control)
	}
}
