package link

import "errors"

// Sentinel errors for the data-link protocol.
var (
	// Channel errors.
	ErrOpenFailure  = errors.New("link: channel could not be opened")
	ErrChannelInUse = errors.New("link: channel already bound to an open link")
	ErrChannelNil   = errors.New("link: channel is nil")

	// Exchange errors.
	ErrTimeout         = errors.New("link: retransmission budget exhausted")
	ErrUnexpectedFrame = errors.New("link: unexpected frame")

	// Connection-level errors.
	ErrEstablishmentFailed = errors.New("link: connection establishment failed")
	ErrLinkClosed          = errors.New("link: link closed")
	ErrNotOpen             = errors.New("link: link is not open")
	ErrWrongRole           = errors.New("link: operation not permitted for this role")
)
