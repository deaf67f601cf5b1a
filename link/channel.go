package link

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Channel is a bidirectional byte stream with a bounded blocking read.
//
// Read blocks for at most the duration set by SetReadTimeout and returns
// (0, nil) when it elapses with no data. Implementations must be comparable
// (typically a pointer type) since a Channel identifies the Link bound to it.
//
// go.bug.st/serial.Port satisfies this interface.
type Channel interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// bindings maps every channel that currently backs a Link to that Link.
var bindings = xsync.NewMapOf[Channel, *Link]()

func bind(ch Channel, l *Link) error {
	if _, loaded := bindings.LoadOrStore(ch, l); loaded {
		return ErrChannelInUse
	}

	return nil
}

func unbind(ch Channel, l *Link) {
	bindings.Compute(ch, func(cur *Link, loaded bool) (*Link, bool) {
		// only the owner may release the binding
		return cur, !loaded || cur == l
	})
}

// IsBound reports whether ch currently backs a Link.
func IsBound(ch Channel) bool {
	_, ok := bindings.Load(ch)
	return ok
}
