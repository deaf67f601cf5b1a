// Package termios opens serial devices through raw POSIX terminal settings:
// non-canonical 8N1, receiver enabled, modem lines ignored, and reads bounded
// by the VTIME inter-byte timer.
package termios

import (
	"errors"
	"time"
)

// DefaultBaudRate is used when Open is given a non-positive rate.
const DefaultBaudRate = 38400

// ErrUnsupported is returned on platforms without termios support.
var ErrUnsupported = errors.New("termios: not supported on this platform")

// ErrBaudRate is returned for rates the kernel has no constant for.
var ErrBaudRate = errors.New("termios: unsupported baud rate")

// readControl converts a read timeout to the VMIN/VTIME pair.
//
// VTIME counts tenths of a second, so positive timeouts round up to at least
// one tick and are capped at 255 ticks. A negative timeout blocks for one byte.
func readControl(t time.Duration) (vmin, vtime uint8) {
	switch {
	case t < 0:
		return 1, 0
	case t == 0:
		return 0, 0
	}

	ticks := (t + 100*time.Millisecond - 1) / (100 * time.Millisecond)

	return 0, uint8(min(ticks, 255))
}
