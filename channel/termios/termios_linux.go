//go:build linux

package termios

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

var baudRates = map[int]uint32{
	1200:    unix.B1200,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	921600:  unix.B921600,
	1000000: unix.B1000000,
}

// Port is a serial device configured for raw byte transfer.
// The previous terminal settings are restored by Close.
type Port struct {
	fd   int
	name string

	mu        sync.Mutex
	saved     *unix.Termios
	current   unix.Termios
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Open opens name without making it the controlling terminal and switches it
// to raw 8N1 at baud. Pending input and output are discarded.
func Open(name string, baud int) (*Port, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	speed, ok := baudRates[baud]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBaudRate, baud)
	}

	fd, err := unix.Open(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("termios: open %s: %w", name, err)
	}

	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("termios: %s is not a terminal: %w", name, err)
	}

	p := &Port{fd: fd, name: name, saved: saved}
	p.current = unix.Termios{
		Cflag:  speed | unix.CS8 | unix.CLOCAL | unix.CREAD,
		Iflag:  unix.IGNPAR,
		Ispeed: speed,
		Ospeed: speed,
	}
	p.current.Cc[unix.VMIN] = 1
	p.current.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("termios: flush %s: %w", name, err)
	}
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &p.current); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("termios: configure %s: %w", name, err)
	}

	return p, nil
}

// Name returns the device path.
func (p *Port) Name() string { return p.name }

// String returns the device path.
func (p *Port) String() string { return "termios:" + p.name }

// SetReadTimeout bounds every subsequent Read, with 100ms resolution.
// A negative value blocks until one byte arrives.
func (p *Port) SetReadTimeout(t time.Duration) error {
	vmin, vtime := readControl(t)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return unix.EBADF
	}
	if p.current.Cc[unix.VMIN] == vmin && p.current.Cc[unix.VTIME] == vtime {
		return nil
	}

	next := p.current
	next.Cc[unix.VMIN] = vmin
	next.Cc[unix.VTIME] = vtime
	if err := unix.IoctlSetTermios(p.fd, unix.TCSETS, &next); err != nil {
		return fmt.Errorf("termios: set timeout: %w", err)
	}
	p.current = next

	return nil
}

// Read reads into b, returning (0, nil) when VTIME elapses with no data.
func (p *Port) Read(b []byte) (int, error) {
	for {
		n, err := unix.Read(p.fd, b)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("termios: read: %w", err)
		}

		return n, nil
	}
}

// Write writes all of b and waits until it has been transmitted.
func (p *Port) Write(b []byte) (int, error) {
	written := 0
	for written < len(b) {
		n, err := unix.Write(p.fd, b[written:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return written, fmt.Errorf("termios: write: %w", err)
		}
		written += n
	}

	// tcdrain
	if err := unix.IoctlSetInt(p.fd, unix.TCSBRK, 1); err != nil && !errors.Is(err, unix.EINTR) {
		return written, fmt.Errorf("termios: drain: %w", err)
	}

	return written, nil
}

// Close restores the original terminal settings and closes the device.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		restoreErr := unix.IoctlSetTermios(p.fd, unix.TCSETS, p.saved)
		closeErr := unix.Close(p.fd)

		switch {
		case closeErr != nil:
			p.closeErr = fmt.Errorf("termios: close %s: %w", p.name, closeErr)
		case restoreErr != nil:
			p.closeErr = fmt.Errorf("termios: restore %s: %w", p.name, restoreErr)
		}
	})

	return p.closeErr
}
