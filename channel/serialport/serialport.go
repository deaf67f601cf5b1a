// Package serialport opens serial devices for the link protocol through
// go.bug.st/serial, which works on Linux, macOS and Windows.
package serialport

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the classic 8N1 lab setup.
const DefaultBaudRate = 38400

// ErrNoPorts is returned by ListPorts when no serial device is present.
var ErrNoPorts = errors.New("serialport: no serial ports found")

// Port is an open serial device in raw 8N1 mode.
type Port struct {
	port serial.Port
	name string
}

// Mode returns the line settings used by Open.
func Mode(baud int) *serial.Mode {
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens name at the given baud rate, discarding any stale input.
func Open(name string, baud int) (*Port, error) {
	port, err := serial.Open(name, Mode(baud))
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", name, err)
	}

	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("serialport: flush %s: %w", name, err)
	}

	return &Port{port: port, name: name}, nil
}

// Name returns the device path.
func (p *Port) Name() string { return p.name }

// String returns the device path.
func (p *Port) String() string { return "serial:" + p.name }

// SetReadTimeout bounds every subsequent Read. A negative value blocks.
func (p *Port) SetReadTimeout(t time.Duration) error {
	if t < 0 {
		t = serial.NoTimeout
	}
	if err := p.port.SetReadTimeout(t); err != nil {
		return fmt.Errorf("serialport: set timeout: %w", err)
	}

	return nil
}

// Read reads into p, returning (0, nil) when the read timeout elapses.
// Reads interrupted by a signal are retried.
func (p *Port) Read(b []byte) (int, error) {
	for attempt := 0; ; attempt++ {
		n, err := p.port.Read(b)
		if err != nil && isInterruptedSystemCall(err) && attempt < 3 {
			continue
		}

		return n, err
	}
}

// Write writes b and waits until it has been transmitted.
func (p *Port) Write(b []byte) (int, error) {
	n, err := p.port.Write(b)
	if err != nil {
		return n, err
	}

	if err := p.port.Drain(); err != nil && !isInterruptedSystemCall(err) {
		return n, fmt.Errorf("serialport: drain: %w", err)
	}

	return n, nil
}

// Close closes the device.
func (p *Port) Close() error {
	if err := p.port.Close(); err != nil {
		return fmt.Errorf("serialport: close %s: %w", p.name, err)
	}

	return nil
}

// ListPorts returns the serial devices present on the system, sorted.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialport: list ports: %w", err)
	}
	if len(ports) == 0 {
		return nil, ErrNoPorts
	}
	sort.Strings(ports)

	return ports, nil
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}
