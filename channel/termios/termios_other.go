//go:build !linux

package termios

import "time"

// Port is unavailable on this platform.
type Port struct{}

// Open always fails with ErrUnsupported; use the serialport backend instead.
func Open(_ string, _ int) (*Port, error) { return nil, ErrUnsupported }

func (*Port) Name() string { return "" }
func (*Port) String() string { return "termios:unsupported" }
func (*Port) SetReadTimeout(_ time.Duration) error { return ErrUnsupported }
func (*Port) Read(_ []byte) (int, error) { return 0, ErrUnsupported }
func (*Port) Write(_ []byte) (int, error) { return 0, ErrUnsupported }
func (*Port) Close() error { return ErrUnsupported }
