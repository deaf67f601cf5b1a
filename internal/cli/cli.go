// Package cli holds the plumbing shared by the llwrite and llread tools:
// flag parsing on top of a TOML profile, channel selection, logging and
// frame dumps.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-datalink/channel/netconn"
	"github.com/arloliu/go-datalink/channel/serialport"
	"github.com/arloliu/go-datalink/channel/termios"
	"github.com/arloliu/go-datalink/frame"
	"github.com/arloliu/go-datalink/internal/config"
	"github.com/arloliu/go-datalink/link"
	"github.com/arloliu/go-datalink/logger"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitUsage     = 1
	ExitEstablish = 2
	ExitTransfer  = 3
	ExitOpen      = 255
)

// Flags are the command-line settings common to both tools.
type Flags struct {
	ConfigPath string
	Baud       int
	Timeout    time.Duration
	Retries    int
	Backend    string
	Debug      bool
	Stats      bool
}

// Register adds the common flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "TOML profile `file`")
	fs.IntVar(&f.Baud, "baud", 0, "baud rate (default from profile, 38400)")
	fs.DurationVar(&f.Timeout, "timeout", 0, "per-attempt response timeout (default from profile, 3s)")
	fs.IntVar(&f.Retries, "retries", 0, "retransmissions per frame (default from profile, 3)")
	fs.StringVar(&f.Backend, "backend", "", "channel backend: serial, termios or tcp (default from profile, serial)")
	fs.BoolVar(&f.Debug, "debug", false, "log every frame and retransmission")
	fs.BoolVar(&f.Stats, "stats", false, "print link statistics on exit")
}

// Invocation is a parsed command line.
type Invocation struct {
	Device  string
	Profile config.Profile
	Flags   Flags
}

// Parse parses args, requiring exactly one positional argument: the device
// path, or host:port for the tcp backend. On failure it returns the exit code
// to use and ok is false. Usage goes to stdout together with the detected
// serial ports.
func Parse(fs *flag.FlagSet, f *Flags, args []string, stdout io.Writer) (inv Invocation, code int, ok bool) {
	fs.SetOutput(stdout)
	fs.Usage = func() {
		fmt.Fprintf(stdout, "Usage: %s [flags] <device>\n\nExample: %s /dev/ttyS1\n\nFlags:\n", fs.Name(), fs.Name())
		fs.PrintDefaults()
		printPorts(stdout)
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Invocation{}, ExitOK, false
		}

		return Invocation{}, ExitUsage, false
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return Invocation{}, ExitUsage, false
	}

	profile := config.Default()
	if f.ConfigPath != "" {
		var err error
		if profile, err = config.Load(f.ConfigPath); err != nil {
			fmt.Fprintf(stdout, "%s: %v\n", fs.Name(), err)
			return Invocation{}, ExitUsage, false
		}
	}

	// Flags given explicitly override the profile.
	var flagErr error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "baud":
			profile.BaudRate = f.Baud
		case "timeout":
			profile.Timeout = f.Timeout
		case "retries":
			profile.MaxRetries = f.Retries
		case "backend":
			b, err := config.ParseBackend(f.Backend)
			if err != nil {
				flagErr = err
				return
			}
			profile.Backend = b
		}
	})
	if flagErr != nil {
		fmt.Fprintf(stdout, "%s: %v\n", fs.Name(), flagErr)
		return Invocation{}, ExitUsage, false
	}
	if f.Debug {
		profile.LogLevel = logger.DebugLevel
	}

	return Invocation{Device: fs.Arg(0), Profile: profile, Flags: *f}, ExitOK, true
}

func printPorts(w io.Writer) {
	ports, err := serialport.ListPorts()
	if err != nil {
		fmt.Fprintln(w, "\nNo serial ports detected.")
		return
	}

	fmt.Fprintln(w, "\nDetected serial ports:")
	for _, p := range ports {
		fmt.Fprintf(w, "  %s\n", p)
	}
}

// NewLogger builds the tool logger from the profile, writing to w.
func NewLogger(p config.Profile, w io.Writer) logger.Logger {
	if p.LogFormat == config.LogFormatJSON {
		return logger.NewSlogWriter(w, p.LogLevel, false)
	}

	return logger.NewConsole(w, p.LogLevel, false)
}

// OpenChannel opens the channel named by inv for the given role. For the tcp
// backend the transmitter dials and the receiver listens for one connection.
func OpenChannel(ctx context.Context, inv Invocation, role link.Role) (link.Channel, error) {
	var (
		ch  link.Channel
		err error
	)

	switch inv.Profile.Backend {
	case config.BackendTermios:
		ch, err = termios.Open(inv.Device, inv.Profile.BaudRate)
	case config.BackendTCP:
		if role == link.Transmitter {
			ch, err = netconn.Dial(ctx, "tcp", inv.Device)
		} else {
			ch, err = netconn.Accept(ctx, "tcp", inv.Device)
		}
	default:
		ch, err = serialport.Open(inv.Device, inv.Profile.BaudRate)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", link.ErrOpenFailure, err)
	}

	return ch, nil
}

// FrameDumper returns a link.FrameHook printing every frame as a hex dump.
func FrameDumper(w io.Writer) link.FrameHook {
	return func(dir link.Direction, f frame.Frame, raw []byte) {
		fmt.Fprintf(w, "%s %-20s % X\n", dir, f.String(), raw)
	}
}

// Establish opens the channel and the link. On failure it logs the cause
// and returns the exit code: ExitOpen when the device could not be opened,
// ExitEstablish when the handshake failed.
func Establish(ctx context.Context, inv Invocation, role link.Role, log logger.Logger, stdout io.Writer) (*link.Link, int) {
	opts := append(inv.Profile.LinkOptions(),
		link.WithRole(role),
		link.WithLogger(log),
		link.WithFrameHook(FrameDumper(stdout)),
	)
	cfg, err := link.NewConfig(opts...)
	if err != nil {
		log.Error("invalid link configuration", "error", err)
		return nil, ExitUsage
	}

	ch, err := OpenChannel(ctx, inv, role)
	if err != nil {
		log.Error("failed to open channel", "device", inv.Device, "backend", inv.Profile.Backend, "error", err)
		return nil, ExitOpen
	}

	l, err := link.Open(ctx, ch, cfg)
	if err != nil {
		_ = ch.Close()
		log.Error("failed to establish link", "device", inv.Device, "error", err)

		return nil, ExitEstablish
	}

	return l, ExitOK
}

// Finish closes l and prints the statistics when requested.
func Finish(l *link.Link, inv Invocation, log logger.Logger, stdout io.Writer) {
	stats, err := l.CloseWithStatistics()
	if err != nil {
		log.Warn("link closed without a complete disconnect handshake", "error", err)
	}

	if inv.Flags.Stats {
		fmt.Fprintf(stdout, "\nStatistics:\n%s", stats)
	}
}
