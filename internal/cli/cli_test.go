package cli

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-datalink/frame"
	"github.com/arloliu/go-datalink/internal/config"
	"github.com/arloliu/go-datalink/link"
	"github.com/arloliu/go-datalink/logger"
)

func parse(t *testing.T, args ...string) (Invocation, int, bool, string) {
	t.Helper()

	var (
		f   Flags
		out bytes.Buffer
	)
	fs := flag.NewFlagSet("tool", flag.ContinueOnError)
	f.Register(fs)
	inv, code, ok := Parse(fs, &f, args, &out)

	return inv, code, ok, out.String()
}

func TestParse_Defaults(t *testing.T) {
	inv, code, ok, _ := parse(t, "/dev/ttyS1")
	require.True(t, ok)
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "/dev/ttyS1", inv.Device)
	assert.Equal(t, config.Default(), inv.Profile)
}

func TestParse_FlagsOverrideProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.toml")
	require.NoError(t, os.WriteFile(path, []byte("baud_rate = 9600\nmax_retries = 7\nbackend = \"termios\"\n"), 0o600))

	inv, _, ok, _ := parse(t, "-config", path, "-retries", "2", "-timeout", "250ms", "-debug", "-stats", "/dev/ttyUSB0")
	require.True(t, ok)

	assert.Equal(t, 9600, inv.Profile.BaudRate)
	assert.Equal(t, 2, inv.Profile.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, inv.Profile.Timeout)
	assert.Equal(t, config.BackendTermios, inv.Profile.Backend)
	assert.Equal(t, logger.DebugLevel, inv.Profile.LogLevel)
	assert.True(t, inv.Flags.Stats)
}

func TestParse_Usage(t *testing.T) {
	_, code, ok, out := parse(t)
	assert.False(t, ok)
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, out, "Usage: tool [flags] <device>")
	assert.Contains(t, out, "serial ports")
}

func TestParse_Errors(t *testing.T) {
	_, code, ok, out := parse(t, "-backend", "usb", "/dev/ttyS0")
	assert.False(t, ok)
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, out, "unknown backend")

	_, code, ok, _ = parse(t, "-bogus", "/dev/ttyS0")
	assert.False(t, ok)
	assert.Equal(t, ExitUsage, code)

	_, code, ok, _ = parse(t, "-h")
	assert.False(t, ok)
	assert.Equal(t, ExitOK, code)
}

func TestFrameDumper(t *testing.T) {
	var out bytes.Buffer
	dump := FrameDumper(&out)

	f := frame.Frame{Address: frame.AddrTransmitter, Control: frame.ControlSET}
	dump(link.Outbound, f, f.Bytes())
	assert.Equal(t, "TX SET(a=0x03)          7E 03 03 00 7E\n", out.String())
}

func TestNewLogger(t *testing.T) {
	var out bytes.Buffer
	p := config.Default()
	p.LogFormat = config.LogFormatJSON

	l := NewLogger(p, &out)
	l.Info("hello", "k", 1)
	assert.Contains(t, out.String(), `"msg":"hello"`)

	out.Reset()
	p.LogFormat = config.LogFormatConsole
	NewLogger(p, &out).Info("console")
	assert.Contains(t, out.String(), "console")
}

func TestEstablish_OverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	profile := config.Default()
	profile.Backend = config.BackendTCP
	profile.Timeout = 100 * time.Millisecond
	profile.PollInterval = 2 * time.Millisecond
	inv := Invocation{Device: addr, Profile: profile, Flags: Flags{Stats: true}}
	log := logger.NewSlogWriter(io.Discard, logger.InfoLevel, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		wg          sync.WaitGroup
		rxOut       bytes.Buffer
		received    []byte
		receiverErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		rx, code := Establish(ctx, inv, link.Receiver, log, &rxOut)
		if code != ExitOK {
			receiverErr = assert.AnError
			return
		}
		received, receiverErr = rx.Receive(ctx)
		_, _ = rx.Receive(ctx) // DISC
		Finish(rx, inv, log, &rxOut)
	}()

	var (
		tx   *link.Link
		code int
	)
	require.Eventually(t, func() bool {
		var out bytes.Buffer
		tx, code = Establish(ctx, inv, link.Transmitter, log, &out)
		return code == ExitOK
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, tx.Send(ctx, []byte("over tcp")))

	var txOut bytes.Buffer
	Finish(tx, inv, log, &txOut)
	wg.Wait()

	require.NoError(t, receiverErr)
	assert.Equal(t, []byte("over tcp"), received)
	assert.Contains(t, txOut.String(), "Statistics:")
	assert.Contains(t, rxOut.String(), "RX I0")
}
