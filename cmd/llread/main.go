// Command llread waits for a transmitter on a serial device, prints every
// payload it receives and exits when the transmitter disconnects.
//
// Usage:
//
//	llread [flags] <device>
//
// Exit status is 0 on success, 1 on usage errors, 2 when no transmitter
// connected within the retry budget, 3 when the link failed while receiving
// and 255 when the device could not be opened.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/arloliu/go-datalink/internal/cli"
	"github.com/arloliu/go-datalink/link"
	"github.com/arloliu/go-datalink/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		flags cli.Flags
		limit int
	)

	fs := flag.NewFlagSet("llread", flag.ContinueOnError)
	flags.Register(fs)
	fs.IntVar(&limit, "max", 0, "stop after this many payloads (0: until the transmitter disconnects)")

	inv, code, ok := cli.Parse(fs, &flags, args, stdout)
	if !ok {
		return code
	}

	log := cli.NewLogger(inv.Profile, stderr)
	logger.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, code := cli.Establish(ctx, inv, link.Receiver, log, stdout)
	if l == nil {
		return code
	}
	log.Info("link established", "device", inv.Device)

	code = cli.ExitOK
	for n := 0; limit == 0 || n < limit; n++ {
		payload, err := l.Receive(ctx)
		if errors.Is(err, io.EOF) {
			log.Info("transmitter disconnected")
			break
		}
		if err != nil {
			log.Error("receive failed", "error", err)
			code = cli.ExitTransfer

			break
		}

		fmt.Fprintf(stdout, "payload %d (%d bytes):\n%s", n, len(payload), hex.Dump(payload))
	}

	cli.Finish(l, inv, log, stdout)

	return code
}
