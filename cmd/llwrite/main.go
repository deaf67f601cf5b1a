// Command llwrite opens a data link as the transmitter on a serial device,
// sends a message and closes the link.
//
// Usage:
//
//	llwrite [flags] <device>
//
// Exit status is 0 on success, 1 on usage errors, 2 when the link could not
// be established, 3 when a frame was not acknowledged and 255 when the device
// could not be opened.
package main

import (
	"context"
	"flag"
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
		flags   cli.Flags
		message string
		count   int
	)

	fs := flag.NewFlagSet("llwrite", flag.ContinueOnError)
	flags.Register(fs)
	fs.StringVar(&message, "message", "Hello, link!", "payload of each information frame")
	fs.IntVar(&count, "count", 1, "number of times the message is sent")

	inv, code, ok := cli.Parse(fs, &flags, args, stdout)
	if !ok {
		return code
	}

	log := cli.NewLogger(inv.Profile, stderr)
	logger.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, code := cli.Establish(ctx, inv, link.Transmitter, log, stdout)
	if l == nil {
		return code
	}
	log.Info("link established", "device", inv.Device)

	code = cli.ExitOK
	for i := 0; i < count; i++ {
		if err := l.Send(ctx, []byte(message)); err != nil {
			log.Error("send failed", "frame", i, "error", err)
			code = cli.ExitTransfer

			break
		}
	}

	cli.Finish(l, inv, log, stdout)

	return code
}
