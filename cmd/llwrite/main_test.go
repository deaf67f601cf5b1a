package main

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-datalink/internal/cli"
)

func TestRun_MissingDevice(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(nil, &stdout, &stderr)
	assert.Equal(t, cli.ExitUsage, code)
	assert.Contains(t, stdout.String(), "Usage: llwrite [flags] <device>")
	assert.Contains(t, stdout.String(), "-message")
}

func TestRun_TooManyArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"/dev/ttyS0", "/dev/ttyS1"}, &stdout, &stderr)
	assert.Equal(t, cli.ExitUsage, code)
}

func TestRun_OpenFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"/dev/does-not-exist-datalink"}, &stdout, &stderr)
	assert.Equal(t, cli.ExitOpen, code)
	assert.Contains(t, stderr.String(), "failed to open channel")
}

func TestRun_EstablishmentFailure(t *testing.T) {
	// A peer that accepts the connection but never answers SET.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			defer c.Close()
			_, _ = c.Read(make([]byte, 1024))
		}
	}()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-backend", "tcp", "-timeout", "20ms", "-retries", "1", ln.Addr().String()}, &stdout, &stderr)
	assert.Equal(t, cli.ExitEstablish, code)
	assert.Contains(t, stdout.String(), "TX SET")
	assert.Contains(t, stdout.String(), "7E 03 03 00 7E")
}

func TestRun_BadBackend(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"-backend", "usb", "/dev/ttyS0"}, &stdout, &stderr)
	assert.Equal(t, cli.ExitUsage, code)
	assert.Contains(t, stdout.String(), "unknown backend")
}
