package link

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-datalink/channel/loopback"
	"github.com/arloliu/go-datalink/frame"
	"github.com/arloliu/go-datalink/logger"
)

const (
	testTimeout    = 50 * time.Millisecond
	testMaxRetries = 3
	testPoll       = 2 * time.Millisecond
)

func testConfig(t *testing.T, role Role, opts ...Option) *Config {
	t.Helper()

	base := []Option{
		WithRole(role),
		WithTimeout(testTimeout),
		WithMaxRetries(testMaxRetries),
		WithPollInterval(testPoll),
		WithLogger(logger.NewSlogWriter(io.Discard, logger.DebugLevel, false)),
	}
	cfg, err := NewConfig(append(base, opts...)...)
	require.NoError(t, err)

	return cfg
}

type pairResult struct {
	tx, rx     *Link
	txEP, rxEP *loopback.Endpoint
}

// openPair establishes a transmitter and a receiver over a loopback pair.
// setup runs on the endpoints before either side opens.
func openPair(t *testing.T, txOpts, rxOpts []Option, setup func(txEP, rxEP *loopback.Endpoint)) pairResult {
	t.Helper()

	txEP, rxEP := loopback.Pair()
	if setup != nil {
		setup(txEP, rxEP)
	}

	type result struct {
		l   *Link
		err error
	}
	rxCh := make(chan result, 1)
	go func() {
		l, err := Open(context.Background(), rxEP, testConfig(t, Receiver, rxOpts...))
		rxCh <- result{l, err}
	}()

	tx, err := Open(context.Background(), txEP, testConfig(t, Transmitter, txOpts...))
	require.NoError(t, err)

	rx := <-rxCh
	require.NoError(t, rx.err)

	return pairResult{tx: tx, rx: rx.l, txEP: txEP, rxEP: rxEP}
}

// closePair closes both ends concurrently so the handshakes can meet.
func closePair(t *testing.T, p pairResult) (Statistics, Statistics) {
	t.Helper()

	var wg sync.WaitGroup
	var txStats, rxStats Statistics
	wg.Add(2)
	go func() {
		defer wg.Done()
		txStats, _ = p.tx.CloseWithStatistics()
	}()
	go func() {
		defer wg.Done()
		rxStats, _ = p.rx.CloseWithStatistics()
	}()
	wg.Wait()

	return txStats, rxStats
}

// receiveAll collects payloads from rx until the transmitter disconnects.
func receiveAll(rx *Link) <-chan [][]byte {
	out := make(chan [][]byte, 1)
	go func() {
		var got [][]byte
		for {
			payload, err := rx.Receive(context.Background())
			if err != nil {
				out <- got
				return
			}
			got = append(got, payload)
		}
	}()

	return out
}

// fakePeer plays the far end of a link from a raw loopback endpoint.
// respond is called for every valid frame and returns raw bytes to write back.
type fakePeer struct {
	ep      *loopback.Endpoint
	respond func(f frame.Frame) [][]byte

	mu     sync.Mutex
	frames []frame.Frame

	done chan struct{}
	wg   sync.WaitGroup
}

func startFakePeer(t *testing.T, ep *loopback.Endpoint, respond func(f frame.Frame) [][]byte) *fakePeer {
	t.Helper()

	p := &fakePeer{ep: ep, respond: respond, done: make(chan struct{})}
	require.NoError(t, ep.SetReadTimeout(5*time.Millisecond))

	p.wg.Add(1)
	go p.run()
	t.Cleanup(p.stop)

	return p
}

func (p *fakePeer) run() {
	defer p.wg.Done()

	s := frame.NewSynchronizer(frame.KindInformation)
	buf := make([]byte, 64)
	for {
		select {
		case <-p.done:
			return
		default:
		}

		n, err := p.ep.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			ev, f := s.Feed(b)
			if ev != frame.FrameReady {
				continue
			}

			p.mu.Lock()
			p.frames = append(p.frames, f)
			p.mu.Unlock()

			for _, raw := range p.respond(f) {
				if _, err := p.ep.Write(raw); err != nil && !errors.Is(err, io.ErrClosedPipe) {
					return
				}
			}
		}
	}
}

func (p *fakePeer) stop() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	p.wg.Wait()
}

// seen returns the frames received so far.
func (p *fakePeer) seen() []frame.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]frame.Frame(nil), p.frames...)
}

// uaResponder answers every SET with UA and ignores everything else.
func uaResponder(f frame.Frame) [][]byte {
	if f.Control == frame.ControlSET {
		return [][]byte{frame.EncodeControl(frame.AddrReceiver, frame.ControlUA)}
	}

	return nil
}

var errInjectedWrite = errors.New("injected write failure")

// failingWriteChannel wraps a Channel and fails exactly one Write call,
// selected by its one-based index.
type failingWriteChannel struct {
	Channel

	failAt int

	mu     sync.Mutex
	writes int
}

func (c *failingWriteChannel) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.writes++
	n := c.writes
	c.mu.Unlock()

	if n == c.failAt {
		return 0, errInjectedWrite
	}

	return c.Channel.Write(p)
}
