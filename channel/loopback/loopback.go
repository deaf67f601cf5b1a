// Package loopback provides an in-memory pair of connected channels with
// fault injection, for exercising the link protocol without hardware.
package loopback

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-datalink/internal/pool"
	"github.com/arloliu/go-datalink/internal/queue"
)

// ErrClosed is returned by operations on a closed Endpoint.
var ErrClosed = errors.New("loopback: endpoint closed")

// Fault rewrites the bytes of one Write call before they reach the peer.
// n is the zero-based index of the Write call on the endpoint. Returning nil
// drops the write entirely.
type Fault func(n int, data []byte) []byte

// pipe is one direction of a Pair.
type pipe struct {
	mu     sync.Mutex
	buf    queue.Queue[byte]
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newPipe() *pipe {
	return &pipe{
		buf:    queue.NewSliceQueue[byte](256),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (p *pipe) push(data []byte) {
	p.mu.Lock()
	p.buf.Enqueue(data...)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *pipe) pop(dst []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.buf.DequeueInto(dst)
	if !p.buf.IsEmpty() {
		// Leave the signal set for the next reader.
		select {
		case p.notify <- struct{}{}:
		default:
		}
	}

	return n
}

func (p *pipe) close() {
	p.once.Do(func() { close(p.done) })
}

func (p *pipe) isClosed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Endpoint is one end of a Pair. It implements link.Channel.
type Endpoint struct {
	name string
	in   *pipe
	out  *pipe

	readTimeout atomic.Int64
	closed      atomic.Bool

	faultMu sync.Mutex
	fault   Fault
	writes  int

	bytesWritten atomic.Uint64
}

// Pair returns two connected endpoints: bytes written to one are read from the other.
func Pair() (*Endpoint, *Endpoint) {
	ab, ba := newPipe(), newPipe()
	a := &Endpoint{name: "a", in: ba, out: ab}
	b := &Endpoint{name: "b", in: ab, out: ba}
	a.readTimeout.Store(-1)
	b.readTimeout.Store(-1)

	return a, b
}

// String returns the endpoint name.
func (e *Endpoint) String() string { return "loopback:" + e.name }

// SetFault installs f for every subsequent Write; nil removes it.
func (e *Endpoint) SetFault(f Fault) {
	e.faultMu.Lock()
	e.fault = f
	e.faultMu.Unlock()
}

// Writes returns how many Write calls the endpoint has seen.
func (e *Endpoint) Writes() int {
	e.faultMu.Lock()
	defer e.faultMu.Unlock()

	return e.writes
}

// BytesWritten returns the number of bytes handed to Write, before faults.
func (e *Endpoint) BytesWritten() uint64 { return e.bytesWritten.Load() }

// SetReadTimeout bounds every subsequent Read. A negative value blocks until
// data arrives; zero returns at once.
func (e *Endpoint) SetReadTimeout(t time.Duration) error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.readTimeout.Store(int64(t))

	return nil
}

// Read returns buffered bytes from the peer. It returns (0, nil) when the read
// timeout elapses and io.EOF once the peer is closed and nothing is left.
func (e *Endpoint) Read(p []byte) (int, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	var timer <-chan time.Time
	switch d := time.Duration(e.readTimeout.Load()); {
	case d > 0:
		t := pool.GetTimer(d)
		defer pool.PutTimer(t)
		timer = t.C
	case d == 0:
		return e.in.pop(p), nil
	}

	for {
		if n := e.in.pop(p); n > 0 {
			return n, nil
		}
		if e.in.isClosed() {
			return 0, io.EOF
		}

		select {
		case <-e.in.notify:
		case <-e.in.done:
		case <-e.out.done:
			return 0, ErrClosed
		case <-timer:
			return e.in.pop(p), nil
		}
	}
}

// Write delivers p to the peer, after the installed Fault if any.
func (e *Endpoint) Write(p []byte) (int, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	if e.in.isClosed() {
		// peer closed
		return 0, io.ErrClosedPipe
	}

	e.faultMu.Lock()
	n := e.writes
	e.writes++
	fault := e.fault
	e.faultMu.Unlock()

	e.bytesWritten.Add(uint64(len(p)))

	data := append([]byte(nil), p...)
	if fault != nil {
		data = fault(n, data)
	}
	if len(data) > 0 {
		e.out.push(data)
	}

	return len(p), nil
}

// Close closes the endpoint. The peer drains what is buffered and then reads io.EOF.
func (e *Endpoint) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	e.out.close()

	return nil
}

// DropWrites returns a Fault that discards the Write calls with the given indexes.
func DropWrites(indexes ...int) Fault {
	drop := make(map[int]bool, len(indexes))
	for _, i := range indexes {
		drop[i] = true
	}

	return func(n int, data []byte) []byte {
		if drop[n] {
			return nil
		}

		return data
	}
}

// DropFirst returns a Fault that discards the first k Write calls.
func DropFirst(k int) Fault {
	return func(n int, data []byte) []byte {
		if n < k {
			return nil
		}

		return data
	}
}

// CorruptByte returns a Fault that XORs byte pos of Write call n with mask.
func CorruptByte(write, pos int, mask byte) Fault {
	return func(n int, data []byte) []byte {
		if n == write && pos < len(data) {
			data[pos] ^= mask
		}

		return data
	}
}

// Chain applies faults in order.
func Chain(faults ...Fault) Fault {
	return func(n int, data []byte) []byte {
		for _, f := range faults {
			if data == nil {
				return nil
			}
			data = f(n, data)
		}

		return data
	}
}
