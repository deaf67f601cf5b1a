package link

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-datalink/frame"
	"github.com/arloliu/go-datalink/logger"
)

// verdict is a classifier's decision about a frame received during an exchange.
type verdict int

const (
	// verdictIgnore keeps waiting; the frame is not an answer to the request.
	verdictIgnore verdict = iota
	// verdictAccept completes the exchange with the frame.
	verdictAccept
	// verdictResend re-sends the request at once, charging one retry.
	verdictResend
)

type classifier func(frame.Frame) verdict

// transport implements timed, retransmitting frame exchanges over a Channel.
//
// This type is NOT goroutine-safe. The Link serializes every operation with
// its own mutex, consistent with the stop-and-wait nature of the protocol.
type transport struct {
	ch      Channel
	cfg     *Config
	logger  logger.Logger
	metrics *Metrics

	// peer recognizes control frames issued by the other end.
	peer *frame.Synchronizer

	buf         [1]byte
	readTimeout time.Duration
}

func newTransport(ch Channel, cfg *Config, m *Metrics) *transport {
	return &transport{
		ch:      ch,
		cfg:     cfg,
		logger:  cfg.logger,
		metrics: m,
		peer:    frame.NewSynchronizer(frame.KindControl, frame.WithAddresses(cfg.role.Peer().Address())),
	}
}

// --- Low-level I/O helpers ---

// readByte reads at most one byte, blocking for no longer than timeout.
// ok is false when the timeout elapsed with no data.
func (t *transport) readByte(timeout time.Duration) (b byte, ok bool, err error) {
	timeout = max(timeout, time.Millisecond)
	if timeout != t.readTimeout {
		if err := t.ch.SetReadTimeout(timeout); err != nil {
			return 0, false, fmt.Errorf("link: set read timeout: %w", err)
		}
		t.readTimeout = timeout
	}

	n, err := t.ch.Read(t.buf[:])
	if n == 1 {
		return t.buf[0], true, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("link: read: %w", err)
	}

	return 0, false, nil
}

// writeAll writes all bytes in data to the channel.
func (t *transport) writeAll(data []byte) error {
	for written := 0; written < len(data); {
		n, err := t.ch.Write(data[written:])
		written += n

		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}

	return nil
}

func (t *transport) writeFrame(f frame.Frame, raw []byte) error {
	if err := t.writeAll(raw); err != nil {
		return fmt.Errorf("link: write %s: %w", f, err)
	}

	t.metrics.incFramesSent()
	t.observe(Outbound, f, raw)

	return nil
}

// sendControl writes a control frame carrying this end's address.
func (t *transport) sendControl(control byte) error {
	f := frame.Frame{Address: t.cfg.role.Address(), Control: control}

	return t.writeFrame(f, f.Bytes())
}

func (t *transport) observe(dir Direction, f frame.Frame, raw []byte) {
	t.logger.Debug("link: frame "+dir.String(), "frame", f.String(), "bytes", fmt.Sprintf("% X", raw))
	if t.cfg.frameHook != nil {
		t.cfg.frameHook(dir, f, raw)
	}
}

// poll feeds at most one byte to s, waiting no longer than min(PollInterval, remaining).
func (t *transport) poll(s *frame.Synchronizer, remaining time.Duration) (frame.Event, frame.Frame, error) {
	b, ok, err := t.readByte(min(t.cfg.pollInterval, remaining))
	if err != nil {
		return frame.NeedMore, frame.Frame{}, err
	}
	if !ok {
		return frame.NeedMore, frame.Frame{}, nil
	}

	ev, f := s.Feed(b)
	switch ev {
	case frame.FrameReady:
		t.metrics.incFramesReceived()
		t.observe(Inbound, f, f.Bytes())
	case frame.Discarded:
		t.metrics.incFramesRejected()
		t.logger.Debug("link: frame discarded", "reason", s.Err())
	case frame.NeedMore:
	}

	return ev, f, nil
}

// --- Exchanges ---

// exchange writes req and waits for a response accepted by classify.
//
// Each attempt waits Timeout for the answer. The request is re-sent when an
// attempt times out or when classify returns verdictResend, at most MaxRetries
// times; after that ErrTimeout is returned. Ignored frames do not extend the
// running attempt.
func (t *transport) exchange(ctx context.Context, req frame.Frame, raw []byte, classify classifier) (frame.Frame, error) {
	t.peer.Reset()

	if err := t.writeFrame(req, raw); err != nil {
		return frame.Frame{}, err
	}

	retries := 0
	deadline := time.Now().Add(t.cfg.timeout)

	retransmit := func(reason string) error {
		if retries >= t.cfg.maxRetries {
			t.metrics.incTimeouts()
			return fmt.Errorf("%w: %s unanswered after %d retransmissions", ErrTimeout, req, retries)
		}

		retries++
		t.metrics.incRetransmissions()
		t.logger.Debug("link: retransmit",
			"frame", req.String(),
			"retry", retries,
			"maxRetries", t.cfg.maxRetries,
			"reason", reason,
		)

		if err := t.writeFrame(req, raw); err != nil {
			return err
		}
		deadline = time.Now().Add(t.cfg.timeout)

		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return frame.Frame{}, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if err := retransmit("timeout"); err != nil {
				return frame.Frame{}, err
			}

			continue
		}

		ev, f, err := t.poll(t.peer, remaining)
		if err != nil {
			return frame.Frame{}, err
		}
		if ev != frame.FrameReady {
			continue
		}

		switch classify(f) {
		case verdictAccept:
			return f, nil
		case verdictResend:
			if err := retransmit("rejected"); err != nil {
				return frame.Frame{}, err
			}
		case verdictIgnore:
			t.logger.Debug("link: ignoring frame",
				"request", req.String(),
				"error", fmt.Errorf("%w: %s", ErrUnexpectedFrame, f),
			)
		}
	}
}

// await waits up to d for a frame accepted by classify, without sending anything.
func (t *transport) await(ctx context.Context, s *frame.Synchronizer, d time.Duration, classify classifier) (frame.Frame, error) {
	s.Reset()
	deadline := time.Now().Add(d)

	for {
		if err := ctx.Err(); err != nil {
			return frame.Frame{}, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.metrics.incTimeouts()
			return frame.Frame{}, fmt.Errorf("%w: nothing accepted within %v", ErrTimeout, d)
		}

		ev, f, err := t.poll(s, remaining)
		if err != nil {
			return frame.Frame{}, err
		}
		if ev == frame.FrameReady && classify(f) == verdictAccept {
			return f, nil
		}
	}
}

// expect returns a classifier accepting exactly the given control byte.
func expect(control byte) classifier {
	return func(f frame.Frame) verdict {
		if !f.IsInformation() && f.Control == control {
			return verdictAccept
		}

		return verdictIgnore
	}
}
