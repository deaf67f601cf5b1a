package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-datalink/frame"
	"github.com/arloliu/go-datalink/internal/syncutil"
	"github.com/arloliu/go-datalink/logger"
)

// Link is an established connection between a transmitter and a receiver
// over one Channel.
//
// A Link owns its Channel from a successful Open until Close, which also
// closes the Channel. Send, Receive and Close may be called from different
// goroutines; exchanges are serialized.
type Link struct {
	cfg    *Config
	ch     Channel
	logger logger.Logger
	tr     *transport

	// info recognizes information and control frames from the transmitter.
	info *frame.Synchronizer

	state   AtomicState
	mu      syncutil.Mutex
	ctx     context.Context //nolint:containedctx // cancelled by Close to unblock in-flight exchanges
	cancel  context.CancelFunc
	metrics Metrics

	release  sync.Once
	released chan struct{} // closed once the channel has been let go

	ns byte // sequence number of the next information frame (transmitter)
	nr byte // sequence number expected next (receiver)

	establishment time.Duration
	openedAt      time.Time
	closedAt      atomic.Int64
}

// Open establishes a link over ch.
//
// A transmitter sends SET and waits for UA, re-sending SET on every Timeout
// up to MaxRetries times. A receiver waits up to Timeout × (MaxRetries+1) for
// SET and answers with UA. A nil cfg selects the transmitter defaults.
//
// On failure the returned error wraps ErrEstablishmentFailed and ch is left
// open for the caller to close.
func Open(ctx context.Context, ch Channel, cfg *Config) (*Link, error) {
	if ch == nil {
		return nil, ErrChannelNil
	}

	if cfg == nil {
		var err error
		if cfg, err = NewConfig(); err != nil {
			return nil, err
		}
	}

	l := &Link{
		cfg:    cfg,
		ch:     ch,
		logger: cfg.logger.With("role", cfg.role.String()),
	}
	l.tr = newTransport(ch, cfg, &l.metrics)
	l.tr.logger = l.logger
	l.info = frame.NewSynchronizer(frame.KindInformation,
		frame.WithAddresses(frame.AddrTransmitter),
		frame.WithMaxPayload(cfg.maxPayload),
	)
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.released = make(chan struct{})

	if err := bind(ch, l); err != nil {
		return nil, err
	}

	l.state.ToConnecting()
	l.logger.Debug("link: connecting", "timeout", cfg.timeout, "maxRetries", cfg.maxRetries)

	start := time.Now()

	var err error
	if cfg.role == Transmitter {
		err = l.connect(ctx)
	} else {
		err = l.accept(ctx)
	}

	if err != nil {
		l.state.AbortConnecting()
		l.cancel()
		unbind(ch, l)
		l.logger.Warn("link: establishment failed", "error", err)

		return nil, fmt.Errorf("%w: %w", ErrEstablishmentFailed, err)
	}

	l.establishment = time.Since(start)
	l.openedAt = time.Now()
	l.state.ToOpen()
	l.logger.Info("link: established", "elapsed", l.establishment)

	return l, nil
}

func (l *Link) connect(ctx context.Context) error {
	set := frame.Frame{Address: frame.AddrTransmitter, Control: frame.ControlSET}
	_, err := l.tr.exchange(ctx, set, set.Bytes(), expect(frame.ControlUA))

	return err
}

func (l *Link) accept(ctx context.Context) error {
	if _, err := l.tr.await(ctx, l.tr.peer, l.cfg.RetryBudget(), expect(frame.ControlSET)); err != nil {
		return err
	}

	return l.tr.sendControl(frame.ControlUA)
}

// Role returns the role the link was opened with.
func (l *Link) Role() Role { return l.cfg.role }

// State returns the current protocol state.
func (l *Link) State() State { return l.state.Get() }

// Config returns the link configuration.
func (l *Link) Config() *Config { return l.cfg }

// Metrics returns the live counters of the link.
func (l *Link) Metrics() *Metrics { return &l.metrics }

// Statistics returns a snapshot of the link counters.
func (l *Link) Statistics() Statistics {
	s := l.metrics.snapshot()
	s.Establishment = l.establishment

	if !l.openedAt.IsZero() {
		end := time.Now()
		if closed := l.closedAt.Load(); closed != 0 {
			end = time.Unix(0, closed)
		}
		s.Uptime = end.Sub(l.openedAt)
	}

	return s
}

// Send transmits payload as one information frame and waits for its
// acknowledgment. It is only valid for the transmitter.
//
// The frame is re-sent on every Timeout and on REJ, at most MaxRetries times;
// then ErrTimeout is returned. A duplicate RR for the previous frame is ignored.
func (l *Link) Send(ctx context.Context, payload []byte) error {
	if err := l.checkUsable(Transmitter); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.state.IsOpen() {
		return ErrLinkClosed
	}

	if payload == nil {
		payload = []byte{}
	}

	req := frame.Frame{Address: frame.AddrTransmitter, Control: frame.InformationControl(l.ns), Payload: payload}
	raw, err := frame.EncodeInformation(req.Address, req.Control, payload, l.cfg.maxPayload)
	if err != nil {
		return err
	}

	ack := frame.RRControl(l.ns ^ 1)
	stale := frame.RRControl(l.ns)
	rej := frame.REJControl(l.ns)

	ctx, done := l.opContext(ctx)
	defer done()

	_, err = l.tr.exchange(ctx, req, raw, func(f frame.Frame) verdict {
		switch f.Control {
		case ack:
			return verdictAccept
		case rej:
			return verdictResend
		case stale:
			l.logger.Debug("link: duplicate acknowledgment ignored", "frame", f.String())
		}

		return verdictIgnore
	})
	if err != nil {
		return l.opError(err)
	}

	l.ns ^= 1
	l.metrics.addPayloadSent(len(payload))

	return nil
}

// Receive waits for the next new information frame and returns its payload.
// It is only valid for the receiver.
//
// Every valid information frame is acknowledged with RR; a retransmitted
// frame is acknowledged again but not delivered twice. A frame with a corrupt
// payload is answered with REJ. A retransmitted SET is answered with UA.
//
// When the transmitter disconnects, Receive completes the DISC handshake,
// closes the link and returns io.EOF. If no valid frame arrives within
// Timeout × (MaxRetries+1), ErrTimeout is returned.
func (l *Link) Receive(ctx context.Context) ([]byte, error) {
	if err := l.checkUsable(Receiver); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.state.IsOpen() {
		return nil, ErrLinkClosed
	}

	ctx, done := l.opContext(ctx)
	defer done()

	budget := l.cfg.RetryBudget()
	deadline := time.Now().Add(budget)

	for {
		if err := ctx.Err(); err != nil {
			return nil, l.opError(err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			l.metrics.incTimeouts()
			return nil, fmt.Errorf("%w: no frame from transmitter within %v", ErrTimeout, budget)
		}

		ev, f, err := l.tr.poll(l.info, remaining)
		if err != nil {
			return nil, l.opError(err)
		}

		switch ev {
		case frame.Discarded:
			if err := l.rejectCorrupted(); err != nil {
				return nil, l.opError(err)
			}

		case frame.FrameReady:
			deadline = time.Now().Add(budget)

			payload, delivered, err := l.handleInbound(f)
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			if err != nil {
				return nil, l.opError(err)
			}
			if delivered {
				return payload, nil
			}

		case frame.NeedMore:
		}
	}
}

func (l *Link) handleInbound(f frame.Frame) ([]byte, bool, error) {
	switch {
	case f.IsInformation():
		if frame.Sequence(f.Control) != l.nr {
			l.metrics.incDuplicatesReceived()
			l.logger.Debug("link: duplicate frame acknowledged again", "frame", f.String())

			return nil, false, l.tr.sendControl(frame.RRControl(l.nr))
		}

		l.nr ^= 1
		l.metrics.addPayloadReceived(len(f.Payload))

		// The payload is accepted once nr moves. A lost RR is recovered when
		// the retransmitted frame takes the duplicate path above.
		if err := l.tr.sendControl(frame.RRControl(l.nr)); err != nil {
			l.logger.Warn("link: acknowledgment not sent", "frame", f.String(), "error", err)
		}

		return f.Payload, true, nil

	case f.Control == frame.ControlSET:
		// The transmitter never saw our UA.
		return nil, false, l.tr.sendControl(frame.ControlUA)

	case f.Control == frame.ControlDISC:
		l.state.ToClosing()
		if err := l.replyDisconnect(context.Background()); err != nil {
			l.logger.Warn("link: disconnect handshake incomplete", "error", err)
		}
		if err := l.releaseChannel(); err != nil {
			l.logger.Warn("link: release channel", "error", err)
		}

		return nil, false, io.EOF

	default:
		l.logger.Debug("link: frame ignored", "error", fmt.Errorf("%w: %s", ErrUnexpectedFrame, f))
		return nil, false, nil
	}
}

// rejectCorrupted answers an information frame whose payload failed its checksum.
func (l *Link) rejectCorrupted() error {
	if !errors.Is(l.info.Err(), frame.ErrPayloadChecksum) {
		return nil
	}

	_, control := l.info.Header()
	if frame.Sequence(control) != l.nr {
		// Corrupted copy of a frame already delivered.
		return l.tr.sendControl(frame.RRControl(l.nr))
	}

	l.metrics.incRejectsSent()

	return l.tr.sendControl(frame.REJControl(l.nr))
}

// replyDisconnect answers a DISC with DISC and waits for the final UA.
func (l *Link) replyDisconnect(ctx context.Context) error {
	disc := frame.Frame{Address: frame.AddrReceiver, Control: frame.ControlDISC}
	_, err := l.tr.exchange(ctx, disc, disc.Bytes(), func(f frame.Frame) verdict {
		switch f.Control {
		case frame.ControlUA:
			return verdictAccept
		case frame.ControlDISC:
			// Our DISC was lost and the transmitter is asking again.
			return verdictResend
		}

		return verdictIgnore
	})

	return err
}

// Close releases the link. See CloseWithStatistics.
func (l *Link) Close() error {
	_, err := l.CloseWithStatistics()
	return err
}

// CloseWithStatistics runs the disconnect handshake, closes the channel and
// returns the final statistics.
//
// The transmitter sends DISC, waits for the receiver's DISC and answers UA.
// The receiver waits for the transmitter's DISC and answers it. The handshake
// is best-effort and bounded by the retry budget: the link always ends Closed
// and a handshake failure is only reported through the returned error.
//
// Close cancels any in-flight Send or Receive. Closing a closed link is a
// no-op that returns nil. A Close that finds another close, or a DISC from
// the transmitter, already in progress waits for it to finish.
func (l *Link) CloseWithStatistics() (Statistics, error) {
	if !l.state.ToClosing() {
		if !l.state.IsClosed() {
			<-l.released
		}

		return l.Statistics(), nil
	}

	l.cancel()

	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if l.cfg.role == Transmitter {
		err = l.disconnect(context.Background())
	} else {
		err = l.awaitDisconnect(context.Background())
	}
	if err != nil {
		l.logger.Warn("link: disconnect handshake incomplete", "error", err)
	}

	if cerr := l.releaseChannel(); cerr != nil && err == nil {
		err = cerr
	}

	return l.Statistics(), err
}

func (l *Link) disconnect(ctx context.Context) error {
	disc := frame.Frame{Address: frame.AddrTransmitter, Control: frame.ControlDISC}
	if _, err := l.tr.exchange(ctx, disc, disc.Bytes(), expect(frame.ControlDISC)); err != nil {
		return err
	}

	return l.tr.sendControl(frame.ControlUA)
}

func (l *Link) awaitDisconnect(ctx context.Context) error {
	if _, err := l.tr.await(ctx, l.info, l.cfg.RetryBudget(), expect(frame.ControlDISC)); err != nil {
		return err
	}

	return l.replyDisconnect(ctx)
}

// releaseChannel moves the link to Closed, unbinds and closes the channel.
func (l *Link) releaseChannel() error {
	var err error
	l.release.Do(func() {
		l.closedAt.Store(time.Now().UnixNano())
		l.state.ToClosed()
		l.cancel()
		unbind(l.ch, l)

		if cerr := l.ch.Close(); cerr != nil {
			err = fmt.Errorf("link: close channel: %w", cerr)
		}
		l.logger.Info("link: closed")
		close(l.released)
	})

	return err
}

func (l *Link) checkUsable(role Role) error {
	if l == nil || l.cfg == nil {
		return ErrNotOpen
	}
	if l.cfg.role != role {
		return ErrWrongRole
	}

	switch l.state.Get() {
	case StateOpen:
		return nil
	case StateConnecting:
		return ErrNotOpen
	default:
		return ErrLinkClosed
	}
}

// opContext derives a context that is also cancelled when the link is closed.
func (l *Link) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(l.ctx, cancel)

	return ctx, func() {
		stop()
		cancel()
	}
}

// opError reports exchanges aborted by Close as ErrLinkClosed.
func (l *Link) opError(err error) error {
	if l.ctx.Err() != nil && !errors.Is(err, ErrLinkClosed) {
		return fmt.Errorf("%w: %w", ErrLinkClosed, err)
	}

	return err
}
