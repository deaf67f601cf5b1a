package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-datalink/frame"
	"github.com/arloliu/go-datalink/logger"
)

// Default protocol parameters.
const (
	DefaultTimeout      = 3 * time.Second
	DefaultMaxRetries   = 3
	DefaultPollInterval = 50 * time.Millisecond
	DefaultMaxPayload   = frame.DefaultMaxPayload
)

// Parameter range limits.
const (
	MinTimeout = 10 * time.Millisecond
	MaxTimeout = 60 * time.Second

	MaxRetryLimit = 31

	MinPollInterval = 1 * time.Millisecond
	MaxPollInterval = 1 * time.Second

	MaxPayloadLimit = 4096
)

// Role selects which end of the link a Link plays.
type Role int

const (
	// Transmitter initiates the link with SET and sends information frames.
	Transmitter Role = iota
	// Receiver answers SET with UA and acknowledges information frames.
	Receiver
)

func (r Role) String() string {
	switch r {
	case Transmitter:
		return "transmitter"
	case Receiver:
		return "receiver"
	default:
		return "unknown"
	}
}

// Address returns the address byte carried by every frame this role issues.
func (r Role) Address() byte {
	if r == Receiver {
		return frame.AddrReceiver
	}

	return frame.AddrTransmitter
}

// Peer returns the opposite role.
func (r Role) Peer() Role {
	if r == Receiver {
		return Transmitter
	}

	return Receiver
}

// ParseRole parses "transmitter"/"tx" or "receiver"/"rx".
func ParseRole(s string) (Role, error) {
	switch s {
	case "transmitter", "tx":
		return Transmitter, nil
	case "receiver", "rx":
		return Receiver, nil
	default:
		return 0, fmt.Errorf("link: unknown role %q", s)
	}
}

// Direction tells a FrameHook whether a frame was written or read.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "RX"
	}

	return "TX"
}

// FrameHook observes every frame written to or recognized on the channel.
// It is called synchronously from the protocol loop and must not block.
type FrameHook func(dir Direction, f frame.Frame, raw []byte)

// Config holds the protocol parameters of a Link.
type Config struct {
	role         Role
	timeout      time.Duration
	maxRetries   int
	pollInterval time.Duration
	maxPayload   int
	frameHook    FrameHook

	logger logger.Logger
}

// NewConfig creates a Config for the transmitter role with default
// parameters, then applies opts in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		role:         Transmitter,
		timeout:      DefaultTimeout,
		maxRetries:   DefaultMaxRetries,
		pollInterval: DefaultPollInterval,
		maxPayload:   DefaultMaxPayload,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Role returns the configured role.
func (cfg *Config) Role() Role { return cfg.role }

// Timeout returns the per-attempt response deadline.
func (cfg *Config) Timeout() time.Duration { return cfg.timeout }

// MaxRetries returns the number of retransmissions allowed after the first send.
func (cfg *Config) MaxRetries() int { return cfg.maxRetries }

// PollInterval returns the upper bound of a single blocking channel read.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// MaxPayload returns the largest payload accepted by Send and Receive.
func (cfg *Config) MaxPayload() int { return cfg.maxPayload }

// RetryBudget returns the total time a peer is given before the link gives up:
// Timeout × (MaxRetries + 1).
func (cfg *Config) RetryBudget() time.Duration {
	return cfg.timeout * time.Duration(cfg.maxRetries+1)
}

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithRole sets the link role. The default is Transmitter.
func WithRole(r Role) Option {
	return optFunc(func(cfg *Config) error {
		if r != Transmitter && r != Receiver {
			return fmt.Errorf("link: invalid role %d", r)
		}
		cfg.role = r

		return nil
	})
}

// WithTimeout sets the per-attempt response deadline, 10ms–60s.
func WithTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("link: timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
		}
		cfg.timeout = d

		return nil
	})
}

// WithMaxRetries sets the number of retransmissions after the first send, 0–31.
func WithMaxRetries(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 || n > MaxRetryLimit {
			return fmt.Errorf("link: max retries %d out of range [0, %d]", n, MaxRetryLimit)
		}
		cfg.maxRetries = n

		return nil
	})
}

// WithPollInterval bounds each blocking channel read, 1ms–1s.
// Smaller values make Close and deadline expiry more responsive.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinPollInterval || d > MaxPollInterval {
			return fmt.Errorf("link: poll interval %v out of range [%v, %v]", d, MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithMaxPayload sets the largest information payload, 1–4096 bytes.
func WithMaxPayload(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 1 || n > MaxPayloadLimit {
			return fmt.Errorf("link: max payload %d out of range [1, %d]", n, MaxPayloadLimit)
		}
		cfg.maxPayload = n

		return nil
	})
}

// WithFrameHook installs an observer for every frame sent or received.
func WithFrameHook(hook FrameHook) Option {
	return optFunc(func(cfg *Config) error {
		cfg.frameHook = hook
		return nil
	})
}

// WithLogger sets the logger for the link.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("link: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
