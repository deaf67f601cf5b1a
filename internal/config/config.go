// Package config loads the TOML profile shared by the llwrite and llread tools.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/arloliu/go-datalink/link"
	"github.com/arloliu/go-datalink/logger"
)

// Channel backends selectable from a profile.
const (
	BackendSerial  = "serial"
	BackendTermios = "termios"
	BackendTCP     = "tcp"
)

// Log output formats.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Profile holds the tool settings. Zero values are never produced by Load:
// keys absent from the file keep their defaults.
type Profile struct {
	BaudRate     int
	Timeout      time.Duration
	MaxRetries   int
	PollInterval time.Duration
	MaxPayload   int
	Backend      string
	LogLevel     logger.Level
	LogFormat    string
}

type fileConfig struct {
	BaudRate     int    `toml:"baud_rate"`
	Timeout      string `toml:"timeout"`
	MaxRetries   int    `toml:"max_retries"`
	PollInterval string `toml:"poll_interval"`
	MaxPayload   int    `toml:"max_payload"`
	Backend      string `toml:"backend"`
	LogLevel     string `toml:"log_level"`
	LogFormat    string `toml:"log_format"`
}

// Default returns the built-in profile: 38400 baud over go.bug.st/serial,
// 3s timeout, 3 retries.
func Default() Profile {
	return Profile{
		BaudRate:     38400,
		Timeout:      link.DefaultTimeout,
		MaxRetries:   link.DefaultMaxRetries,
		PollInterval: link.DefaultPollInterval,
		MaxPayload:   link.DefaultMaxPayload,
		Backend:      BackendSerial,
		LogLevel:     logger.InfoLevel,
		LogFormat:    LogFormatConsole,
	}
}

// Load reads a TOML profile from path on top of Default.
func Load(path string) (Profile, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}

	return apply(Default(), raw, meta)
}

// Decode parses a TOML profile from a string on top of Default.
func Decode(data string) (Profile, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}

	return apply(Default(), raw, meta)
}

func apply(p Profile, raw fileConfig, meta toml.MetaData) (Profile, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Profile{}, fmt.Errorf("unknown profile key %q", undecoded[0].String())
	}

	if meta.IsDefined("baud_rate") {
		if raw.BaudRate <= 0 {
			return Profile{}, fmt.Errorf("baud_rate must be positive, got %d", raw.BaudRate)
		}
		p.BaudRate = raw.BaudRate
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Profile{}, fmt.Errorf("parse timeout: %w", err)
		}
		p.Timeout = d
	}

	if meta.IsDefined("max_retries") {
		p.MaxRetries = raw.MaxRetries
	}

	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return Profile{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		p.PollInterval = d
	}

	if meta.IsDefined("max_payload") {
		p.MaxPayload = raw.MaxPayload
	}

	if meta.IsDefined("backend") {
		b, err := ParseBackend(raw.Backend)
		if err != nil {
			return Profile{}, err
		}
		p.Backend = b
	}

	if meta.IsDefined("log_level") {
		lvl, err := logger.ParseLevel(strings.TrimSpace(raw.LogLevel))
		if err != nil {
			return Profile{}, err
		}
		p.LogLevel = lvl
	}

	if meta.IsDefined("log_format") {
		switch f := strings.ToLower(strings.TrimSpace(raw.LogFormat)); f {
		case LogFormatJSON, LogFormatConsole:
			p.LogFormat = f
		default:
			return Profile{}, fmt.Errorf("unknown log_format %q", raw.LogFormat)
		}
	}

	return p, nil
}

// ParseBackend normalizes a backend name.
func ParseBackend(name string) (string, error) {
	switch b := strings.ToLower(strings.TrimSpace(name)); b {
	case BackendSerial, BackendTermios, BackendTCP:
		return b, nil
	default:
		return "", fmt.Errorf("unknown backend %q", name)
	}
}

// LinkOptions converts the protocol settings into link options. Range checks
// happen in link.NewConfig.
func (p Profile) LinkOptions() []link.Option {
	return []link.Option{
		link.WithTimeout(p.Timeout),
		link.WithMaxRetries(p.MaxRetries),
		link.WithPollInterval(p.PollInterval),
		link.WithMaxPayload(p.MaxPayload),
	}
}
