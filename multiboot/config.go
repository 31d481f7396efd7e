package multiboot

import (
	"time"

	"gbalink/link"
)

// Config holds the timing and retry budget of a session.
type Config struct {
	// Timeout bounds every read of a reply word.
	Timeout time.Duration

	// HandshakeAttempts is the number of sync words sent before giving up.
	HandshakeAttempts int
	// HandshakeDelay is slept between sync attempts.
	HandshakeDelay time.Duration
	// HeaderRetries is the number of extra reads per header halfword.
	HeaderRetries int
	// KeyAttempts bounds each exchange of the key phase.
	KeyAttempts int
	// PayloadRetries is the number of extra reads per payload word.
	PayloadRetries int
	// FinalizeAttempts bounds each exchange of the final phase.
	FinalizeAttempts int

	Voltage link.Voltage

	// HardwareAlignment pads images the way the BIOS loader requires
	// (multiple of 16 bytes, at least 0x1C0) instead of to a word boundary.
	HardwareAlignment bool

	// ProgressInterval is the number of payload bytes between progress events.
	ProgressInterval int

	Metrics *Metrics
	Sink    func(Event)
}

func DefaultConfig() Config {
	return Config{
		Timeout:           50 * time.Millisecond,
		HandshakeAttempts: 64,
		// the BIOS polls once per frame; a 1/16s spacing lines up with that:
		HandshakeDelay:   62500 * time.Microsecond,
		HeaderRetries:    8,
		KeyAttempts:      64,
		PayloadRetries:   8,
		FinalizeAttempts: 64,
		Voltage:          link.Voltage3V3,
		ProgressInterval: 0x2000,
	}
}

type Option func(*Config)

// WithConfig replaces the whole configuration; options after it still apply.
func WithConfig(c Config) Option {
	return func(cfg *Config) {
		*cfg = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

func WithHandshakeAttempts(n int, delay time.Duration) Option {
	return func(c *Config) {
		c.HandshakeAttempts = n
		c.HandshakeDelay = delay
	}
}

func WithHeaderRetries(n int) Option {
	return func(c *Config) {
		c.HeaderRetries = n
	}
}

func WithKeyAttempts(n int) Option {
	return func(c *Config) {
		c.KeyAttempts = n
	}
}

func WithPayloadRetries(n int) Option {
	return func(c *Config) {
		c.PayloadRetries = n
	}
}

func WithFinalizeAttempts(n int) Option {
	return func(c *Config) {
		c.FinalizeAttempts = n
	}
}

func WithVoltage(v link.Voltage) Option {
	return func(c *Config) {
		c.Voltage = v
	}
}

func WithHardwareAlignment(enabled bool) Option {
	return func(c *Config) {
		c.HardwareAlignment = enabled
	}
}

func WithProgressInterval(n int) Option {
	return func(c *Config) {
		c.ProgressInterval = n
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithEventSink receives every report event as it is appended.
func WithEventSink(sink func(Event)) Option {
	return func(c *Config) {
		c.Sink = sink
	}
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.HandshakeAttempts < 1 {
		c.HandshakeAttempts = 1
	}
	if c.HeaderRetries < 0 {
		c.HeaderRetries = 0
	}
	if c.KeyAttempts < 1 {
		c.KeyAttempts = 1
	}
	if c.PayloadRetries < 0 {
		c.PayloadRetries = 0
	}
	if c.FinalizeAttempts < 1 {
		c.FinalizeAttempts = 1
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = def.ProgressInterval
	}
}

func (c *Config) alignment() (align, minSize int) {
	if c.HardwareAlignment {
		return hardwareAlign, hardwareMinSize
	}
	return 4, 0
}
