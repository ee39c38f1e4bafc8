package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteWait        = 10 * time.Second
	defaultPongWait         = 60 * time.Second
	defaultPingPeriod       = 54 * time.Second
	defaultSendBufferSize   = 256
)

// RateLimitConfig defines rate limiting configuration for outbound frames
type RateLimitConfig struct {
	// MessagesPerSecond defines how many frames can be written per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig returns the default rate limit configuration
// Allows 100 messages per second with burst of 200
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

func (c *RateLimitConfig) limiter() *rate.Limiter {
	if c == nil || !c.Enabled {
		return nil
	}
	return rate.NewLimiter(c.MessagesPerSecond, c.Burst)
}

// TransportConfig holds the knobs of a single connection handle.
//
// Zero durations and sizes fall back to the defaults.
type TransportConfig struct {
	// Dialer used for the handshake. nil means websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// Header is sent with the handshake request.
	Header http.Header
	// HandshakeTimeout bounds dialing.
	HandshakeTimeout time.Duration
	// WriteWait bounds every frame write.
	WriteWait time.Duration
	// PongWait is how long the connection may stay silent.
	PongWait time.Duration
	// PingPeriod is the keepalive ping interval. Must be less than PongWait.
	PingPeriod time.Duration
	// SendBufferSize is the capacity of the outbound queue.
	SendBufferSize int
	// RateLimitConfig throttles outbound frames. nil disables throttling.
	RateLimitConfig *RateLimitConfig
	// Logger receives transport diagnostics. nil means a disabled logger.
	Logger *zerolog.Logger
}

// DefaultTransportConfig returns the default transport configuration
func DefaultTransportConfig() *TransportConfig {
	return &TransportConfig{
		HandshakeTimeout: defaultHandshakeTimeout,
		WriteWait:        defaultWriteWait,
		PongWait:         defaultPongWait,
		PingPeriod:       defaultPingPeriod,
		SendBufferSize:   defaultSendBufferSize,
	}
}

func (c *TransportConfig) withDefaults() TransportConfig {
	out := TransportConfig{}
	if c != nil {
		out = *c
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = defaultHandshakeTimeout
	}
	if out.WriteWait <= 0 {
		out.WriteWait = defaultWriteWait
	}
	if out.PongWait <= 0 {
		out.PongWait = defaultPongWait
	}
	if out.PingPeriod <= 0 || out.PingPeriod >= out.PongWait {
		out.PingPeriod = out.PongWait * 9 / 10
	}
	if out.SendBufferSize <= 0 {
		out.SendBufferSize = defaultSendBufferSize
	}
	if out.Logger == nil {
		nop := zerolog.Nop()
		out.Logger = &nop
	}
	return out
}

func (c *TransportConfig) dialer() *websocket.Dialer {
	d := websocket.DefaultDialer
	if c.Dialer != nil {
		d = c.Dialer
	}
	copied := *d
	copied.HandshakeTimeout = c.HandshakeTimeout
	return &copied
}
