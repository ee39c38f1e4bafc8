package jsonrpc

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/luciancaetano/kephasrpc/internal/protocol"
	"github.com/luciancaetano/kephasrpc/internal/websocket"
)

const (
	// DefaultMaxConcurrent is the default ceiling of outstanding non-forced requests
	DefaultMaxConcurrent = 8
	// DefaultMaxRetries is the default number of readiness polls a request may wait
	DefaultMaxRetries = 3
	// DefaultPollInterval is the default delay between readiness polls
	DefaultPollInterval = 1000 * time.Millisecond
	// DefaultHeartbeatInterval is the default delay between heartbeat probes
	DefaultHeartbeatInterval = 15000 * time.Millisecond
)

// UnknownNotificationPolicy decides what happens to a notification nobody
// registered a notifier for.
type UnknownNotificationPolicy int

const (
	// DropUnknown ignores the notification
	DropUnknown UnknownNotificationPolicy = iota
	// FailUnknown treats the notification as a malformed frame and closes the
	// connection
	FailUnknown
)

func (p UnknownNotificationPolicy) String() string {
	switch p {
	case DropUnknown:
		return "drop"
	case FailUnknown:
		return "fail"
	default:
		return "unknown"
	}
}

// Preprocess rewrites every decoded inbound message before it is routed.
// Returning nil drops the message.
type Preprocess func(msg *protocol.Message) *protocol.Message

// Config holds the client configuration
type Config struct {
	// URL is the WebSocket address, e.g. ws://localhost:6800/jsonrpc
	URL string
	// MaxConcurrent caps outstanding non-forced requests. Values below 1 mean
	// DefaultMaxConcurrent.
	MaxConcurrent int
	// MaxRetries is how many readiness polls a request may go through before
	// it is abandoned. A negative value disables the budget.
	MaxRetries int
	// PollInterval is the delay between readiness polls.
	PollInterval time.Duration
	// HeartbeatInterval is the delay between heartbeat probes.
	HeartbeatInterval time.Duration
	// UnknownNotifications is the policy for unregistered notification methods.
	UnknownNotifications UnknownNotificationPolicy
	// Preprocess, when set, sees every inbound message first.
	Preprocess Preprocess
	// Transport configures each connection handle. nil means the defaults.
	Transport *websocket.TransportConfig
	// Logger receives client diagnostics. nil derives a logger from the global
	// zerolog logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default client configuration for url
func DefaultConfig(url string) *Config {
	return &Config{
		URL:               url,
		MaxConcurrent:     DefaultMaxConcurrent,
		MaxRetries:        DefaultMaxRetries,
		PollInterval:      DefaultPollInterval,
		HeartbeatInterval: DefaultHeartbeatInterval,
		Transport:         websocket.DefaultTransportConfig(),
	}
}

func (c *Config) withDefaults() Config {
	out := Config{MaxRetries: DefaultMaxRetries}
	if c != nil {
		out = *c
	}
	if out.MaxConcurrent < 1 {
		out.MaxConcurrent = DefaultMaxConcurrent
	}
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if out.Transport == nil {
		out.Transport = websocket.DefaultTransportConfig()
	}
	return out
}
