package ws

import (
	"github.com/luciancaetano/kephasrpc"
	"github.com/luciancaetano/kephasrpc/internal/jsonrpc"
	"github.com/luciancaetano/kephasrpc/internal/protocol"
	"github.com/luciancaetano/kephasrpc/internal/websocket"
)

type Config = jsonrpc.Config
type TransportConfig = websocket.TransportConfig
type RateLimitConfig = websocket.RateLimitConfig
type Message = protocol.Message
type Preprocess = jsonrpc.Preprocess
type UnknownNotificationPolicy = jsonrpc.UnknownNotificationPolicy

const (
	DropUnknown = jsonrpc.DropUnknown
	FailUnknown = jsonrpc.FailUnknown
)

// New creates a JSON-RPC client over a single WebSocket connection.
// Nothing is dialed until Open is called.
//
// Parameters:
//   - cfg: The client configuration. nil fields fall back to their defaults;
//     start from NewConfig(url) to get every default explicitly.
//
// Example:
//
//	client := ws.New(ws.NewConfig("ws://localhost:6800/jsonrpc"))
//	client.OnNotify("aria2.onDownloadComplete", func(params json.RawMessage) {
//	    log.Printf("done: %s", params)
//	})
//	if err := client.Open(); err != nil {
//	    log.Fatal(err)
//	}
//	client.Request("aria2.getVersion", nil, func(result json.RawMessage, err *kephasrpc.Error) {
//	    log.Printf("version: %s (%v)", result, err)
//	})
func New(cfg *Config) kephasrpc.RPCClient {
	return jsonrpc.New(cfg)
}

// Dial creates a client for url with the default configuration and opens it
func Dial(url string) (kephasrpc.RPCClient, error) {
	client := New(NewConfig(url))
	if err := client.Open(); err != nil {
		return nil, err
	}
	return client, nil
}

// NewConfig returns the default configuration for url
func NewConfig(url string) *Config {
	return jsonrpc.DefaultConfig(url)
}

// DefaultTransportConfig returns the default connection settings
func DefaultTransportConfig() *TransportConfig {
	return websocket.DefaultTransportConfig()
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
