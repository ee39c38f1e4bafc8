package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/luciancaetano/kephasrpc/ws"
)

// envURL names the variable holding the default server address
const envURL = "KEPHASRPC_URL"

// fileConfig is the layout of the --config YAML file
type fileConfig struct {
	URL               string        `yaml:"url"`
	MaxConcurrent     int           `yaml:"max_concurrent"`
	MaxRetries        *int          `yaml:"max_retries"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	FailUnknown       bool          `yaml:"fail_unknown_notifications"`
	RateLimit         *struct {
		MessagesPerSecond float64 `yaml:"messages_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	fc := &fileConfig{}
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return fc, nil
}

// clientConfig merges the file settings over the defaults. url wins over
// the file, and the file wins over the environment.
func (fc *fileConfig) clientConfig(url string) (*ws.Config, error) {
	if url == "" {
		url = fc.URL
	}
	if url == "" {
		url = os.Getenv(envURL)
	}
	if url == "" {
		return nil, errors.Errorf("no server url: pass --url, set it in the config file or export %s", envURL)
	}

	cfg := ws.NewConfig(url)
	if fc.MaxConcurrent > 0 {
		cfg.MaxConcurrent = fc.MaxConcurrent
	}
	if fc.MaxRetries != nil {
		cfg.MaxRetries = *fc.MaxRetries
	}
	if fc.PollInterval > 0 {
		cfg.PollInterval = fc.PollInterval
	}
	if fc.HeartbeatInterval > 0 {
		cfg.HeartbeatInterval = fc.HeartbeatInterval
	}
	if fc.FailUnknown {
		cfg.UnknownNotifications = ws.FailUnknown
	}
	if fc.RateLimit != nil {
		cfg.Transport.RateLimitConfig = &ws.RateLimitConfig{
			MessagesPerSecond: rate.Limit(fc.RateLimit.MessagesPerSecond),
			Burst:             fc.RateLimit.Burst,
			Enabled:           fc.RateLimit.MessagesPerSecond > 0,
		}
	}
	return cfg, nil
}
