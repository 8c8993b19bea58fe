package network

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds outbound calls when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Config holds settings for outbound HTTP clients, e.g. the remote signer.
type Config struct {
	TimeoutMs    int  `json:"timeout_ms"`
	DelayEnabled bool `json:"delay_enabled"`
	MinDelayMs   int  `json:"min_delay_ms"` // Minimum injected latency in milliseconds
	MaxDelayMs   int  `json:"max_delay_ms"` // Maximum injected latency in milliseconds
}

// Timeout returns the configured timeout or DefaultTimeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// NewHTTPClient creates an HTTP client with optional injected latency, used
// to rehearse slow signer endpoints.
func NewHTTPClient(config Config) *http.Client {
	transport := http.DefaultTransport

	if config.DelayEnabled {
		transport = NewDelayedRoundTripper(transport, DelayConfig{
			Enabled:  true,
			MinDelay: time.Duration(config.MinDelayMs) * time.Millisecond,
			MaxDelay: time.Duration(config.MaxDelayMs) * time.Millisecond,
		})
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout(),
	}
}
