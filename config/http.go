package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// MaxConnections caps concurrently accepted connections. Stream subscribers
	// hold a connection for as long as they stay subscribed.
	MaxConnections int `env:"HTTP_MAX_CONNECTIONS" envDefault:"1024"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`

	// MaxBodyBytes bounds JSON request bodies, including webhook deliveries.
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`

	// StreamHeartbeat is the interval between keep-alive comments on the status stream.
	StreamHeartbeat time.Duration `env:"HTTP_STREAM_HEARTBEAT" envDefault:"25s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.MaxConnections < 16 {
		h.MaxConnections = 16
	}
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 10 * time.Second
	}
	if h.MaxBodyBytes < 1024 {
		h.MaxBodyBytes = 1024
	}
	if h.StreamHeartbeat < time.Second {
		h.StreamHeartbeat = time.Second
	}
}
