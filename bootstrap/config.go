// Package bootstrap provides the connection acceptance and dialing
// machinery around transport-backed pipelines. A Server accepts
// connections, asks a pipeline.Factory for one finalized pipeline per
// connection, and tracks the live pipelines in a Group that controls their
// destruction; a Client does the same for a single dialed connection.
package bootstrap

import (
	"fmt"
	"time"
)

// Config holds the knobs for servers and clients
type Config struct {
	// Address is the listening or dialing address
	Address string

	// Port is the listening port
	Port int

	// MaxConnections limits concurrently served connections. Zero means
	// unlimited.
	MaxConnections int

	// ReadTimeout is the per-read deadline applied to transports
	ReadTimeout time.Duration

	// WriteTimeout is the per-write deadline applied to transports
	WriteTimeout time.Duration

	// KeepAlive enables TCP keep-alive
	KeepAlive bool

	// KeepAliveInterval is the keep-alive interval
	KeepAliveInterval time.Duration

	// ConnectTimeout bounds client dialing
	ConnectTimeout time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Address:           "0.0.0.0",
		Port:              8080,
		MaxConnections:    1000,
		KeepAlive:         true,
		KeepAliveInterval: 60 * time.Second,
		ConnectTimeout:    10 * time.Second,
	}
}

// ListenAddress returns the address:port string to listen on
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}
