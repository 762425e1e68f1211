// Package bootstrap provides the connection acceptance and dialing
// machinery around transport-backed pipelines.
package bootstrap

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/orian/wangle/pipeline"
	"github.com/orian/wangle/transport"
)

// Client dials a TCP connection and builds its pipeline through a
// pipeline.Factory. One client drives one connection at a time.
type Client[P Pipe] struct {
	config  *Config
	factory pipeline.Factory[P]
	group   *Group
	logger  zerolog.Logger

	mu        sync.Mutex
	pipe      P
	tr        *transport.TCP
	connected bool
}

// NewClient creates a client from a configuration and a pipeline factory.
// Nil config means DefaultConfig.
func NewClient[P Pipe](config *Config, factory pipeline.Factory[P]) *Client[P] {
	if config == nil {
		config = DefaultConfig()
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "client").Logger()
	return &Client[P]{
		config:  config,
		factory: factory,
		group:   NewGroup(logger),
		logger:  logger,
	}
}

// SetLogger replaces the client's logger. Call before Connect.
func (c *Client[P]) SetLogger(logger zerolog.Logger) {
	c.logger = logger
	c.group.logger = logger
}

// Connect dials the address, builds the pipeline and starts the transport.
// The returned pipeline is live: its handlers have already seen
// TransportActive by the time Connect returns.
func (c *Client[P]) Connect(address string) (P, error) {
	var zero P

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return zero, ErrAlreadyConnected
	}

	conn, err := net.DialTimeout("tcp", address, c.config.ConnectTimeout)
	if err != nil {
		return zero, fmt.Errorf("dial %s: %w", address, err)
	}
	configureKeepAlive(conn, c.config)

	tr := transport.NewTCP(conn,
		transport.WithReadTimeout(c.config.ReadTimeout),
		transport.WithWriteTimeout(c.config.WriteTimeout),
		transport.WithLogger(c.logger),
	)

	p, err := c.factory.NewPipeline(tr)
	if err != nil {
		conn.Close()
		return zero, fmt.Errorf("build pipeline: %w", err)
	}
	p.Base().SetTransport(tr)
	c.group.Add(p, tr)

	tr.Bind(p)
	if err := tr.Start(); err != nil {
		c.group.DeletePipeline(p.Base())
		return zero, fmt.Errorf("start transport: %w", err)
	}

	c.pipe = p
	c.tr = tr
	c.connected = true

	c.logger.Info().Str("address", address).Str("transport", tr.ID()).Msg("connected")
	return p, nil
}

// Pipeline returns the live pipeline, or the zero value when disconnected
func (c *Client[P]) Pipeline() P {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipe
}

// Transport returns the live transport, or nil when disconnected
func (c *Client[P]) Transport() *transport.TCP {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tr
}

// IsConnected reports whether a connection is established
func (c *Client[P]) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Disconnect closes the transport and destroys the pipeline
func (c *Client[P]) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}

	if err := c.tr.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("transport close")
	}
	c.tr.Wait()
	c.group.DeletePipeline(c.pipe.Base())

	var zero P
	c.pipe = zero
	c.tr = nil
	c.connected = false

	c.logger.Info().Msg("disconnected")
	return nil
}
