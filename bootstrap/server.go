// Package bootstrap provides the connection acceptance and dialing
// machinery around transport-backed pipelines.
package bootstrap

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/orian/wangle/pipeline"
	"github.com/orian/wangle/transport"
)

// Server accepts TCP connections and builds one pipeline per connection
// through a pipeline.Factory. Accepted pipelines are registered in a Group,
// which acts as their manager; when a connection's transport stops, the
// server removes the pipeline through that group.
type Server[P Pipe] struct {
	config  *Config
	factory pipeline.Factory[P]
	group   *Group
	logger  zerolog.Logger

	listener net.Listener
	running  int32
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	startTime      time.Time
	totalAccepted  int64
	totalRejected  int64
	acceptFailures int64
}

// ServerStatistics is a snapshot of server counters
type ServerStatistics struct {
	Address            string
	Running            bool
	Uptime             time.Duration
	CurrentConnections int
	TotalAccepted      int64
	TotalRejected      int64
	AcceptFailures     int64
}

// String returns a human-readable form of the statistics
func (s ServerStatistics) String() string {
	return fmt.Sprintf("Server[%s] running=%v uptime=%v connections=%d accepted=%d rejected=%d acceptFailures=%d",
		s.Address, s.Running, s.Uptime.Round(time.Second),
		s.CurrentConnections, s.TotalAccepted, s.TotalRejected, s.AcceptFailures)
}

// NewServer creates a server from a configuration and a pipeline factory.
// Nil config means DefaultConfig.
func NewServer[P Pipe](config *Config, factory pipeline.Factory[P]) *Server[P] {
	if config == nil {
		config = DefaultConfig()
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "server").Logger()
	return &Server[P]{
		config:  config,
		factory: factory,
		group:   NewGroup(logger),
		logger:  logger,
	}
}

// SetLogger replaces the server's logger. Call before Start.
func (s *Server[P]) SetLogger(logger zerolog.Logger) {
	s.logger = logger
	s.group.logger = logger
}

// Start begins listening and accepting connections
func (s *Server[P]) Start() error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.ListenAddress())
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress(), err)
	}

	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.startTime = time.Now()

	s.logger.Info().Str("address", listener.Addr().String()).Msg("server started")

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener, waits for the accept loop and tears down all
// live connections.
func (s *Server[P]) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.cancel()
	if err := s.listener.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("listener close")
	}
	s.group.CloseAll()
	s.wg.Wait()

	s.logger.Info().Msg("server stopped")
	return nil
}

// IsRunning reports whether the server is accepting connections
func (s *Server[P]) IsRunning() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// Addr returns the listener address, or nil before Start. Useful when the
// configured port is 0.
func (s *Server[P]) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Group returns the server's connection group
func (s *Server[P]) Group() *Group {
	return s.group
}

// GetStatistics returns a snapshot of the server counters
func (s *Server[P]) GetStatistics() ServerStatistics {
	stats := ServerStatistics{
		Running:            s.IsRunning(),
		CurrentConnections: s.group.Count(),
		TotalAccepted:      atomic.LoadInt64(&s.totalAccepted),
		TotalRejected:      atomic.LoadInt64(&s.totalRejected),
		AcceptFailures:     atomic.LoadInt64(&s.acceptFailures),
	}
	if s.listener != nil {
		stats.Address = s.listener.Addr().String()
	}
	if stats.Running {
		stats.Uptime = time.Since(s.startTime)
	}
	return stats
}

func (s *Server[P]) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			atomic.AddInt64(&s.acceptFailures, 1)
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}

		if s.config.MaxConnections > 0 && s.group.Count() >= s.config.MaxConnections {
			atomic.AddInt64(&s.totalRejected, 1)
			s.logger.Warn().
				Str("remote", conn.RemoteAddr().String()).
				Int("limit", s.config.MaxConnections).
				Msg("connection limit reached, rejecting")
			conn.Close()
			continue
		}

		if err := s.serveConn(conn); err != nil {
			s.logger.Error().Err(err).
				Str("remote", conn.RemoteAddr().String()).
				Msg("connection setup failed")
			conn.Close()
			continue
		}

		atomic.AddInt64(&s.totalAccepted, 1)
	}
}

// serveConn wraps an accepted socket in a transport, asks the factory for
// a pipeline and starts the transport loops. On success the connection is
// registered with the group and reaped when its transport stops.
func (s *Server[P]) serveConn(conn net.Conn) error {
	configureKeepAlive(conn, s.config)

	tr := transport.NewTCP(conn,
		transport.WithReadTimeout(s.config.ReadTimeout),
		transport.WithWriteTimeout(s.config.WriteTimeout),
		transport.WithLogger(s.logger),
	)

	p, err := s.factory.NewPipeline(tr)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	p.Base().SetTransport(tr)

	s.group.Add(p, tr)

	tr.Bind(p)
	if err := tr.Start(); err != nil {
		s.group.DeletePipeline(p.Base())
		return fmt.Errorf("start transport: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		tr.Wait()
		s.group.DeletePipeline(p.Base())
	}()

	return nil
}

// configureKeepAlive applies the keep-alive settings to TCP sockets
func configureKeepAlive(conn net.Conn, config *Config) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	tcpConn.SetKeepAlive(config.KeepAlive)
	if config.KeepAlive && config.KeepAliveInterval > 0 {
		tcpConn.SetKeepAlivePeriod(config.KeepAliveInterval)
	}
}
