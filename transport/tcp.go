// Package transport provides the socket transports that drive pipelines.
// A transport owns the connection I/O: it feeds inbound bytes and lifecycle
// events into the front of a pipeline, and its Adapter handler turns
// outbound pipeline writes back into socket writes. The pipeline core
// itself performs no I/O.
package transport

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/orian/wangle/pipeline"
)

// Receiver is the inbound surface a transport drives. Any pipeline whose
// inbound message type is []byte satisfies it.
type Receiver interface {
	Read(msg []byte) error
	ReadEOF() error
	ReadException(err error) error
	TransportActive()
	TransportInactive()
	GetWriteFlags() pipeline.WriteFlags
	GetReadBufferSettings() pipeline.ReadBufferSettings
}

// Option configures a TCP transport
type Option func(*TCP)

// WithReadTimeout sets the per-read deadline. Zero disables it.
func WithReadTimeout(timeout time.Duration) Option {
	return func(t *TCP) {
		t.readTimeout = timeout
	}
}

// WithWriteTimeout sets the per-write deadline. Zero disables it.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(t *TCP) {
		t.writeTimeout = timeout
	}
}

// WithSendQueueSize sets the size of the asynchronous send queue.
func WithSendQueueSize(size int) Option {
	return func(t *TCP) {
		t.sendQueueSize = size
	}
}

// WithLogger sets the logger for transport events.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *TCP) {
		t.logger = logger
	}
}

// sendRequest couples an outbound payload with its completion future.
type sendRequest struct {
	data []byte
	fut  *pipeline.Future
}

// transportIDCounter generates unique transport IDs
var transportIDCounter int64

// TCP drives one pipeline from one stream connection. Inbound bytes are
// read in chunks sized by the pipeline's read buffer settings and delivered
// through Receiver.Read; writes are queued and sent by a dedicated
// goroutine, fulfilling each write's future once the socket accepted the
// bytes.
type TCP struct {
	id       string
	conn     net.Conn
	receiver Receiver
	logger   zerolog.Logger

	mu           sync.RWMutex
	readTimeout  time.Duration
	writeTimeout time.Duration

	sendQueueSize int
	sendChan      chan sendRequest
	done          chan struct{}

	started int32
	closed  int32
	wg      sync.WaitGroup

	bytesRead    int64
	bytesWritten int64
}

// NewTCP wraps an established connection. Bind a pipeline and call Start to
// begin reading.
func NewTCP(conn net.Conn, opts ...Option) *TCP {
	t := &TCP{
		id:            fmt.Sprintf("tcp-%d", atomic.AddInt64(&transportIDCounter, 1)),
		conn:          conn,
		logger:        zerolog.New(os.Stderr).With().Timestamp().Logger(),
		sendQueueSize: 256,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.sendChan = make(chan sendRequest, t.sendQueueSize)
	return t
}

// ID returns the transport ID
func (t *TCP) ID() string {
	return t.id
}

// LocalAddr returns the local address
func (t *TCP) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// RemoteAddr returns the remote address
func (t *TCP) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// Bind attaches the pipeline the transport feeds. It must be called before
// Start.
func (t *TCP) Bind(r Receiver) {
	t.receiver = r
}

// Start announces the transport to the pipeline and begins the read and
// send loops.
func (t *TCP) Start() error {
	if t.receiver == nil {
		return ErrNotBound
	}
	if !atomic.CompareAndSwapInt32(&t.started, 0, 1) {
		return ErrAlreadyStarted
	}

	// WriteFlagCork asks for aggregated packets, which maps to disabling
	// TCP_NODELAY.
	if tc, ok := t.conn.(*net.TCPConn); ok {
		nodelay := t.receiver.GetWriteFlags()&pipeline.WriteFlagCork == 0
		if err := tc.SetNoDelay(nodelay); err != nil {
			t.logger.Warn().Err(err).Str("transport", t.id).Msg("failed to set TCP_NODELAY")
		}
	}

	t.receiver.TransportActive()

	t.wg.Add(2)
	go t.sendLoop()
	go t.readLoop()
	return nil
}

// Write queues data for sending and returns a future fulfilled once the
// socket accepted the bytes. When the queue is full, Write blocks until
// space frees up or the transport closes.
func (t *TCP) Write(data []byte) *pipeline.Future {
	fut := pipeline.NewFuture()
	if t.isClosed() {
		fut.Complete(ErrTransportClosed)
		return fut
	}
	select {
	case t.sendChan <- sendRequest{data: data, fut: fut}:
		// The send loop may have drained the queue and exited between the
		// closed check and the enqueue. Re-check and drain so the request
		// cannot be stranded with a pending future.
		select {
		case <-t.done:
			t.drainSendQueue()
		default:
		}
	case <-t.done:
		fut.Complete(ErrTransportClosed)
	}
	return fut
}

// Close shuts the transport down. Queued but unsent writes fail with
// ErrTransportClosed. Close is idempotent.
func (t *TCP) Close() error {
	if !atomic.CompareAndSwapInt32(&t.closed, 0, 1) {
		return nil
	}
	close(t.done)
	return t.conn.Close()
}

// Wait blocks until the read and send loops have exited.
func (t *TCP) Wait() {
	t.wg.Wait()
}

// SetReadTimeout sets the per-read deadline
func (t *TCP) SetReadTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readTimeout = timeout
}

// SetWriteTimeout sets the per-write deadline
func (t *TCP) SetWriteTimeout(timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeTimeout = timeout
}

// Statistics holds transfer counters for a transport
type Statistics struct {
	TransportID  string `json:"transport_id"`
	BytesRead    int64  `json:"bytes_read"`
	BytesWritten int64  `json:"bytes_written"`
	RemoteAddr   string `json:"remote_addr"`
	LocalAddr    string `json:"local_addr"`
}

// GetStatistics returns transfer counters for the transport
func (t *TCP) GetStatistics() Statistics {
	return Statistics{
		TransportID:  t.id,
		BytesRead:    atomic.LoadInt64(&t.bytesRead),
		BytesWritten: atomic.LoadInt64(&t.bytesWritten),
		RemoteAddr:   t.conn.RemoteAddr().String(),
		LocalAddr:    t.conn.LocalAddr().String(),
	}
}

// isClosed checks if the transport is closed
func (t *TCP) isClosed() bool {
	return atomic.LoadInt32(&t.closed) != 0
}

// readLoop feeds inbound bytes and stream termination into the pipeline.
// The pipeline's read buffer settings size the chunks: buffers are at
// least MinAvailable bytes, allocated in AllocationSize units.
func (t *TCP) readLoop() {
	defer t.wg.Done()

	settings := t.receiver.GetReadBufferSettings()
	size := settings.AllocationSize
	if size < settings.MinAvailable {
		size = settings.MinAvailable
	}
	buf := make([]byte, size)

	for {
		t.mu.RLock()
		readTimeout := t.readTimeout
		t.mu.RUnlock()
		if readTimeout > 0 {
			if err := t.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
				break
			}
		}

		n, err := t.conn.Read(buf)
		if n > 0 {
			atomic.AddInt64(&t.bytesRead, int64(n))
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if rerr := t.receiver.Read(chunk); rerr != nil {
				t.logger.Error().Err(rerr).Str("transport", t.id).Msg("pipeline rejected inbound data")
				break
			}
		}
		if err != nil {
			if err == io.EOF {
				t.receiver.ReadEOF()
			} else if !t.isClosed() {
				t.receiver.ReadException(err)
			}
			break
		}
	}

	t.Close()
	t.receiver.TransportInactive()
}

// sendLoop performs the socket writes and fulfills write futures.
func (t *TCP) sendLoop() {
	defer t.wg.Done()

	for {
		select {
		case req := <-t.sendChan:
			err := t.sendDirect(req.data)
			req.fut.Complete(err)
			if err != nil {
				t.logger.Warn().Err(err).Str("transport", t.id).Msg("send failed, closing transport")
				t.Close()
				t.drainSendQueue()
				return
			}
		case <-t.done:
			t.drainSendQueue()
			return
		}
	}
}

// drainSendQueue fails all queued writes after shutdown.
func (t *TCP) drainSendQueue() {
	for {
		select {
		case req := <-t.sendChan:
			req.fut.Complete(ErrTransportClosed)
		default:
			return
		}
	}
}

// sendDirect writes data to the socket in full.
func (t *TCP) sendDirect(data []byte) error {
	t.mu.RLock()
	writeTimeout := t.writeTimeout
	t.mu.RUnlock()

	if writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	total := 0
	for total < len(data) {
		n, err := t.conn.Write(data[total:])
		if n > 0 {
			total += n
			atomic.AddInt64(&t.bytesWritten, int64(n))
		}
		if err != nil {
			return fmt.Errorf("failed to write data: %w", err)
		}
	}
	return nil
}
