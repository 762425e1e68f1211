// Package transport provides tests for the TCP transport and adapter
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/orian/wangle/pipeline"
)

// chanSink terminates the inbound chain and reports events on channels so
// tests can wait for asynchronous delivery.
type chanSink struct {
	pipeline.InboundHandlerAdapter
	msgs   chan []byte
	events chan string
}

func newChanSink() *chanSink {
	return &chanSink{
		msgs:   make(chan []byte, 16),
		events: make(chan string, 16),
	}
}

func (s *chanSink) Read(ctx pipeline.InboundContext, msg any) {
	s.msgs <- msg.([]byte)
}

func (s *chanSink) ReadEOF(ctx pipeline.InboundContext) {
	s.events <- "eof"
}

func (s *chanSink) ReadException(ctx pipeline.InboundContext, err error) {
	s.events <- "exception"
}

func (s *chanSink) TransportActive(ctx pipeline.InboundContext) {
	s.events <- "active"
}

func (s *chanSink) TransportInactive(ctx pipeline.InboundContext) {
	s.events <- "inactive"
}

func waitEvent(t *testing.T, events <-chan string, want string) {
	t.Helper()
	select {
	case got := <-events:
		if got != want {
			t.Fatalf("Expected event %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for event %q", want)
	}
}

// newBoundTransport wires a transport-backed pipeline over one end of an
// in-memory connection.
func newBoundTransport(t *testing.T, conn net.Conn) (*TCP, *chanSink) {
	t.Helper()
	tr := NewTCP(conn, WithLogger(zerolog.Nop()))
	sink := newChanSink()
	p := pipeline.New[[]byte, []byte](pipeline.WithLogger(zerolog.Nop()))
	p.AddBack(NewAdapter(tr))
	p.AddBack(sink)
	p.Finalize()
	p.SetTransport(tr)
	tr.Bind(p)
	if err := tr.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return tr, sink
}

func TestTCPTransport(t *testing.T) {
	t.Run("StartRequiresBinding", func(t *testing.T) {
		local, remote := net.Pipe()
		defer local.Close()
		defer remote.Close()

		tr := NewTCP(local, WithLogger(zerolog.Nop()))
		if err := tr.Start(); !errors.Is(err, ErrNotBound) {
			t.Errorf("Expected ErrNotBound, got %v", err)
		}
	})

	t.Run("InboundDelivery", func(t *testing.T) {
		local, remote := net.Pipe()
		defer remote.Close()

		tr, sink := newBoundTransport(t, local)
		defer tr.Close()
		waitEvent(t, sink.events, "active")

		go remote.Write([]byte("inbound bytes"))

		select {
		case got := <-sink.msgs:
			if !bytes.Equal(got, []byte("inbound bytes")) {
				t.Errorf("Expected inbound bytes, got %q", got)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for inbound delivery")
		}
	})

	t.Run("OutboundThroughAdapter", func(t *testing.T) {
		local, remote := net.Pipe()
		defer remote.Close()

		tr, sink := newBoundTransport(t, local)
		defer tr.Close()
		waitEvent(t, sink.events, "active")

		received := make(chan []byte, 1)
		go func() {
			buf := make([]byte, 64)
			n, err := remote.Read(buf)
			if err == nil {
				received <- buf[:n]
			}
		}()

		fut := tr.Write([]byte("outbound bytes"))
		if err := fut.Wait(waitCtx(t)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		select {
		case got := <-received:
			if !bytes.Equal(got, []byte("outbound bytes")) {
				t.Errorf("Expected outbound bytes, got %q", got)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for outbound delivery")
		}

		stats := tr.GetStatistics()
		if stats.BytesWritten != int64(len("outbound bytes")) {
			t.Errorf("Expected %d bytes written, got %d", len("outbound bytes"), stats.BytesWritten)
		}
	})

	t.Run("PeerCloseFiresEOFAndInactive", func(t *testing.T) {
		local, remote := net.Pipe()

		tr, sink := newBoundTransport(t, local)
		defer tr.Close()
		waitEvent(t, sink.events, "active")

		remote.Close()

		// net.Pipe reports io.EOF on peer close.
		waitEvent(t, sink.events, "eof")
		waitEvent(t, sink.events, "inactive")
	})

	t.Run("WriteAfterClose", func(t *testing.T) {
		local, remote := net.Pipe()
		defer remote.Close()

		tr, sink := newBoundTransport(t, local)
		waitEvent(t, sink.events, "active")

		tr.Close()
		tr.Wait()

		fut := tr.Write([]byte("late"))
		if err := fut.Err(); !errors.Is(err, ErrTransportClosed) {
			t.Errorf("Expected ErrTransportClosed, got %v", err)
		}
	})

	t.Run("WritesDuringCloseAlwaysComplete", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			local, remote := net.Pipe()
			go io.Copy(io.Discard, remote)

			tr, sink := newBoundTransport(t, local)
			waitEvent(t, sink.events, "active")

			futs := make(chan *pipeline.Future, 64)
			var wg sync.WaitGroup
			for w := 0; w < 4; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 16; j++ {
						futs <- tr.Write([]byte("racing"))
					}
				}()
			}
			tr.Close()
			wg.Wait()
			close(futs)
			remote.Close()

			// Every future must resolve, whether the write went out before
			// the close or was failed by it.
			for fut := range futs {
				select {
				case <-fut.Done():
				case <-time.After(2 * time.Second):
					t.Fatal("Write future never completed after close")
				}
			}
		}
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		local, remote := net.Pipe()
		defer remote.Close()

		tr, sink := newBoundTransport(t, local)
		waitEvent(t, sink.events, "active")

		if err := tr.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
		if err := tr.Close(); err != nil {
			t.Errorf("Second Close failed: %v", err)
		}
	})

	t.Run("AdapterRejectsNonBytes", func(t *testing.T) {
		local, remote := net.Pipe()
		defer local.Close()
		defer remote.Close()

		tr := NewTCP(local, WithLogger(zerolog.Nop()))
		a := NewAdapter(tr)
		p := pipeline.New[[]byte, any](pipeline.WithLogger(zerolog.Nop()))
		p.AddBack(a)
		p.Finalize()

		if err := p.Write(42).Err(); err == nil {
			t.Error("Expected a type error for non-bytes outbound message")
		}
	})
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}
