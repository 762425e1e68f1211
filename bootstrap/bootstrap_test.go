package bootstrap

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/orian/wangle/codec"
	"github.com/orian/wangle/handler"
	"github.com/orian/wangle/pipeline"
	"github.com/orian/wangle/transport"
)

// collector is an inbound terminal that reports decoded messages on a channel
type collector struct {
	pipeline.InboundHandlerAdapter
	msgs chan []byte
}

func newCollector() *collector {
	return &collector{msgs: make(chan []byte, 16)}
}

func (c *collector) Read(ctx pipeline.InboundContext, msg any) {
	if data, ok := msg.([]byte); ok {
		c.msgs <- data
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = 0
	cfg.ConnectTimeout = 2 * time.Second
	return cfg
}

// echoFactory builds server pipelines that echo framed messages back
func echoFactory() pipeline.FactoryFunc[*pipeline.DefaultPipeline] {
	return func(t pipeline.Transport) (*pipeline.DefaultPipeline, error) {
		tr := t.(*transport.TCP)
		p := pipeline.New[[]byte, []byte](pipeline.WithLogger(zerolog.Nop()))
		p.AddBack(transport.NewAdapter(tr)).
			AddBack(codec.NewFrameCodec()).
			AddBack(handler.NewEcho())
		p.Finalize()
		return p, nil
	}
}

// collectFactory builds client pipelines that deliver framed messages to sink
func collectFactory(sink *collector) pipeline.FactoryFunc[*pipeline.DefaultPipeline] {
	return func(t pipeline.Transport) (*pipeline.DefaultPipeline, error) {
		tr := t.(*transport.TCP)
		p := pipeline.New[[]byte, []byte](pipeline.WithLogger(zerolog.Nop()))
		p.AddBack(transport.NewAdapter(tr)).
			AddBack(codec.NewFrameCodec()).
			AddBack(sink)
		p.Finalize()
		return p, nil
	}
}

func startEchoServer(t *testing.T, cfg *Config) *Server[*pipeline.DefaultPipeline] {
	t.Helper()
	srv := NewServer[*pipeline.DefaultPipeline](cfg, echoFactory())
	srv.SetLogger(zerolog.Nop())
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		if srv.IsRunning() {
			srv.Stop()
		}
	})
	return srv
}

func waitMessage(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func waitCondition(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestServerLifecycle(t *testing.T) {
	srv := startEchoServer(t, testConfig())

	if !srv.IsRunning() {
		t.Fatal("expected server to report running")
	}
	if srv.Addr() == nil {
		t.Fatal("expected a bound listener address")
	}
	if err := srv.Start(); err != ErrServerAlreadyRunning {
		t.Fatalf("second Start: got %v, want ErrServerAlreadyRunning", err)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("stop server: %v", err)
	}
	if srv.IsRunning() {
		t.Fatal("expected server to report stopped")
	}
	if err := srv.Stop(); err != ErrServerNotRunning {
		t.Fatalf("second Stop: got %v, want ErrServerNotRunning", err)
	}
}

func TestEchoRoundTrip(t *testing.T) {
	srv := startEchoServer(t, testConfig())

	sink := newCollector()
	client := NewClient[*pipeline.DefaultPipeline](testConfig(), collectFactory(sink))
	client.SetLogger(zerolog.Nop())

	p, err := client.Connect(srv.Addr().String())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect()

	fut := p.Write([]byte("hello"))
	select {
	case <-fut.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for write completion")
	}
	if err := fut.Err(); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := waitMessage(t, sink.msgs)
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestClientConnectionState(t *testing.T) {
	srv := startEchoServer(t, testConfig())

	client := NewClient[*pipeline.DefaultPipeline](testConfig(), collectFactory(newCollector()))
	client.SetLogger(zerolog.Nop())

	if client.IsConnected() {
		t.Fatal("expected new client to be disconnected")
	}
	if err := client.Disconnect(); err != ErrNotConnected {
		t.Fatalf("disconnect before connect: got %v, want ErrNotConnected", err)
	}

	if _, err := client.Connect(srv.Addr().String()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !client.IsConnected() {
		t.Fatal("expected client to be connected")
	}
	if _, err := client.Connect(srv.Addr().String()); err != ErrAlreadyConnected {
		t.Fatalf("second connect: got %v, want ErrAlreadyConnected", err)
	}

	if err := client.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if client.IsConnected() {
		t.Fatal("expected client to be disconnected")
	}
}

func TestGroupReapsClosedConnections(t *testing.T) {
	srv := startEchoServer(t, testConfig())

	client := NewClient[*pipeline.DefaultPipeline](testConfig(), collectFactory(newCollector()))
	client.SetLogger(zerolog.Nop())
	if _, err := client.Connect(srv.Addr().String()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	waitCondition(t, "connection registration", func() bool {
		return srv.Group().Count() == 1
	})

	if err := client.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	waitCondition(t, "connection removal", func() bool {
		return srv.Group().Count() == 0
	})
}

func TestConnectionLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	srv := startEchoServer(t, cfg)

	first := NewClient[*pipeline.DefaultPipeline](testConfig(), collectFactory(newCollector()))
	first.SetLogger(zerolog.Nop())
	if _, err := first.Connect(srv.Addr().String()); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	defer first.Disconnect()

	waitCondition(t, "first connection registration", func() bool {
		return srv.Group().Count() == 1
	})

	second := NewClient[*pipeline.DefaultPipeline](testConfig(), collectFactory(newCollector()))
	second.SetLogger(zerolog.Nop())
	if _, err := second.Connect(srv.Addr().String()); err != nil {
		t.Fatalf("second dial: %v", err)
	}
	defer second.Disconnect()

	// the server closes the excess connection right after accept
	waitCondition(t, "rejection of second connection", func() bool {
		return srv.GetStatistics().TotalRejected == 1
	})
	if count := srv.Group().Count(); count != 1 {
		t.Fatalf("got %d live connections, want 1", count)
	}
}

func TestServerStatistics(t *testing.T) {
	srv := startEchoServer(t, testConfig())

	client := NewClient[*pipeline.DefaultPipeline](testConfig(), collectFactory(newCollector()))
	client.SetLogger(zerolog.Nop())
	if _, err := client.Connect(srv.Addr().String()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect()

	waitCondition(t, "accept accounting", func() bool {
		stats := srv.GetStatistics()
		return stats.TotalAccepted == 1 && stats.CurrentConnections == 1
	})

	stats := srv.GetStatistics()
	if !stats.Running {
		t.Fatal("expected running statistics")
	}
	if stats.Address == "" {
		t.Fatal("expected a listener address in statistics")
	}
	if stats.String() == "" {
		t.Fatal("expected a non-empty statistics string")
	}
}

func TestGroupIgnoresUnknownPipelines(t *testing.T) {
	group := NewGroup(zerolog.Nop())
	if group.Count() != 0 {
		t.Fatalf("got %d members, want 0", group.Count())
	}

	p := pipeline.New[[]byte, []byte](pipeline.WithLogger(zerolog.Nop()))
	group.DeletePipeline(p.Base())

	if group.Count() != 0 {
		t.Fatalf("got %d members after no-op delete, want 0", group.Count())
	}
}
