// Package transport provides the pipeline handler bridging to a transport
package transport

import (
	"fmt"

	"github.com/orian/wangle/pipeline"
)

// Adapter is the outbound-terminal handler of a transport-backed pipeline.
// Add it at the front of the pipeline so that every outbound chain ends in
// a socket write. Inbound events do not pass through it; the transport's
// read loop feeds the pipeline directly.
type Adapter struct {
	pipeline.OutboundHandlerAdapter

	t *TCP
}

// NewAdapter creates an adapter writing to t.
func NewAdapter(t *TCP) *Adapter {
	return &Adapter{t: t}
}

// Write sends the payload over the transport.
func (a *Adapter) Write(ctx pipeline.OutboundContext, msg any) *pipeline.Future {
	data, ok := msg.([]byte)
	if !ok {
		return pipeline.FailedFuture(fmt.Errorf("transport adapter: expected []byte, got %T", msg))
	}
	return a.t.Write(data)
}

// Close shuts the transport down.
func (a *Adapter) Close(ctx pipeline.OutboundContext) *pipeline.Future {
	if err := a.t.Close(); err != nil {
		return pipeline.FailedFuture(err)
	}
	return pipeline.CompletedFuture()
}
