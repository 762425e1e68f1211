// Package handler provides an echo application handler
package handler

import (
	"github.com/orian/wangle/pipeline"
)

// Echo is a both-direction application handler that answers every inbound
// message with an identical outbound write. It terminates the inbound
// chain.
type Echo struct {
	pipeline.DuplexHandlerAdapter
}

// NewEcho creates an echo handler.
func NewEcho() *Echo {
	return &Echo{}
}

// Read writes the message back toward the transport.
func (h *Echo) Read(ctx pipeline.InboundContext, msg any) {
	if d, ok := ctx.(pipeline.DuplexContext); ok {
		d.FireWrite(msg)
	}
}
