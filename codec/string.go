// Package codec provides a byte/string adapter handler
package codec

import (
	"fmt"

	"github.com/orian/wangle/pipeline"
)

// StringCodec is a both-direction handler that adapts between []byte frames
// below it and string messages above it. Place it between a frame codec and
// the application handler.
type StringCodec struct {
	pipeline.DuplexHandlerAdapter
}

// NewStringCodec creates a string codec.
func NewStringCodec() *StringCodec {
	return &StringCodec{}
}

// Read converts the inbound frame to a string.
func (sc *StringCodec) Read(ctx pipeline.InboundContext, msg any) {
	data, ok := msg.([]byte)
	if !ok {
		ctx.FireReadException(fmt.Errorf("string codec: expected []byte, got %T", msg))
		return
	}
	ctx.FireRead(string(data))
}

// Write converts the outbound string to a frame.
func (sc *StringCodec) Write(ctx pipeline.OutboundContext, msg any) *pipeline.Future {
	s, ok := msg.(string)
	if !ok {
		return pipeline.FailedFuture(fmt.Errorf("string codec: expected string, got %T", msg))
	}
	return ctx.FireWrite([]byte(s))
}
