// Package pipeline provides pass-through handler bases for embedding
package pipeline

// InboundHandlerAdapter is an InboundHandler whose every method forwards the
// event unchanged. Embed it in a handler and override only the methods it
// cares about.
type InboundHandlerAdapter struct{}

// Direction returns In
func (InboundHandlerAdapter) Direction() Direction { return In }

// Attached does nothing
func (InboundHandlerAdapter) Attached(HandlerContext) {}

// Detached does nothing
func (InboundHandlerAdapter) Detached(HandlerContext) {}

// Read forwards msg to the next inbound handler
func (InboundHandlerAdapter) Read(ctx InboundContext, msg any) { ctx.FireRead(msg) }

// ReadEOF forwards end-of-stream to the next inbound handler
func (InboundHandlerAdapter) ReadEOF(ctx InboundContext) { ctx.FireReadEOF() }

// ReadException forwards err to the next inbound handler
func (InboundHandlerAdapter) ReadException(ctx InboundContext, err error) {
	ctx.FireReadException(err)
}

// TransportActive forwards the notification to the next inbound handler
func (InboundHandlerAdapter) TransportActive(ctx InboundContext) { ctx.FireTransportActive() }

// TransportInactive forwards the notification to the next inbound handler
func (InboundHandlerAdapter) TransportInactive(ctx InboundContext) { ctx.FireTransportInactive() }

// OutboundHandlerAdapter is an OutboundHandler whose every method forwards
// the event unchanged.
type OutboundHandlerAdapter struct{}

// Direction returns Out
func (OutboundHandlerAdapter) Direction() Direction { return Out }

// Attached does nothing
func (OutboundHandlerAdapter) Attached(HandlerContext) {}

// Detached does nothing
func (OutboundHandlerAdapter) Detached(HandlerContext) {}

// Write forwards msg to the previous outbound handler
func (OutboundHandlerAdapter) Write(ctx OutboundContext, msg any) *Future {
	return ctx.FireWrite(msg)
}

// Close forwards the close request to the previous outbound handler
func (OutboundHandlerAdapter) Close(ctx OutboundContext) *Future {
	return ctx.FireClose()
}

// DuplexHandlerAdapter is a Both-direction handler whose every method
// forwards the event unchanged.
type DuplexHandlerAdapter struct {
	InboundHandlerAdapter
	OutboundHandlerAdapter
}

// Direction returns Both
func (DuplexHandlerAdapter) Direction() Direction { return Both }

// Attached does nothing
func (DuplexHandlerAdapter) Attached(HandlerContext) {}

// Detached does nothing
func (DuplexHandlerAdapter) Detached(HandlerContext) {}
