// Package handler provides reusable middleware handlers for pipelines
package handler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/orian/wangle/pipeline"
)

// Logging is a both-direction pass-through handler that logs every pipeline
// event it observes and forwards it unchanged. Place it anywhere in the
// chain to trace traffic at that position.
type Logging struct {
	pipeline.DuplexHandlerAdapter

	logger zerolog.Logger
	name   string
}

// NewLogging creates a logging handler. The name distinguishes multiple
// logging handlers within one pipeline.
func NewLogging(name string, logger zerolog.Logger) *Logging {
	return &Logging{logger: logger, name: name}
}

func (h *Logging) event(event string) *zerolog.Event {
	return h.logger.Debug().Str("handler", h.name).Str("event", event)
}

// Read logs the inbound message and forwards it
func (h *Logging) Read(ctx pipeline.InboundContext, msg any) {
	h.event("read").Str("msg_type", fmt.Sprintf("%T", msg)).Msg("pipeline event")
	ctx.FireRead(msg)
}

// ReadEOF logs end-of-stream and forwards it
func (h *Logging) ReadEOF(ctx pipeline.InboundContext) {
	h.event("read_eof").Msg("pipeline event")
	ctx.FireReadEOF()
}

// ReadException logs the data-path error and forwards it
func (h *Logging) ReadException(ctx pipeline.InboundContext, err error) {
	h.logger.Warn().Str("handler", h.name).Str("event", "read_exception").Err(err).Msg("pipeline event")
	ctx.FireReadException(err)
}

// TransportActive logs the lifecycle change and forwards it
func (h *Logging) TransportActive(ctx pipeline.InboundContext) {
	h.event("transport_active").Msg("pipeline event")
	ctx.FireTransportActive()
}

// TransportInactive logs the lifecycle change and forwards it
func (h *Logging) TransportInactive(ctx pipeline.InboundContext) {
	h.event("transport_inactive").Msg("pipeline event")
	ctx.FireTransportInactive()
}

// Write logs the outbound message and forwards it
func (h *Logging) Write(ctx pipeline.OutboundContext, msg any) *pipeline.Future {
	h.event("write").Str("msg_type", fmt.Sprintf("%T", msg)).Msg("pipeline event")
	return ctx.FireWrite(msg)
}

// Close logs the close request and forwards it
func (h *Logging) Close(ctx pipeline.OutboundContext) *pipeline.Future {
	h.event("close").Msg("pipeline event")
	return ctx.FireClose()
}
