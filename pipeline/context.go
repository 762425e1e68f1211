// Package pipeline provides the context wrapper binding a handler to its
// chain position
package pipeline

import "fmt"

// pipelineContext is the single concrete context implementation. Its
// direction is fixed at construction and selects which of the typed handler
// facets (in, out) are populated and which neighbor pointers are wired at
// finalize time. One context exists per registered handler instance.
type pipelineContext struct {
	core      *core
	dir       Direction
	handler   Handler
	ownership Ownership

	// Typed facets of handler, non-nil per direction.
	in  InboundHandler
	out OutboundHandler

	// nextIn is valid only within the inbound sub-chain, prevOut only
	// within the outbound sub-chain. Both are wired by Finalize.
	nextIn  *pipelineContext
	prevOut *pipelineContext

	attached bool
}

// newContext wraps handler for core. The handler must implement the typed
// interface(s) its Direction declares; a mismatch is a programming error.
func newContext(c *core, handler Handler, ownership Ownership) *pipelineContext {
	ctx := &pipelineContext{
		core:      c,
		dir:       handler.Direction(),
		handler:   handler,
		ownership: ownership,
	}

	if ctx.dir.Inbound() {
		in, ok := handler.(InboundHandler)
		if !ok {
			panic(fmt.Sprintf("pipeline: handler %T declares direction %s but does not implement InboundHandler", handler, ctx.dir))
		}
		ctx.in = in
	}
	if ctx.dir.Outbound() {
		out, ok := handler.(OutboundHandler)
		if !ok {
			panic(fmt.Sprintf("pipeline: handler %T declares direction %s but does not implement OutboundHandler", handler, ctx.dir))
		}
		ctx.out = out
	}

	return ctx
}

// Direction returns the direction of the context
func (ctx *pipelineContext) Direction() Direction {
	return ctx.dir
}

// Base returns the owning pipeline's base facet
func (ctx *pipelineContext) Base() *Base {
	return &ctx.core.base
}

// Transport returns the transport the owning pipeline is bound to
func (ctx *pipelineContext) Transport() Transport {
	return ctx.core.base.Transport()
}

// FireRead forwards msg to the next inbound-capable handler.
func (ctx *pipelineContext) FireRead(msg any) {
	if ctx.nextIn == nil {
		ctx.core.logger.Warn().Msg("read reached end of pipeline")
		return
	}
	ctx.nextIn.read(msg)
}

// FireReadEOF forwards end-of-stream to the next inbound-capable handler.
func (ctx *pipelineContext) FireReadEOF() {
	if ctx.nextIn == nil {
		ctx.core.logger.Warn().Msg("readEOF reached end of pipeline")
		return
	}
	ctx.nextIn.readEOF()
}

// FireReadException forwards a data-path error to the next inbound-capable
// handler.
func (ctx *pipelineContext) FireReadException(err error) {
	if ctx.nextIn == nil {
		ctx.core.logger.Warn().Err(err).Msg("readException reached end of pipeline")
		return
	}
	ctx.nextIn.readException(err)
}

// FireTransportActive forwards the transport-active notification.
func (ctx *pipelineContext) FireTransportActive() {
	if ctx.nextIn == nil {
		return
	}
	ctx.nextIn.transportActive()
}

// FireTransportInactive forwards the transport-inactive notification.
func (ctx *pipelineContext) FireTransportInactive() {
	if ctx.nextIn == nil {
		return
	}
	ctx.nextIn.transportInactive()
}

// FireWrite forwards msg to the previous outbound-capable handler.
func (ctx *pipelineContext) FireWrite(msg any) *Future {
	if !ctx.dir.Outbound() {
		return FailedFuture(ErrNotOutbound)
	}
	if ctx.prevOut == nil {
		ctx.core.logger.Warn().Msg("write reached end of pipeline")
		return FailedFuture(ErrEndOfPipeline)
	}
	return ctx.prevOut.write(msg)
}

// FireClose forwards a close request to the previous outbound-capable
// handler.
func (ctx *pipelineContext) FireClose() *Future {
	if !ctx.dir.Outbound() {
		return FailedFuture(ErrNotOutbound)
	}
	if ctx.prevOut == nil {
		ctx.core.logger.Warn().Msg("close reached end of pipeline")
		return FailedFuture(ErrEndOfPipeline)
	}
	return ctx.prevOut.closeOut()
}

// Dispatch into the wrapped handler. These are the link operations the
// neighbor contexts (and the pipeline entry points) call.

func (ctx *pipelineContext) read(msg any) {
	ctx.in.Read(ctx, msg)
}

func (ctx *pipelineContext) readEOF() {
	ctx.in.ReadEOF(ctx)
}

func (ctx *pipelineContext) readException(err error) {
	ctx.in.ReadException(ctx, err)
}

func (ctx *pipelineContext) transportActive() {
	ctx.in.TransportActive(ctx)
}

func (ctx *pipelineContext) transportInactive() {
	ctx.in.TransportInactive(ctx)
}

func (ctx *pipelineContext) write(msg any) *Future {
	return ctx.out.Write(ctx, msg)
}

func (ctx *pipelineContext) closeOut() *Future {
	return ctx.out.Close(ctx)
}

// attachPipeline notifies the handler that the chain is complete.
func (ctx *pipelineContext) attachPipeline() {
	if ctx.attached {
		return
	}
	ctx.attached = true
	ctx.handler.Attached(ctx)
}

// detachPipeline notifies the handler that it is being removed.
func (ctx *pipelineContext) detachPipeline() {
	if !ctx.attached {
		return
	}
	ctx.attached = false
	ctx.handler.Detached(ctx)
}
