// Package pipeline provides the pipeline types and the chain wiring
// algorithm
package pipeline

import (
	"fmt"
	"os"
	"reflect"

	"github.com/rs/zerolog"
)

// State represents the lifecycle state of a pipeline
type State int

const (
	StateEmpty State = iota
	StateBuilding
	StateFinalized
	StateDestroyed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateFinalized:
		return "finalized"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// WriteFlags are transport hints carried by the pipeline for transport-facing
// handlers to query.
type WriteFlags uint32

const (
	WriteFlagNone WriteFlags = 0

	// WriteFlagCork asks the transport to aggregate writes into fewer
	// packets.
	WriteFlagCork WriteFlags = 1 << 0

	// WriteFlagEOR marks the end of a record for record-oriented
	// transports.
	WriteFlagEOR WriteFlags = 1 << 1
)

// ReadBufferSettings sizes the buffers a transport-facing handler uses when
// reading: reads are attempted once MinAvailable bytes of buffer space are
// free, and buffers grow in AllocationSize chunks.
type ReadBufferSettings struct {
	MinAvailable   uint64
	AllocationSize uint64
}

// DefaultReadBufferSettings returns the default read buffer sizing.
func DefaultReadBufferSettings() ReadBufferSettings {
	return ReadBufferSettings{MinAvailable: 2048, AllocationSize: 2048}
}

// Nothing marks a pipeline direction as unused by convention. With the
// direction-specific pipeline types (InboundPipeline, OutboundPipeline) the
// unused operation surface is absent at compile time; Nothing remains as the
// conventional type argument for a Pipeline direction that carries no
// messages at runtime.
type Nothing struct{}

// Option configures a pipeline at construction time.
type Option func(*core)

// WithLogger sets the logger used for pipeline diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *core) {
		c.logger = logger
	}
}

// Static marks the pipeline as process-lifetime: its handlers are never
// individually detached, and Destroy skips detachment entirely.
func Static() Option {
	return func(c *core) {
		c.isStatic = true
	}
}

// AddOption configures a single add-handler call.
type AddOption func(*addOptions)

type addOptions struct {
	ownership Ownership
}

// WithOwnership records who is responsible for the handler being added.
// The default is SharedOwnership.
func WithOwnership(o Ownership) AddOption {
	return func(opts *addOptions) {
		opts.ownership = o
	}
}

// core is the chain-building machinery shared by all pipeline types. It is
// not internally synchronized: it assumes at most one inbound call and,
// independently, at most one outbound call in flight at a time, driven by
// whichever execution context owns the connection.
type core struct {
	base   Base
	logger zerolog.Logger

	writeFlags         WriteFlags
	readBufferSettings ReadBufferSettings

	isStatic bool
	state    State

	// ctxs holds every context in insertion order. inCtxs and outCtxs are
	// order-preserving filtered views of ctxs.
	ctxs    []*pipelineContext
	inCtxs  []*pipelineContext
	outCtxs []*pipelineContext

	// front and back are the dispatch entry points, set by finalize.
	front *pipelineContext
	back  *pipelineContext

	// owner, if set, is exempted from detachment during Destroy because
	// its handler owns the pipeline.
	owner *pipelineContext
}

func (c *core) init(opts []Option) {
	c.logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	c.readBufferSettings = DefaultReadBufferSettings()
	for _, opt := range opts {
		opt(c)
	}
}

// Base returns the non-generic pipeline facet.
func (c *core) Base() *Base {
	return &c.base
}

// SetManager installs the manager destruction is delegated to.
func (c *core) SetManager(m Manager) {
	c.base.SetManager(m)
}

// DeletePipeline forwards the destroy request to the manager, if any.
func (c *core) DeletePipeline() {
	c.base.DeletePipeline()
}

// SetTransport binds the pipeline to a transport handle.
func (c *core) SetTransport(t Transport) {
	c.base.SetTransport(t)
}

// Transport returns the bound transport handle, or nil.
func (c *core) Transport() Transport {
	return c.base.Transport()
}

// SetWriteFlags stores transport write hints for transport-facing handlers.
func (c *core) SetWriteFlags(flags WriteFlags) {
	c.writeFlags = flags
}

// GetWriteFlags returns the stored transport write hints.
func (c *core) GetWriteFlags() WriteFlags {
	return c.writeFlags
}

// SetReadBufferSettings stores read buffer sizing for transport-facing
// handlers.
func (c *core) SetReadBufferSettings(minAvailable, allocationSize uint64) {
	c.readBufferSettings = ReadBufferSettings{
		MinAvailable:   minAvailable,
		AllocationSize: allocationSize,
	}
}

// GetReadBufferSettings returns the stored read buffer sizing.
func (c *core) GetReadBufferSettings() ReadBufferSettings {
	return c.readBufferSettings
}

// State returns the lifecycle state of the pipeline
func (c *core) State() State {
	return c.state
}

// HandlerAt returns the handler at position i in insertion order. An
// out-of-range index is a programming error.
func (c *core) HandlerAt(i int) Handler {
	if i < 0 || i >= len(c.ctxs) {
		panic(fmt.Sprintf("pipeline: handler index %d out of range [0,%d)", i, len(c.ctxs)))
	}
	return c.ctxs[i].handler
}

// Len returns the number of handlers in the pipeline.
func (c *core) Len() int {
	return len(c.ctxs)
}

// SetOwner marks the context wrapping handler as owned by its handler
// rather than by the pipeline, exempting it from detachment during Destroy.
// It reports whether the handler was found. Use it when a handler is itself
// the long-lived owner of the pipeline, to keep teardown ordering safe.
func (c *core) SetOwner(handler Handler) bool {
	for _, ctx := range c.ctxs {
		if ctx.handler == handler {
			c.owner = ctx
			return true
		}
	}
	return false
}

// Destroy detaches every context except the owner, unless the pipeline is
// static. After Destroy the pipeline must not be used.
func (c *core) Destroy() {
	if c.state == StateDestroyed {
		return
	}
	c.state = StateDestroyed
	if c.isStatic {
		return
	}
	for _, ctx := range c.ctxs {
		if ctx != c.owner {
			ctx.detachPipeline()
		}
	}
}

// add wraps handler in a context and inserts it at the head or tail of the
// insertion-order sequence and of the matching directional views.
func (c *core) add(handler Handler, front bool, opts []AddOption) {
	if c.state >= StateFinalized {
		panic("pipeline: cannot add handlers after Finalize")
	}
	c.state = StateBuilding

	options := addOptions{ownership: SharedOwnership}
	for _, opt := range opts {
		opt(&options)
	}

	ctx := newContext(c, handler, options.ownership)
	if front {
		c.ctxs = append([]*pipelineContext{ctx}, c.ctxs...)
	} else {
		c.ctxs = append(c.ctxs, ctx)
	}
	if ctx.dir.Inbound() {
		if front {
			c.inCtxs = append([]*pipelineContext{ctx}, c.inCtxs...)
		} else {
			c.inCtxs = append(c.inCtxs, ctx)
		}
	}
	if ctx.dir.Outbound() {
		if front {
			c.outCtxs = append([]*pipelineContext{ctx}, c.outCtxs...)
		} else {
			c.outCtxs = append(c.outCtxs, ctx)
		}
	}
}

// finalize wires the two directional sub-chains and freezes the handler
// composition. Inbound data flows front to back in insertion order; the
// outbound chain is wired in reverse so that writes are processed by the
// handlers closest to the transport last. wantIn and wantOut declare which
// directions the pipeline type considers active, controlling the
// missing-handler diagnostics: a missing side on an active direction is
// very likely a configuration bug, so it is logged, but it must not crash a
// running process.
func (c *core) finalize(wantIn, wantOut bool) {
	if c.state >= StateFinalized {
		panic("pipeline: Finalize called twice")
	}
	c.state = StateFinalized

	if len(c.inCtxs) > 0 {
		c.front = c.inCtxs[0]
		for i := 0; i < len(c.inCtxs)-1; i++ {
			c.inCtxs[i].nextIn = c.inCtxs[i+1]
		}
	}

	if len(c.outCtxs) > 0 {
		c.back = c.outCtxs[len(c.outCtxs)-1]
		for i := len(c.outCtxs) - 1; i > 0; i-- {
			c.outCtxs[i].prevOut = c.outCtxs[i-1]
		}
	}

	if c.front == nil && wantIn {
		c.logger.Warn().Msg("no inbound handler in pipeline, inbound operations will fail")
	}
	if c.back == nil && wantOut {
		c.logger.Warn().Msg("no outbound handler in pipeline, outbound operations will fail")
	}

	// Notify last-added first, so handlers closer to the application see a
	// fully initialized chain below them.
	for i := len(c.ctxs) - 1; i >= 0; i-- {
		c.ctxs[i].attachPipeline()
	}
}

// Untyped dispatch entry points shared by the typed pipeline surfaces.

func (c *core) read(msg any) error {
	if c.front == nil {
		return ErrNoInboundHandler
	}
	c.front.read(msg)
	return nil
}

func (c *core) readEOF() error {
	if c.front == nil {
		return ErrNoInboundHandler
	}
	c.front.readEOF()
	return nil
}

func (c *core) readException(err error) error {
	if c.front == nil {
		return ErrNoInboundHandler
	}
	c.front.readException(err)
	return nil
}

func (c *core) transportActive() {
	if c.front != nil {
		c.front.transportActive()
	}
}

func (c *core) transportInactive() {
	if c.front != nil {
		c.front.transportInactive()
	}
}

func (c *core) write(msg any) *Future {
	if c.back == nil {
		return FailedFuture(ErrNoOutboundHandler)
	}
	return c.back.write(msg)
}

func (c *core) closeOutbound() *Future {
	if c.back == nil {
		return FailedFuture(ErrNoOutboundHandler)
	}
	return c.back.closeOut()
}

// Pipeline is a bidirectional pipeline: inbound calls enter with messages of
// type R, outbound calls with messages of type W. For pipelines that use
// only one direction, prefer InboundPipeline or OutboundPipeline, which omit
// the unused operation surface at the type level.
type Pipeline[R, W any] struct {
	core
}

// New creates an empty bidirectional pipeline.
func New[R, W any](opts ...Option) *Pipeline[R, W] {
	p := &Pipeline[R, W]{}
	p.init(opts)
	return p
}

// DefaultPipeline is the usual transport-facing pipeline shape: raw bytes
// in, raw bytes out.
type DefaultPipeline = Pipeline[[]byte, []byte]

// AddBack appends handler to the pipeline. Inbound data reaches handlers in
// AddBack order; outbound data in the reverse order.
func (p *Pipeline[R, W]) AddBack(handler Handler, opts ...AddOption) *Pipeline[R, W] {
	p.add(handler, false, opts)
	return p
}

// AddFront prepends handler to the pipeline.
func (p *Pipeline[R, W]) AddFront(handler Handler, opts ...AddOption) *Pipeline[R, W] {
	p.add(handler, true, opts)
	return p
}

// Finalize wires the directional chains and freezes the composition. It
// must be called exactly once, after all handlers have been added.
func (p *Pipeline[R, W]) Finalize() {
	p.finalize(true, true)
}

// Read delivers an inbound message at the front of the pipeline.
func (p *Pipeline[R, W]) Read(msg R) error {
	return p.read(msg)
}

// ReadEOF delivers end-of-stream at the front of the pipeline.
func (p *Pipeline[R, W]) ReadEOF() error {
	return p.readEOF()
}

// ReadException delivers a data-path error at the front of the pipeline.
func (p *Pipeline[R, W]) ReadException(err error) error {
	return p.readException(err)
}

// TransportActive announces the transport lifecycle change at the front of
// the pipeline. It is a no-op on a pipeline with no inbound handlers.
func (p *Pipeline[R, W]) TransportActive() {
	p.transportActive()
}

// TransportInactive announces the transport lifecycle change at the front
// of the pipeline. It is a no-op on a pipeline with no inbound handlers.
func (p *Pipeline[R, W]) TransportInactive() {
	p.transportInactive()
}

// Write delivers an outbound message at the back of the pipeline. The
// returned future completes once the outbound chain (ultimately the
// transport) has processed the message.
func (p *Pipeline[R, W]) Write(msg W) *Future {
	return p.write(msg)
}

// Close issues a close request down the outbound chain. It is the only
// shutdown primitive for in-flight traffic.
func (p *Pipeline[R, W]) Close() *Future {
	return p.closeOutbound()
}

// InboundPipeline is a unidirectional pipeline that only carries inbound
// messages of type R. It has no Write or Close surface.
type InboundPipeline[R any] struct {
	core
}

// NewInbound creates an empty inbound-only pipeline.
func NewInbound[R any](opts ...Option) *InboundPipeline[R] {
	p := &InboundPipeline[R]{}
	p.init(opts)
	return p
}

// AddBack appends handler to the pipeline.
func (p *InboundPipeline[R]) AddBack(handler Handler, opts ...AddOption) *InboundPipeline[R] {
	p.add(handler, false, opts)
	return p
}

// AddFront prepends handler to the pipeline.
func (p *InboundPipeline[R]) AddFront(handler Handler, opts ...AddOption) *InboundPipeline[R] {
	p.add(handler, true, opts)
	return p
}

// Finalize wires the directional chains and freezes the composition.
func (p *InboundPipeline[R]) Finalize() {
	p.finalize(true, false)
}

// Read delivers an inbound message at the front of the pipeline.
func (p *InboundPipeline[R]) Read(msg R) error {
	return p.read(msg)
}

// ReadEOF delivers end-of-stream at the front of the pipeline.
func (p *InboundPipeline[R]) ReadEOF() error {
	return p.readEOF()
}

// ReadException delivers a data-path error at the front of the pipeline.
func (p *InboundPipeline[R]) ReadException(err error) error {
	return p.readException(err)
}

// TransportActive announces the transport lifecycle change.
func (p *InboundPipeline[R]) TransportActive() {
	p.transportActive()
}

// TransportInactive announces the transport lifecycle change.
func (p *InboundPipeline[R]) TransportInactive() {
	p.transportInactive()
}

// OutboundPipeline is a unidirectional pipeline that only carries outbound
// messages of type W. It has no inbound surface.
type OutboundPipeline[W any] struct {
	core
}

// NewOutbound creates an empty outbound-only pipeline.
func NewOutbound[W any](opts ...Option) *OutboundPipeline[W] {
	p := &OutboundPipeline[W]{}
	p.init(opts)
	return p
}

// AddBack appends handler to the pipeline.
func (p *OutboundPipeline[W]) AddBack(handler Handler, opts ...AddOption) *OutboundPipeline[W] {
	p.add(handler, false, opts)
	return p
}

// AddFront prepends handler to the pipeline.
func (p *OutboundPipeline[W]) AddFront(handler Handler, opts ...AddOption) *OutboundPipeline[W] {
	p.add(handler, true, opts)
	return p
}

// Finalize wires the directional chains and freezes the composition.
func (p *OutboundPipeline[W]) Finalize() {
	p.finalize(false, true)
}

// Write delivers an outbound message at the back of the pipeline.
func (p *OutboundPipeline[W]) Write(msg W) *Future {
	return p.write(msg)
}

// Close issues a close request down the outbound chain.
func (p *OutboundPipeline[W]) Close() *Future {
	return p.closeOutbound()
}

// handlerSource is satisfied by every pipeline type.
type handlerSource interface {
	HandlerAt(i int) Handler
}

// GetHandler returns the handler at position i, type-checked against H. The
// caller is assumed to know the pipeline's composition: a mismatch is a
// fatal precondition violation.
func GetHandler[H Handler](p handlerSource, i int) H {
	h, ok := p.HandlerAt(i).(H)
	if !ok {
		want := reflect.TypeOf((*H)(nil)).Elem()
		panic(fmt.Sprintf("pipeline: handler at index %d is %T, not %v", i, p.HandlerAt(i), want))
	}
	return h
}
