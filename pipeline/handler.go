// Package pipeline provides a generic, bidirectional handler pipeline: a
// per-connection chain of composable processing stages through which inbound
// bytes flow toward application logic and outbound messages flow back toward
// a transport.
package pipeline

// Direction declares which side(s) of a pipeline a handler participates in.
type Direction int

const (
	// In marks a handler that only processes inbound events.
	In Direction = iota

	// Out marks a handler that only processes outbound events.
	Out

	// Both marks a handler that processes events in both directions.
	Both
)

// String returns the string representation of Direction
func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// Inbound reports whether handlers with this direction receive inbound events.
func (d Direction) Inbound() bool {
	return d == In || d == Both
}

// Outbound reports whether handlers with this direction receive outbound events.
func (d Direction) Outbound() bool {
	return d == Out || d == Both
}

// Ownership describes who is responsible for a handler registered with a
// pipeline. The distinction carries no teardown behavior of its own (the
// garbage collector reclaims handlers either way); it documents the caller
// contract on the add call.
type Ownership int

const (
	// SharedOwnership means the pipeline and the caller both hold the
	// handler. This is the default.
	SharedOwnership Ownership = iota

	// OwnedOwnership means the caller hands the handler over and keeps no
	// reference of its own.
	OwnedOwnership

	// BorrowedOwnership means the caller retains sole responsibility for
	// the handler and must keep it alive for the lifetime of the pipeline.
	BorrowedOwnership
)

// String returns the string representation of Ownership
func (o Ownership) String() string {
	switch o {
	case SharedOwnership:
		return "shared"
	case OwnedOwnership:
		return "owned"
	case BorrowedOwnership:
		return "borrowed"
	default:
		return "unknown"
	}
}

// Transport is the I/O endpoint a pipeline is bound to. The pipeline stores
// it opaquely; transport-facing handlers assert it to the concrete type they
// were built for.
type Transport any

// Handler is the base contract every pipeline handler satisfies. A handler
// additionally implements InboundHandler, OutboundHandler, or both, matching
// its declared Direction. Register handlers as pointers: the pipeline
// identifies them by identity in SetOwner.
type Handler interface {
	// Direction returns the handler's declared directionality. It must be
	// constant for the lifetime of the handler.
	Direction() Direction

	// Attached is called once, during Finalize, after the full chain has
	// been wired. Chain-dependent initialization belongs here.
	Attached(ctx HandlerContext)

	// Detached is called when the pipeline detaches the handler during
	// teardown.
	Detached(ctx HandlerContext)
}

// InboundHandler processes events flowing from the transport toward the
// application: data, end-of-stream, errors, and transport lifecycle changes.
type InboundHandler interface {
	Handler

	// Read is called with the next inbound message.
	Read(ctx InboundContext, msg any)

	// ReadEOF is called when the transport reached end-of-stream.
	ReadEOF(ctx InboundContext)

	// ReadException is called with a data-path error. Errors propagate
	// inbound exactly like data; the pipeline performs no recovery.
	ReadException(ctx InboundContext, err error)

	// TransportActive is called when the transport becomes usable.
	TransportActive(ctx InboundContext)

	// TransportInactive is called when the transport stops being usable.
	TransportInactive(ctx InboundContext)
}

// OutboundHandler processes events flowing from the application toward the
// transport: sends and close requests.
type OutboundHandler interface {
	Handler

	// Write processes an outbound message. The returned future completes
	// once the rest of the outbound chain (ultimately the transport) has
	// processed the message.
	Write(ctx OutboundContext, msg any) *Future

	// Close processes a close request traveling toward the transport.
	Close(ctx OutboundContext) *Future
}

// HandlerContext binds a handler to its position in a pipeline. Handlers
// receive their context on every call and may use it to reach the owning
// pipeline facet or the transport.
type HandlerContext interface {
	// Direction returns the direction of the context, fixed at creation.
	Direction() Direction

	// Base returns the owning pipeline's base facet.
	Base() *Base

	// Transport returns the transport the pipeline is bound to, or nil.
	Transport() Transport
}

// InboundContext is the context handed to inbound handler methods. Fire*
// forwards an event to the next inbound-capable handler in the chain.
type InboundContext interface {
	HandlerContext

	FireRead(msg any)
	FireReadEOF()
	FireReadException(err error)
	FireTransportActive()
	FireTransportInactive()
}

// OutboundContext is the context handed to outbound handler methods. Fire*
// forwards an event to the previous outbound-capable handler in the chain.
type OutboundContext interface {
	HandlerContext

	FireWrite(msg any) *Future
	FireClose() *Future
}

// DuplexContext is the context of a Both-direction handler. The context
// passed to the inbound and outbound methods of a handler registered with
// Direction Both always satisfies this interface, so such handlers may
// assert it to forward in the opposite direction (for example, an
// application handler answering a read with a write).
type DuplexContext interface {
	InboundContext
	OutboundContext
}
