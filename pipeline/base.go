// Package pipeline provides the non-generic pipeline facet and the external
// owner contracts
package pipeline

// Manager is the external owner hook for pipelines. When a pipeline has a
// manager, destruction requests are delegated to it rather than performed
// unconditionally, letting a registry decouple "logically done" from "safe
// to free".
type Manager interface {
	// DeletePipeline is asked to destroy the pipeline identified by its
	// base facet.
	DeletePipeline(p *Base)
}

// Base is the non-generic facet shared by all pipeline types. It holds the
// transport handle and the optional manager controlling destruction policy.
type Base struct {
	manager   Manager
	transport Transport
}

// SetManager installs the manager that destruction is delegated to.
func (b *Base) SetManager(m Manager) {
	b.manager = m
}

// DeletePipeline forwards the destroy request to the manager, if one is
// set. Without a manager it is a no-op.
func (b *Base) DeletePipeline() {
	if b.manager != nil {
		b.manager.DeletePipeline(b)
	}
}

// SetTransport binds the pipeline to a transport handle.
func (b *Base) SetTransport(t Transport) {
	b.transport = t
}

// Transport returns the bound transport handle, or nil.
func (b *Base) Transport() Transport {
	return b.transport
}

// Factory produces one finalized pipeline per accepted connection. The
// returned pipeline must already be finalized and ready to receive inbound
// calls. A factory is stateless with respect to any single pipeline.
type Factory[P any] interface {
	NewPipeline(t Transport) (P, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc[P any] func(t Transport) (P, error)

// NewPipeline calls f.
func (f FactoryFunc[P]) NewPipeline(t Transport) (P, error) {
	return f(t)
}
