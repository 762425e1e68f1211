// Package pipeline provides error definitions for pipeline operations
package pipeline

import "errors"

// Precondition violations. These indicate configuration or programming
// mistakes, not runtime conditions, and are never retried.
var (
	ErrNoInboundHandler  = errors.New("no inbound handler in pipeline")
	ErrNoOutboundHandler = errors.New("no outbound handler in pipeline")
	ErrNotOutbound       = errors.New("context is not outbound-capable")
)

// Chain traversal errors.
var (
	ErrEndOfPipeline = errors.New("message reached end of pipeline")
)
