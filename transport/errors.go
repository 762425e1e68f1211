// Package transport provides error definitions for transport operations
package transport

import "errors"

var (
	ErrTransportClosed = errors.New("transport is closed")
	ErrNotBound        = errors.New("transport is not bound to a pipeline")
	ErrAlreadyStarted  = errors.New("transport already started")
)
