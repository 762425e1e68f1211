// Package bootstrap provides the connection acceptance and dialing
// machinery around transport-backed pipelines.
package bootstrap

import "errors"

var (
	// ErrServerAlreadyRunning indicates Start was called on a running server
	ErrServerAlreadyRunning = errors.New("server already running")

	// ErrServerNotRunning indicates Stop was called on a stopped server
	ErrServerNotRunning = errors.New("server not running")

	// ErrAlreadyConnected indicates Connect was called on a connected client
	ErrAlreadyConnected = errors.New("client already connected")

	// ErrNotConnected indicates the client has no live connection
	ErrNotConnected = errors.New("client not connected")
)
