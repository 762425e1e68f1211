// Package config provides error definitions for configuration management
package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidPort           = errors.New("invalid port number")
	ErrInvalidMaxConnections = errors.New("invalid max connections")
	ErrInvalidLogLevel       = errors.New("invalid log level")
	ErrInvalidBufferSettings = errors.New("invalid read buffer settings")
	ErrInvalidFrameSize      = errors.New("invalid max frame size")
	ErrInvalidSendQueueSize  = errors.New("invalid send queue size")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound = errors.New("configuration file not found")
	ErrUnsupportedFormat  = errors.New("unsupported configuration format")
)
