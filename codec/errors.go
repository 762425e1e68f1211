// Package codec provides error definitions for frame and message codecs
package codec

import "errors"

// Framing errors. These are data-path errors: codecs fire them down the
// inbound chain via ReadException rather than failing the pipeline.
var (
	ErrFrameTooLarge    = errors.New("frame exceeds maximum size")
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
	ErrLineTooLong      = errors.New("line exceeds maximum length")
)
