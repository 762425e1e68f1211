// Package codec provides a newline-delimited frame codec
package codec

import (
	"bytes"
	"fmt"

	"github.com/orian/wangle/pipeline"
)

// DefaultMaxLineLength bounds lines to 8 KiB unless configured otherwise.
const DefaultMaxLineLength = 8 << 10

// LineOption configures a LineCodec
type LineOption func(*LineCodec)

// WithMaxLineLength sets the maximum accepted line length, excluding the
// delimiter.
func WithMaxLineLength(n int) LineOption {
	return func(lc *LineCodec) {
		lc.maxLineLength = n
	}
}

// LineCodec is a both-direction handler that frames the byte stream on
// newlines. Inbound it emits one payload per line with the trailing "\n"
// (and optional "\r") stripped; outbound it appends "\n".
type LineCodec struct {
	pipeline.DuplexHandlerAdapter

	maxLineLength int
	buf           []byte
}

// NewLineCodec creates a line codec with the given options.
func NewLineCodec(opts ...LineOption) *LineCodec {
	lc := &LineCodec{maxLineLength: DefaultMaxLineLength}
	for _, opt := range opts {
		opt(lc)
	}
	return lc
}

// Read accumulates raw bytes and fires every complete line.
func (lc *LineCodec) Read(ctx pipeline.InboundContext, msg any) {
	data, ok := msg.([]byte)
	if !ok {
		ctx.FireReadException(fmt.Errorf("line codec: expected []byte, got %T", msg))
		return
	}

	lc.buf = append(lc.buf, data...)
	for {
		i := bytes.IndexByte(lc.buf, '\n')
		if i < 0 {
			if len(lc.buf) > lc.maxLineLength {
				lc.buf = nil
				ctx.FireReadException(ErrLineTooLong)
			}
			return
		}
		line := lc.buf[:i]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(line) > lc.maxLineLength {
			lc.buf = nil
			ctx.FireReadException(ErrLineTooLong)
			return
		}
		out := make([]byte, len(line))
		copy(out, line)
		lc.buf = lc.buf[i+1:]
		ctx.FireRead(out)
	}
}

// Write appends the line delimiter to the outbound payload.
func (lc *LineCodec) Write(ctx pipeline.OutboundContext, msg any) *pipeline.Future {
	data, ok := msg.([]byte)
	if !ok {
		return pipeline.FailedFuture(fmt.Errorf("line codec: expected []byte, got %T", msg))
	}
	out := make([]byte, 0, len(data)+1)
	out = append(out, data...)
	out = append(out, '\n')
	return ctx.FireWrite(out)
}
