// Package codec provides pipeline handlers that convert between raw byte
// streams and framed messages
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/orian/wangle/pipeline"
)

const (
	frameHeaderSize   = 4
	frameChecksumSize = 8

	// DefaultMaxFrameSize bounds frames to 1 MiB unless configured
	// otherwise.
	DefaultMaxFrameSize = 1 << 20
)

// FrameOption configures a FrameCodec
type FrameOption func(*FrameCodec)

// WithMaxFrameSize sets the maximum accepted frame payload size.
func WithMaxFrameSize(size uint32) FrameOption {
	return func(fc *FrameCodec) {
		fc.maxFrameSize = size
	}
}

// WithChecksum appends a 64-bit xxh3 checksum to every outbound frame and
// verifies it on every inbound frame.
func WithChecksum() FrameOption {
	return func(fc *FrameCodec) {
		fc.checksum = true
	}
}

// FrameCodec is a both-direction handler that frames the byte stream.
// Inbound it accumulates raw bytes and emits complete length-prefixed
// payloads (uint32 big-endian length, optionally followed by an xxh3
// checksum of the payload); outbound it prepends the prefix and appends the
// checksum. Oversized frames and checksum mismatches are fired down the
// chain as data-path errors, and the accumulated stream is discarded since
// frame boundaries can no longer be trusted.
type FrameCodec struct {
	pipeline.DuplexHandlerAdapter

	maxFrameSize uint32
	checksum     bool

	// buf accumulates inbound bytes until at least one frame is complete.
	buf []byte
}

// NewFrameCodec creates a frame codec with the given options.
func NewFrameCodec(opts ...FrameOption) *FrameCodec {
	fc := &FrameCodec{maxFrameSize: DefaultMaxFrameSize}
	for _, opt := range opts {
		opt(fc)
	}
	return fc
}

// Read accumulates raw bytes and fires every complete frame payload.
func (fc *FrameCodec) Read(ctx pipeline.InboundContext, msg any) {
	data, ok := msg.([]byte)
	if !ok {
		ctx.FireReadException(fmt.Errorf("frame codec: expected []byte, got %T", msg))
		return
	}

	fc.buf = append(fc.buf, data...)
	for {
		if len(fc.buf) < frameHeaderSize {
			return
		}
		size := binary.BigEndian.Uint32(fc.buf)
		if size > fc.maxFrameSize {
			fc.buf = nil
			ctx.FireReadException(fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, size, fc.maxFrameSize))
			return
		}

		total := frameHeaderSize + int(size)
		if fc.checksum {
			total += frameChecksumSize
		}
		if len(fc.buf) < total {
			return
		}

		payload := fc.buf[frameHeaderSize : frameHeaderSize+int(size)]
		if fc.checksum {
			want := binary.BigEndian.Uint64(fc.buf[frameHeaderSize+int(size):])
			if xxh3.Hash(payload) != want {
				fc.buf = nil
				ctx.FireReadException(ErrChecksumMismatch)
				return
			}
		}

		frame := make([]byte, len(payload))
		copy(frame, payload)
		fc.buf = fc.buf[total:]
		ctx.FireRead(frame)
	}
}

// Write frames the outbound payload.
func (fc *FrameCodec) Write(ctx pipeline.OutboundContext, msg any) *pipeline.Future {
	data, ok := msg.([]byte)
	if !ok {
		return pipeline.FailedFuture(fmt.Errorf("frame codec: expected []byte, got %T", msg))
	}
	if uint64(len(data)) > uint64(fc.maxFrameSize) {
		return pipeline.FailedFuture(fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, len(data), fc.maxFrameSize))
	}

	total := frameHeaderSize + len(data)
	if fc.checksum {
		total += frameChecksumSize
	}
	out := make([]byte, total)
	binary.BigEndian.PutUint32(out, uint32(len(data)))
	copy(out[frameHeaderSize:], data)
	if fc.checksum {
		binary.BigEndian.PutUint64(out[frameHeaderSize+len(data):], xxh3.Hash(data))
	}
	return ctx.FireWrite(out)
}
