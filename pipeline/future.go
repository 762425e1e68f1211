// Package pipeline provides the completion handle for outbound operations
package pipeline

import (
	"context"
	"sync"
)

// Future is the completion handle returned by outbound pipeline operations.
// It is fulfilled exactly once, by whichever handler terminates the outbound
// chain (typically a transport adapter). Waiters observe completion through
// Done or Wait; Err is only meaningful once Done is closed.
type Future struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewFuture creates an unfulfilled future. The producer side fulfills it
// with Complete.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// CompletedFuture returns a future that has already succeeded.
func CompletedFuture() *Future {
	f := NewFuture()
	f.Complete(nil)
	return f
}

// FailedFuture returns a future that has already failed with err.
func FailedFuture(err error) *Future {
	f := NewFuture()
	f.Complete(err)
	return f
}

// Complete fulfills the future. A nil err marks success. Only the first
// call has any effect.
func (f *Future) Complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the future is fulfilled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the completion error, or nil on success. It must only be
// called after Done is closed.
func (f *Future) Err() error {
	return f.err
}

// Completed reports whether the future has been fulfilled.
func (f *Future) Completed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future is fulfilled or the context is canceled, and
// returns the completion error or the context error.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
