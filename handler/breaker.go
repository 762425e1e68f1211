// Package handler provides a circuit-breaking outbound handler
package handler

import (
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/orian/wangle/pipeline"
)

// Breaker is an outbound handler that gates writes behind a circuit
// breaker. Unlike most handlers, Write blocks until the downstream future
// completes, so that asynchronous transport failures count toward the
// breaker state. While the breaker is open, writes fail immediately with
// gobreaker.ErrOpenState without reaching the transport.
type Breaker struct {
	pipeline.OutboundHandlerAdapter

	cb *gobreaker.CircuitBreaker[*pipeline.Future]
}

// NewBreaker creates a breaker handler with the given settings.
func NewBreaker(settings gobreaker.Settings) *Breaker {
	return &Breaker{cb: gobreaker.NewCircuitBreaker[*pipeline.Future](settings)}
}

// DefaultBreakerSettings returns settings that trip the breaker once at
// least three requests were observed in the interval and 60% of them
// failed.
func DefaultBreakerSettings(name string, interval, timeout time.Duration) gobreaker.Settings {
	return gobreaker.Settings{
		Name:     name,
		Interval: interval,
		Timeout:  timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	}
}

// Write forwards the message through the breaker, waiting for the
// downstream result.
func (h *Breaker) Write(ctx pipeline.OutboundContext, msg any) *pipeline.Future {
	fut, err := h.cb.Execute(func() (*pipeline.Future, error) {
		f := ctx.FireWrite(msg)
		<-f.Done()
		return f, f.Err()
	})
	if fut != nil {
		return fut
	}
	return pipeline.FailedFuture(err)
}
