// Package subscriber implements the Subscriber Handle: the core's view
// of one attached consumer, decoupled from whatever wire protocol the
// session layer speaks.
package subscriber

import (
	"context"
	"sync/atomic"

	"pubsub-broker/internal/message"
)

// Sink is the outbound delivery surface a Handle forwards batches to.
// It is opaque to the core: the only contract is that Send is safe to
// call from the delivery worker and that one call completes (success,
// error, or ctx cancellation) before the next is issued for the same
// Handle — Topic.flush (internal/topic/worker.go) honors "one send_batch
// at a time per subscriber" by
// construction, never starting a second send before the first returns.
type Sink interface {
	Send(ctx context.Context, batch []message.Message) error
}

// Handle represents one attached consumer on one topic: a client id, a
// sink, and a closed flag. Grounded on
// original_source/pubsub-system/src/topics/subscriber.py, translated
// from a bare Python bool under the topic's lock to an atomic.Bool so
// IsClosed can be read from the flush fan-out goroutines without
// contending on the topic mutex.
type Handle struct {
	clientID string
	sink     Sink
	closed   atomic.Bool
}

// New creates a Handle bound to one client id and sink.
func New(clientID string, sink Sink) *Handle {
	return &Handle{clientID: clientID, sink: sink}
}

// ClientID returns the handle's client id.
func (h *Handle) ClientID() string { return h.clientID }

// IsClosed reports whether the handle has been closed.
func (h *Handle) IsClosed() bool { return h.closed.Load() }

// Close marks the handle closed. Idempotent.
func (h *Handle) Close() { h.closed.Store(true) }

// SendBatch attempts to emit every message in batch, in order, through
// the sink. It returns true iff every message was accepted. Any sink
// error — including ctx expiring, which the caller uses to enforce the
// per-subscriber send timeout — closes the handle and returns false.
func (h *Handle) SendBatch(ctx context.Context, batch []message.Message) bool {
	if h.IsClosed() {
		return false
	}
	if err := h.sink.Send(ctx, batch); err != nil {
		h.Close()
		return false
	}
	return true
}
