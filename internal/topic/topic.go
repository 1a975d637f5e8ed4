// Package topic implements the heart of the broker: a per-topic ingest
// queue, background delivery worker, replay ring, and subscriber set,
// per spec.md §4.3.
package topic

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pubsub-broker/internal/idgen"
	"pubsub-broker/internal/message"
	"pubsub-broker/internal/metrics"
	"pubsub-broker/internal/ring"
	"pubsub-broker/internal/subscriber"
)

// Topic owns one named channel's subscriber set, replay ring, ingest
// queue, delivery worker, and counters. The zero value is not usable;
// construct with New.
type Topic struct {
	name   string
	cfg    Config
	logger *zap.Logger

	// metrics is nil unless the process wired an ambient Prometheus
	// registry in (see SetMetrics); every increment site guards on it.
	metrics *metrics.Registry

	// mu guards subscribers and the rolling metric samples. Attach and
	// Publish additionally use mu to wrap their ring operation, so ring
	// append and subscriber-set insertion are ordered by one mutex —
	// the invariant spec.md §4.3 requires for the attach/replay seam.
	mu          sync.Mutex
	subscribers map[string]*subscriber.Handle
	ring        *ring.Ring

	batchSizeSamples []float64
	latencySamples   []float64

	queue chan message.Message

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64

	stopCh       chan struct{}
	doneCh       chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
}

// New constructs a Topic in the Initial state. Call Start to transition
// it to Running.
func New(name string, cfg Config, logger *zap.Logger) *Topic {
	cfg = cfg.sanitize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Topic{
		name:        name,
		cfg:         cfg,
		logger:      logger.With(zap.String("topic", name)),
		subscribers: make(map[string]*subscriber.Handle),
		ring:        ring.New(cfg.ReplayCapacity),
		queue:       make(chan message.Message, cfg.QueueCapacity),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// SetMetrics wires an ambient Prometheus registry in. Must be called
// before Start; nil is a valid (no-op) registry, matching the teacher's
// own nil-checked metrics field in session.Hub.
func (t *Topic) SetMetrics(m *metrics.Registry) {
	t.metrics = m
}

// Name returns the topic's name.
func (t *Topic) Name() string { return t.name }

// Start transitions the topic Initial -> Running by starting its
// delivery worker. Must be called at most once.
func (t *Topic) Start() {
	go t.run()
}

// Attach registers a Subscriber Handle for clientID and returns the
// replay prefix of up to lastN most-recent messages, taken atomically
// with the insertion so no message is ever missing from both the
// replay prefix and the live stream (spec.md §4.3 ordering contract).
func (t *Topic) Attach(clientID string, sink subscriber.Sink, lastN int) []message.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	replay := t.ring.LastN(lastN)
	t.subscribers[clientID] = subscriber.New(clientID, sink)
	return replay
}

// Detach removes and closes the handle for clientID, if present, and
// reports whether one was removed.
func (t *Topic) Detach(clientID string) bool {
	t.mu.Lock()
	h, ok := t.subscribers[clientID]
	if ok {
		delete(t.subscribers, clientID)
	}
	t.mu.Unlock()

	if ok {
		h.Close()
	}
	return ok
}

// Publish assigns a fresh message id, appends to the replay ring,
// offers the envelope to the ingest queue without blocking, and returns
// the subscriber count observed at publish time. The enqueue offer can
// fail under overload; the ring append never does (reference policy,
// spec.md §4.3 edge cases: "ring append always succeeds (evicting
// oldest), enqueue may fail, failed enqueue increments dropped").
func (t *Topic) Publish(payload json.RawMessage) int {
	msg := message.New(t.name, idgen.NewMessageID(), payload, time.Now())

	t.mu.Lock()
	t.ring.Append(msg)
	subCount := len(t.subscribers)
	t.mu.Unlock()

	t.published.Add(1)
	if t.metrics != nil {
		t.metrics.Messages.MessagesPublished.Inc()
	}

	select {
	case t.queue <- msg:
	default:
		t.dropped.Add(1)
		if t.metrics != nil {
			t.metrics.Messages.MessagesDropped.Inc()
		}
		t.logger.Warn("ingest queue full, dropping message", zap.String("message_id", msg.ID))
	}

	return subCount
}

// Replay returns a snapshot of the last min(lastN, size) messages.
func (t *Topic) Replay(lastN int) []message.Message {
	return t.ring.LastN(lastN)
}

// SubscriberCount returns the number of currently attached subscribers.
func (t *Topic) SubscriberCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers)
}

// Shutdown stops the delivery worker (flushing any in-flight batch),
// closes and removes every subscriber, and transitions the topic to
// Terminated. Idempotent.
func (t *Topic) Shutdown() {
	t.shutdownOnce.Do(func() {
		t.stopOnce.Do(func() { close(t.stopCh) })
		<-t.doneCh

		t.mu.Lock()
		handles := make([]*subscriber.Handle, 0, len(t.subscribers))
		for _, h := range t.subscribers {
			handles = append(handles, h)
		}
		t.subscribers = make(map[string]*subscriber.Handle)
		t.mu.Unlock()

		for _, h := range handles {
			h.Close()
		}
	})
}

// appendCapped appends v to samples and trims to the oldest-discarded
// FIFO window of at most capN entries, mirroring
// original_source/.../topic_manager.py's `self._latencies[-cap:]`
// slicing.
func appendCapped(samples []float64, v float64, capN int) []float64 {
	samples = append(samples, v)
	if len(samples) > capN {
		samples = samples[len(samples)-capN:]
	}
	return samples
}
