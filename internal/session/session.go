// Package session implements the duplex connection protocol: one Session
// per transport connection, dispatching inbound subscribe/unsubscribe/
// publish/ping frames and delivering published batches back out as
// event frames. Grounded on
// adred-codev-ws_poc/go-server-3/internal/session/hub.go's shape (a
// per-connection handle wrapping a bounded outbound queue), replacing
// its broadcast-to-everyone model with per-topic attach/detach against
// the registry, per spec.md section 6.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"pubsub-broker/internal/idgen"
	"pubsub-broker/internal/message"
	"pubsub-broker/internal/registry"
)

// Session is one duplex connection's protocol state: the set of topics
// it is attached to (tracked by the registry, not locally) and its
// outbound frame queue. It implements subscriber.Sink so the registry
// can deliver batches straight to it.
type Session struct {
	ClientID string
	registry *registry.Registry
	logger   *zap.Logger
	outbound chan []byte
}

// New constructs a Session with a fresh client id and starts its
// outbound queue. queueSize bounds how many serialized frames may be
// buffered for a slow transport writer before SendBatch starts failing
// (and the subscriber gets detached by the topic's flush step).
func New(reg *registry.Registry, logger *zap.Logger, queueSize int) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientID := idgen.NewClientID()
	return &Session{
		ClientID: clientID,
		registry: reg,
		logger:   logger.With(zap.String("client_id", clientID)),
		outbound: make(chan []byte, queueSize),
	}
}

// Outbound returns the channel of serialized frames the transport's
// write loop should drain.
func (s *Session) Outbound() <-chan []byte {
	return s.outbound
}

// Start enqueues the initial info frame. Must be called once, before
// the transport's write loop starts draining Outbound.
func (s *Session) Start() {
	s.enqueue(infoFrame("connected"))
}

// Close detaches this session from every topic it is attached to. The
// transport calls this once, when the connection tears down.
func (s *Session) Close() {
	s.registry.CleanupClient(s.ClientID)
}

// Send implements subscriber.Sink: it is called by a topic's flush step
// with a batch destined for this session. Each message becomes one
// event frame, enqueued in order. If the outbound queue stays full until
// ctx is done, Send returns ctx's error and the topic detaches this
// session as a slow consumer. Frames of the batch enqueued before that
// point stay queued: acceptance of a batch is not all-or-nothing.
func (s *Session) Send(ctx context.Context, batch []message.Message) error {
	for _, m := range batch {
		frame := eventFrame(m.Topic, m.Payload, m.ID)
		raw, err := json.Marshal(frame)
		if err != nil {
			return fmt.Errorf("marshal event frame: %w", err)
		}
		select {
		case s.outbound <- raw:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// HandleFrame decodes and dispatches one inbound frame. Malformed or
// unknown frames produce an error frame and never return an error
// themselves — per spec.md section 7, frame-level problems do not
// terminate the session.
func (s *Session) HandleFrame(raw []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.enqueue(errorFrame(ErrCodeInvalidJSON, "frame is not valid JSON", nil))
		return
	}

	switch env.Type {
	case KindSubscribe:
		s.handleSubscribe(env)
	case KindUnsubscribe:
		s.handleUnsubscribe(env)
	case KindPublish:
		s.handlePublish(env)
	case KindPing:
		s.enqueue(pongFrame())
	case "":
		s.enqueue(errorFrame(ErrCodeInvalidMessage, "missing frame type", nil))
	default:
		s.enqueue(errorFrame(ErrCodeUnknownFrameKind, "unknown frame type: "+env.Type, nil))
	}
}

func (s *Session) handleSubscribe(env inboundEnvelope) {
	if env.Topic == "" {
		s.enqueue(errorFrame(ErrCodeValidationError, "subscribe requires a topic", map[string]string{"field": "topic"}))
		return
	}

	replay, err := s.registry.Subscribe(env.Topic, s.ClientID, s, env.LastN)
	if err != nil {
		s.enqueue(errorFrame(ErrCodeTopicNotFound, "topic not found: "+env.Topic, nil))
		return
	}

	s.enqueue(ackFrame(KindSubscribe, env.Topic, "subscribed"))
	for _, m := range replay {
		s.enqueue(eventFrame(m.Topic, m.Payload, m.ID))
	}
}

func (s *Session) handleUnsubscribe(env inboundEnvelope) {
	if env.Topic == "" {
		s.enqueue(errorFrame(ErrCodeValidationError, "unsubscribe requires a topic", map[string]string{"field": "topic"}))
		return
	}

	removed, err := s.registry.Unsubscribe(env.Topic, s.ClientID)
	if err != nil {
		s.enqueue(errorFrame(ErrCodeTopicNotFound, "topic not found: "+env.Topic, nil))
		return
	}
	if !removed {
		s.enqueue(errorFrame(ErrCodeNotSubscribed, "not subscribed to "+env.Topic, nil))
		return
	}

	s.enqueue(ackFrame(KindUnsubscribe, env.Topic, "unsubscribed"))
}

func (s *Session) handlePublish(env inboundEnvelope) {
	if env.Topic == "" {
		s.enqueue(errorFrame(ErrCodeValidationError, "publish requires a topic", map[string]string{"field": "topic"}))
		return
	}
	if len(env.Data) == 0 {
		s.enqueue(errorFrame(ErrCodeValidationError, "publish requires data", map[string]string{"field": "data"}))
		return
	}

	if _, err := s.registry.Publish(env.Topic, env.Data); err != nil {
		s.enqueue(errorFrame(ErrCodeTopicNotFound, "topic not found: "+env.Topic, nil))
		return
	}

	s.enqueue(ackFrame(KindPublish, env.Topic, "published"))
}

func (s *Session) enqueue(frame outboundFrame) {
	raw, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("marshal outbound frame", zap.Error(err))
		return
	}
	select {
	case s.outbound <- raw:
	default:
		s.logger.Warn("outbound queue full, dropping frame", zap.String("type", frame.Type))
	}
}
