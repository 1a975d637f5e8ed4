// Package message defines the envelope that flows between publishers,
// the replay ring, the ingest queue, and subscriber sinks.
package message

import (
	"encoding/json"
	"time"
)

// Message is an immutable envelope for one published payload. The core
// never inspects Payload; it is opaque structured JSON passed through
// unmodified from publisher to subscriber.
type Message struct {
	Topic       string
	ID          string
	Payload     json.RawMessage
	PublishedAt time.Time
}

// New builds a Message. PublishedAt is stamped by the caller so latency
// accounting reflects the moment the topic accepted the publish, not
// when the message happens to be marshaled later.
func New(topic, id string, payload json.RawMessage, publishedAt time.Time) Message {
	return Message{
		Topic:       topic,
		ID:          id,
		Payload:     payload,
		PublishedAt: publishedAt,
	}
}
