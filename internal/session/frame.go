package session

import "encoding/json"

// Inbound frame kinds, per spec.md section 6.
const (
	KindSubscribe   = "subscribe"
	KindUnsubscribe = "unsubscribe"
	KindPublish     = "publish"
	KindPing        = "ping"
)

// Outbound frame kinds.
const (
	KindInfo  = "info"
	KindAck   = "ack"
	KindError = "error"
	KindPong  = "pong"
	KindEvent = "event"
)

// Error codes surfaced in outbound error frames.
const (
	ErrCodeTopicNotFound    = "TOPIC_NOT_FOUND"
	ErrCodeNotSubscribed    = "NOT_SUBSCRIBED"
	ErrCodeInvalidJSON      = "INVALID_JSON"
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeValidationError  = "VALIDATION_ERROR"
	ErrCodeUnknownFrameKind = "UNKNOWN_MESSAGE_TYPE"
	ErrCodeInternal         = "INTERNAL"
)

// inboundEnvelope is decoded first to read the frame kind before
// unmarshaling kind-specific fields.
type inboundEnvelope struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	LastN int             `json:"last_n"`
	Data  json.RawMessage `json:"data"`
}

// outboundFrame is the single wire shape for every server->client frame.
// Fields irrelevant to a given kind are simply omitted by the zero
// value + omitempty.
type outboundFrame struct {
	Type        string          `json:"type"`
	Message     string          `json:"message,omitempty"`
	RequestType string          `json:"request_type,omitempty"`
	Topic       string          `json:"topic,omitempty"`
	Code        string          `json:"code,omitempty"`
	Details     any             `json:"details,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	MessageID   string          `json:"message_id,omitempty"`
}

func infoFrame(message string) outboundFrame {
	return outboundFrame{Type: KindInfo, Message: message}
}

func ackFrame(requestType, topic, message string) outboundFrame {
	return outboundFrame{Type: KindAck, RequestType: requestType, Topic: topic, Message: message}
}

func errorFrame(code, message string, details any) outboundFrame {
	return outboundFrame{Type: KindError, Code: code, Message: message, Details: details}
}

func pongFrame() outboundFrame {
	return outboundFrame{Type: KindPong}
}

func eventFrame(topic string, data json.RawMessage, messageID string) outboundFrame {
	return outboundFrame{Type: KindEvent, Topic: topic, Data: data, MessageID: messageID}
}
