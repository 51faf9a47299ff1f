package ws

import (
	"time"

	"avalon/internal/app"
)

// MessageType represents the type of a message pushed to local subscribers
type MessageType string

// Subscriber → client message types
const (
	MsgPing MessageType = "ping"
)

// Client → subscriber message types
const (
	MsgConnected MessageType = "connected"
	MsgView      MessageType = "view"
	MsgChat      MessageType = "chat"
	MsgAlert     MessageType = "alert"
	MsgError     MessageType = "error"
	MsgPong      MessageType = "pong"
)

// ClientMessage represents a message from a subscriber
type ClientMessage struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// ServerMessage represents a message pushed to a subscriber
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new message with current timestamp
func NewServerMessage(msgType MessageType, payload any) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ConnectedPayload is the payload for connected message
type ConnectedPayload struct {
	SubscriberID string   `json:"subscriberId"`
	View         app.View `json:"view"`
}

// AlertPayload is the payload for alert message
type AlertPayload struct {
	Message string `json:"message"`
}

// ErrorPayload is the payload for error message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
)
