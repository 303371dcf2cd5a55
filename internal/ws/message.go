package ws

import (
	"encoding/json"
	"fmt"
)

// Server to client events.
const (
	EventInitialItems     = "initial-items"
	EventItemCreated      = "item-created"
	EventItemLikeChanged  = "item-like-changed"
	EventUserLikes        = "user-likes"
	EventAggregateUpdated = "aggregate-updated"
	EventError            = "error"
)

// Client to server events.
const (
	EventCreateItem         = "create-item"
	EventToggleLike         = "toggle-like"
	EventGetUserLikes       = "get-user-likes"
	EventTriggerAggregation = "trigger-aggregation"
)

// Message is the frame exchanged on the socket in both directions.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage encodes data as the payload of an event frame.
func NewMessage(event string, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Message{Type: event, Data: raw}, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: missing data", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%s: %w", m.Type, err)
	}
	return nil
}

// ErrorPayload is sent to the one session whose request failed.
type ErrorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in ErrorPayload.
const (
	CodeBadRequest  = "bad_request"
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodePersistence = "persistence"
	CodeRateLimited = "rate_limited"
	CodeInternal    = "internal"
)

// ErrorMessage builds an error frame. It cannot fail.
func ErrorMessage(event, code, text string) Message {
	msg, _ := NewMessage(EventError, ErrorPayload{Event: event, Code: code, Message: text})
	return msg
}
