package realtime

import (
	"context"
	"encoding/json"
)

// Lifecycle and outbound event names.
const (
	EventError             = "error"
	EventDisconnect        = "disconnect"
	EventSubscribe         = "subscribe"
	EventUpdatePreferences = "updatePreferences"
)

// Envelope is one message on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes payload as the envelope data.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// SubscribePayload is sent once per successful connection.
type SubscribePayload struct {
	UserID   string   `json:"userId"`
	Channels []string `json:"channels"`
}

// Conn is one live transport connection.
// Read is only called from a single goroutine; Write may be called concurrently.
type Conn interface {
	Read(ctx context.Context) (Envelope, error)
	Write(ctx context.Context, env Envelope) error
	Close() error
}

// Transport opens connections for a user.
type Transport interface {
	Dial(ctx context.Context, userID string) (Conn, error)
}

// Dispatcher receives domain events in arrival order.
// *notifications.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, event string, raw json.RawMessage) error
}
