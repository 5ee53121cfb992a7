package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Realtime event names consumed by the web tier's socket gateway.
const (
	EventPhotosApproved    = "account:photosApproved"
	EventPhotosNotApproved = "account:photosNotApproved"
)

// Emitter delivers a realtime event to a connected user. Fire-and-forget:
// the pipeline never waits for delivery acknowledgment.
type Emitter interface {
	Emit(userID uuid.UUID, event string, payload any) error
}

// NATSEmitter publishes events on a per-user subject; the socket gateway
// subscribes to user.* and fans out to connections.
type NATSEmitter struct {
	conn *nats.Conn
}

func NewNATSEmitter(conn *nats.Conn) *NATSEmitter {
	return &NATSEmitter{conn: conn}
}

type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func (e *NATSEmitter) Emit(userID uuid.UUID, event string, payload any) error {
	data, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("user.%s.events", userID)
	if err := e.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}
