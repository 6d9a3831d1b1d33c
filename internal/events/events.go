package events

import "context"

// Event types
const (
	EventTransactionCreated       = "transaction_created"
	EventTransactionStatusChanged = "transaction_status_changed"
	EventTimeProposed             = "time_proposed"
	EventTimeConfirmed            = "time_confirmed"
	EventHandoverConfirmed        = "handover_confirmed"
)

// StreamTransactions carries all negotiation events; the websocket hub
// fans them out to the two participants named in the payload.
const StreamTransactions = "events:transaction"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
