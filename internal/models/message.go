package models

import (
	"time"

	"github.com/google/uuid"
)

// Message types.
const (
	MessageTypeText        = "text"
	MessageTypeTransaction = "transaction"
)

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a conversation entry. A transaction message additionally
// carries the latest display snapshot of its bound transaction.
type Message struct {
	ID              uuid.UUID        `json:"id"`
	ConversationID  uuid.UUID        `json:"conversation_id"`
	SenderID        uuid.UUID        `json:"sender_id"`
	MessageType     string           `json:"message_type"`
	Content         string           `json:"content"`
	TransactionData *TransactionView `json:"transaction_data,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}
