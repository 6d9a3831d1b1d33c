package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bookcircle/backend/internal/apperr"
	"github.com/bookcircle/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type MessageRepo struct {
	db DBTX
}

func NewMessageRepo(db DBTX) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create inserts the transaction anchor message. When conversationID is
// uuid.Nil it finds the existing two-party conversation between sender
// and peer, creating one if none exists.
func (r *MessageRepo) Create(ctx context.Context, conversationID, senderID, peerID uuid.UUID, content string) (uuid.UUID, error) {
	if conversationID == uuid.Nil {
		var err error
		conversationID, err = r.ensureConversation(ctx, senderID, peerID)
		if err != nil {
			return uuid.Nil, err
		}
	}

	var messageID uuid.UUID
	err := r.db.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, message_type, content, transaction_data)
		VALUES ($1, $2, $3, $4, '{}'::jsonb)
		RETURNING id
	`, conversationID, senderID, models.MessageTypeTransaction, content).Scan(&messageID)
	if err != nil {
		return uuid.Nil, err
	}
	return messageID, nil
}

func (r *MessageRepo) UpdateSnapshot(ctx context.Context, messageID uuid.UUID, view *models.TransactionView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE messages SET transaction_data = $1 WHERE id = $2
	`, data, messageID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrMessageNotFound
	}
	return nil
}

func (r *MessageRepo) ensureConversation(ctx context.Context, a, b uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
		SELECT cp.conversation_id
		FROM conversation_participants cp
		WHERE cp.user_id IN ($1, $2)
		GROUP BY cp.conversation_id
		HAVING count(DISTINCT cp.user_id) = 2
		LIMIT 1
	`, a, b).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, err
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO conversations (is_active) VALUES (true) RETURNING id
	`).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2), ($1, $3)
	`, id, a, b)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
