package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bookcircle/backend/internal/apperr"
	"github.com/bookcircle/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `
	id, message_id, transaction_type, offer_type, offer_id,
	requester_id, provider_id, status,
	created_at, accepted_at, time_confirmed_at, completed_at, expires_at,
	proposed_times, confirmed_time, exact_address,
	requester_confirmed_handover, provider_confirmed_handover,
	credit_amount, credit_transferred, metadata`

type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func (r *TransactionRepo) Create(ctx context.Context, t *models.ExchangeTransaction) error {
	timesBytes, _ := json.Marshal(t.ProposedTimes)
	metaBytes, _ := json.Marshal(t.Metadata)
	return r.db.QueryRow(ctx, `
		INSERT INTO exchange_transactions (
			message_id, transaction_type, offer_type, offer_id,
			requester_id, provider_id, status,
			created_at, expires_at, proposed_times, exact_address,
			credit_amount, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, t.MessageID, t.TransactionType, t.OfferType, t.OfferID,
		t.RequesterID, t.ProviderID, t.Status,
		t.CreatedAt, t.ExpiresAt, timesBytes, t.ExactAddress,
		t.CreditAmount, metaBytes,
	).Scan(&t.ID)
}

func (r *TransactionRepo) Get(ctx context.Context, id uuid.UUID) (*models.ExchangeTransaction, error) {
	return r.get(ctx, id, false)
}

func (r *TransactionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeTransaction, error) {
	return r.get(ctx, id, true)
}

func (r *TransactionRepo) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.ExchangeTransaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM exchange_transactions WHERE id = $1`, transactionColumns)
	if forUpdate {
		query += " FOR UPDATE"
	}
	t, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *TransactionRepo) Update(ctx context.Context, t *models.ExchangeTransaction) error {
	timesBytes, _ := json.Marshal(t.ProposedTimes)
	metaBytes, _ := json.Marshal(t.Metadata)
	_, err := r.db.Exec(ctx, `
		UPDATE exchange_transactions SET
			status = $1,
			accepted_at = $2, time_confirmed_at = $3, completed_at = $4,
			proposed_times = $5, confirmed_time = $6, exact_address = $7,
			requester_confirmed_handover = $8, provider_confirmed_handover = $9,
			credit_transferred = $10, metadata = $11
		WHERE id = $12
	`, t.Status,
		t.AcceptedAt, t.TimeConfirmedAt, t.CompletedAt,
		timesBytes, t.ConfirmedTime, t.ExactAddress,
		t.RequesterConfirmedHandover, t.ProviderConfirmedHandover,
		t.CreditTransferred, metaBytes, t.ID)
	return err
}

func (r *TransactionRepo) FindActive(ctx context.Context, offerType string, offerID, requesterID uuid.UUID) (*models.ExchangeTransaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM exchange_transactions
		WHERE offer_type = $1 AND offer_id = $2 AND requester_id = $3
		  AND status IN ($4, $5, $6)
		LIMIT 1
	`, transactionColumns)
	t, err := scanTransaction(r.db.QueryRow(ctx, query, offerType, offerID, requesterID,
		models.TransactionStatusPending, models.TransactionStatusAccepted, models.TransactionStatusTimeConfirmed))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *TransactionRepo) ListByParticipant(ctx context.Context, userID uuid.UUID, status *string, limit int) ([]models.ExchangeTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM exchange_transactions
		WHERE (requester_id = $1 OR provider_id = $1)
	`, transactionColumns)
	args := []any{userID}
	if status != nil {
		query += " AND status = $2"
		args = append(args, *status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.ExchangeTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func scanTransaction(row pgx.Row) (*models.ExchangeTransaction, error) {
	var t models.ExchangeTransaction
	var timesBytes, metaBytes []byte
	err := row.Scan(
		&t.ID, &t.MessageID, &t.TransactionType, &t.OfferType, &t.OfferID,
		&t.RequesterID, &t.ProviderID, &t.Status,
		&t.CreatedAt, &t.AcceptedAt, &t.TimeConfirmedAt, &t.CompletedAt, &t.ExpiresAt,
		&timesBytes, &t.ConfirmedTime, &t.ExactAddress,
		&t.RequesterConfirmedHandover, &t.ProviderConfirmedHandover,
		&t.CreditAmount, &t.CreditTransferred, &metaBytes,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(timesBytes, &t.ProposedTimes)
	_ = json.Unmarshal(metaBytes, &t.Metadata)
	return &t, nil
}
