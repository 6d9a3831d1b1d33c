package repositories

import (
	"context"
	"errors"

	"github.com/bookcircle/backend/internal/apperr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreditRepo is the credit ledger over the users table. Transfer must
// run inside the caller's storage transaction to be atomic with the
// status write that triggers it.
type CreditRepo struct {
	db DBTX
}

func NewCreditRepo(db DBTX) *CreditRepo {
	return &CreditRepo{db: db}
}

func (r *CreditRepo) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var balance int
	err := r.db.QueryRow(ctx, `SELECT credit_balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperr.ErrUserNotFound
		}
		return 0, err
	}
	return balance, nil
}

func (r *CreditRepo) Transfer(ctx context.Context, from, to uuid.UUID, amount int) error {
	if amount <= 0 {
		return apperr.New(apperr.CodeValidation, "credit amount must be positive")
	}

	// Guarded debit: the balance check and the decrement are one
	// statement, so two racing transfers cannot both pass.
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET credit_balance = credit_balance - $1
		WHERE id = $2 AND credit_balance >= $1
	`, amount, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrInsufficientCredit
	}

	tag, err = r.db.Exec(ctx, `
		UPDATE users SET credit_balance = credit_balance + $1 WHERE id = $2
	`, amount, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}
