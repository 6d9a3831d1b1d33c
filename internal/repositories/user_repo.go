package repositories

import (
	"context"
	"errors"

	"github.com/bookcircle/backend/internal/apperr"
	"github.com/bookcircle/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserRepo struct {
	db DBTX
}

func NewUserRepo(db DBTX) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, password_hash, display_name, avatar_url, district, credit_balance, created_at, last_active_at`

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, display_name, avatar_url, district, credit_balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, last_active_at
	`, u.Email, u.PasswordHash, u.DisplayName, u.AvatarURL, u.District, u.CreditBalance,
	).Scan(&u.ID, &u.CreatedAt, &u.LastActiveAt)
}

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *UserRepo) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_active_at = now() WHERE id = $1`, id)
	return err
}

func (r *UserRepo) scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.AvatarURL,
		&u.District, &u.CreditBalance, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
