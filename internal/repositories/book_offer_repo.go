package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/bookcircle/backend/internal/apperr"
	"github.com/bookcircle/backend/internal/models"
	"github.com/bookcircle/backend/internal/offers"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BookOfferRepo persists book offers and implements offers.Resource for
// the "book_offer" variant.
type BookOfferRepo struct {
	db DBTX
}

func NewBookOfferRepo(db DBTX) *BookOfferRepo {
	return &BookOfferRepo{db: db}
}

func (r *BookOfferRepo) Type() string { return models.OfferTypeBook }

const bookOfferColumns = `id, owner_id, title, author, open_library_id, cover_image_url,
	condition, district, is_available, reserved_until, reserved_by_user_id, created_at`

func (r *BookOfferRepo) Create(ctx context.Context, o *models.BookOffer) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO book_offers (owner_id, title, author, open_library_id, cover_image_url, condition, district, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING id, is_available, created_at
	`, o.OwnerID, o.Title, o.Author, o.OpenLibraryID, o.CoverImageURL, o.Condition, o.District,
	).Scan(&o.ID, &o.IsAvailable, &o.CreatedAt)
}

func (r *BookOfferRepo) Get(ctx context.Context, id uuid.UUID) (*models.BookOffer, error) {
	var o models.BookOffer
	err := r.db.QueryRow(ctx, `SELECT `+bookOfferColumns+` FROM book_offers WHERE id = $1`, id).
		Scan(&o.ID, &o.OwnerID, &o.Title, &o.Author, &o.OpenLibraryID, &o.CoverImageURL,
			&o.Condition, &o.District, &o.IsAvailable, &o.ReservedUntil, &o.ReservedByUserID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrOfferNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *BookOfferRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.BookOffer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookOfferColumns+` FROM book_offers
		WHERE owner_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.BookOffer
	for rows.Next() {
		var o models.BookOffer
		if err := rows.Scan(&o.ID, &o.OwnerID, &o.Title, &o.Author, &o.OpenLibraryID, &o.CoverImageURL,
			&o.Condition, &o.District, &o.IsAvailable, &o.ReservedUntil, &o.ReservedByUserID, &o.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// --- offers.Resource ---

func (r *BookOfferRepo) GetInfo(ctx context.Context, id uuid.UUID) (*offers.Info, error) {
	o, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	display := "unknown district"
	if o.District != nil {
		display = *o.District
	}
	return &offers.Info{
		OwnerID:        o.OwnerID,
		IsAvailable:    o.IsAvailable,
		Title:          o.Title,
		ThumbnailURL:   o.CoverImageURL,
		Condition:      o.Condition,
		DisplayAddress: display,
	}, nil
}

func (r *BookOfferRepo) Reserve(ctx context.Context, id, userID uuid.UUID, until time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE book_offers SET reserved_until = $1, reserved_by_user_id = $2 WHERE id = $3
	`, until, userID, id)
	return err
}

func (r *BookOfferRepo) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE book_offers SET reserved_until = NULL, reserved_by_user_id = NULL WHERE id = $1
	`, id)
	return err
}

func (r *BookOfferRepo) MarkUnavailable(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE book_offers
		SET is_available = false, reserved_until = NULL, reserved_by_user_id = NULL
		WHERE id = $1
	`, id)
	return err
}

// --- metadata enrichment (worker) ---

func (r *BookOfferRepo) ListMissingMetadata(ctx context.Context, limit int) ([]models.BookOffer, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+bookOfferColumns+` FROM book_offers
		WHERE open_library_id IS NOT NULL AND (cover_image_url IS NULL OR author IS NULL)
		ORDER BY created_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.BookOffer
	for rows.Next() {
		var o models.BookOffer
		if err := rows.Scan(&o.ID, &o.OwnerID, &o.Title, &o.Author, &o.OpenLibraryID, &o.CoverImageURL,
			&o.Condition, &o.District, &o.IsAvailable, &o.ReservedUntil, &o.ReservedByUserID, &o.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

func (r *BookOfferRepo) UpdateMetadata(ctx context.Context, id uuid.UUID, author, coverURL *string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE book_offers
		SET author = COALESCE($1, author), cover_image_url = COALESCE($2, cover_image_url)
		WHERE id = $3
	`, author, coverURL, id)
	return err
}
