package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer type keys, used to resolve the polymorphic (offer_type, offer_id)
// reference on a transaction.
const (
	OfferTypeBook = "book_offer"
)

// Book conditions.
const (
	ConditionNew        = "new"
	ConditionVeryGood   = "very_good"
	ConditionGood       = "good"
	ConditionAcceptable = "acceptable"
)

func IsValidOfferCondition(c string) bool {
	switch c {
	case ConditionNew, ConditionVeryGood, ConditionGood, ConditionAcceptable:
		return true
	}
	return false
}

// BookOffer is a single physical book copy listed for exchange.
type BookOffer struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	Title         string    `json:"title"`
	Author        *string   `json:"author,omitempty"`
	OpenLibraryID *string   `json:"open_library_id,omitempty"`
	CoverImageURL *string   `json:"cover_image_url,omitempty"`
	Condition     *string   `json:"condition,omitempty"`
	District      *string   `json:"district,omitempty"`
	IsAvailable   bool      `json:"is_available"`

	// Reservation window while a negotiation is live. Display-level
	// only; the engine's uniqueness invariant does not depend on it.
	ReservedUntil    *time.Time `json:"reserved_until,omitempty"`
	ReservedByUserID *uuid.UUID `json:"reserved_by_user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
