package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionView is the flattened display snapshot of a transaction for
// one viewer. It is recomputed on every read and also written (with a
// neutral viewer) into the bound conversation message, so the anchor
// message always reflects the latest state.
type TransactionView struct {
	TransactionID   uuid.UUID `json:"transaction_id"`
	TransactionType string    `json:"transaction_type"`
	Status          string    `json:"status"`
	OfferType       string    `json:"offer_type"`
	OfferID         uuid.UUID `json:"offer_id"`
	RequesterID     uuid.UUID `json:"requester_id"`
	ProviderID      uuid.UUID `json:"provider_id"`

	ProposedTimes []time.Time `json:"proposed_times"`
	ConfirmedTime *time.Time  `json:"confirmed_time,omitempty"`

	// ExactAddress is only populated while the meeting details are
	// relevant to both sides: time_confirmed and completed.
	ExactAddress *string `json:"exact_address,omitempty"`

	RequesterConfirmed bool `json:"requester_confirmed"`
	ProviderConfirmed  bool `json:"provider_confirmed"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsExpired bool      `json:"is_expired"`

	CanAccept          bool `json:"can_accept"`
	CanReject          bool `json:"can_reject"`
	CanProposeTime     bool `json:"can_propose_time"`
	CanConfirmTime     bool `json:"can_confirm_time"`
	CanConfirmHandover bool `json:"can_confirm_handover"`
	CanCancel          bool `json:"can_cancel"`
}
