package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction statuses. The literal values are persisted and must stay
// stable for existing rows.
const (
	TransactionStatusPending       = "pending"
	TransactionStatusAccepted      = "accepted"
	TransactionStatusTimeConfirmed = "time_confirmed"
	TransactionStatusCompleted     = "completed"
	TransactionStatusCancelled     = "cancelled"
	TransactionStatusRejected      = "rejected"
	TransactionStatusExpired       = "expired"
)

// Transaction types.
const (
	TransactionTypeBookExchange      = "book_exchange"
	TransactionTypeServiceMeetup     = "service_meetup"
	TransactionTypeEventConfirmation = "event_confirmation"
)

// MaxProposedTimes caps the candidate meeting times per transaction.
const MaxProposedTimes = 10

// Valid state transitions: from -> []to. The engine never writes
// "expired" itself (expiry is evaluated lazily), but the edge is kept so
// an external janitor marking stale rows stays within the machine.
var ValidTransactionTransitions = map[string][]string{
	TransactionStatusPending: {
		TransactionStatusAccepted,
		TransactionStatusRejected,
		TransactionStatusTimeConfirmed,
		TransactionStatusCancelled,
		TransactionStatusExpired,
	},
	TransactionStatusAccepted: {
		TransactionStatusTimeConfirmed,
		TransactionStatusCancelled,
		TransactionStatusExpired,
	},
	TransactionStatusTimeConfirmed: {
		TransactionStatusCompleted,
		TransactionStatusCancelled,
		TransactionStatusExpired,
	},
	TransactionStatusCompleted: {},
	TransactionStatusCancelled: {},
	TransactionStatusRejected:  {},
	TransactionStatusExpired:   {},
}

func IsValidTransactionTransition(from, to string) bool {
	allowed, ok := ValidTransactionTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsValidTransactionType(t string) bool {
	switch t {
	case TransactionTypeBookExchange, TransactionTypeServiceMeetup, TransactionTypeEventConfirmation:
		return true
	}
	return false
}

// TransactionMetadata carries the free-form annotations that accumulate
// over a negotiation. Extra keeps unknown keys round-tripping.
type TransactionMetadata struct {
	OfferTitle         string         `json:"offer_title,omitempty"`
	OfferCondition     *string        `json:"offer_condition,omitempty"`
	InitialMessage     string         `json:"initial_message,omitempty"`
	RejectionReason    *string        `json:"rejection_reason,omitempty"`
	CancellationReason *string        `json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID     `json:"cancelled_by,omitempty"`
	RequesterNote      *string        `json:"requester_note,omitempty"`
	ProviderNote       *string        `json:"provider_note,omitempty"`
	Extra              map[string]any `json:"extra,omitempty"`
}

// ExchangeTransaction is the negotiation record between a requester and
// the provider of a listed offer. It is never deleted; it ends in one of
// the four terminal statuses and stays as history.
type ExchangeTransaction struct {
	ID              uuid.UUID `json:"id"`
	MessageID       uuid.UUID `json:"message_id"`
	TransactionType string    `json:"transaction_type"`
	OfferType       string    `json:"offer_type"`
	OfferID         uuid.UUID `json:"offer_id"`
	RequesterID     uuid.UUID `json:"requester_id"`
	ProviderID      uuid.UUID `json:"provider_id"`
	Status          string    `json:"status"`

	CreatedAt       time.Time  `json:"created_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	TimeConfirmedAt *time.Time `json:"time_confirmed_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`

	ProposedTimes []time.Time `json:"proposed_times"`
	ConfirmedTime *time.Time  `json:"confirmed_time,omitempty"`
	ExactAddress  *string     `json:"exact_address,omitempty"`

	RequesterConfirmedHandover bool `json:"requester_confirmed_handover"`
	ProviderConfirmedHandover  bool `json:"provider_confirmed_handover"`

	CreditAmount      int  `json:"credit_amount"`
	CreditTransferred bool `json:"credit_transferred"`

	Metadata TransactionMetadata `json:"metadata"`
}

func (t *ExchangeTransaction) IsParticipant(userID uuid.UUID) bool {
	return userID == t.RequesterID || userID == t.ProviderID
}

func (t *ExchangeTransaction) IsTerminal() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusCancelled,
		TransactionStatusRejected, TransactionStatusExpired:
		return true
	}
	return false
}

// IsExpired reports whether the negotiation window has passed. Expiry is
// a derived predicate, not a stored status change.
func (t *ExchangeTransaction) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *ExchangeTransaction) CanBeUpdated(now time.Time) bool {
	switch t.Status {
	case TransactionStatusPending, TransactionStatusAccepted, TransactionStatusTimeConfirmed:
		return !t.IsExpired(now)
	}
	return false
}

// HasProposedTime reports whether ts already appears in the proposal
// list. Comparison is instant-based, so the same moment in a different
// zone counts as a duplicate.
func (t *ExchangeTransaction) HasProposedTime(ts time.Time) bool {
	for _, p := range t.ProposedTimes {
		if p.Equal(ts) {
			return true
		}
	}
	return false
}
