package repositories

import (
	"context"
	"time"

	"github.com/bookcircle/backend/internal/models"
	"github.com/bookcircle/backend/internal/offers"
	"github.com/google/uuid"
)

// TransactionStore persists exchange transactions.
type TransactionStore interface {
	Create(ctx context.Context, t *models.ExchangeTransaction) error
	Get(ctx context.Context, id uuid.UUID) (*models.ExchangeTransaction, error)
	// GetForUpdate locks the row for the remainder of the surrounding
	// storage transaction, serialising concurrent transitions.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeTransaction, error)
	Update(ctx context.Context, t *models.ExchangeTransaction) error
	// FindActive returns the live (pending/accepted/time_confirmed)
	// transaction for an offer+requester pair, or nil.
	FindActive(ctx context.Context, offerType string, offerID, requesterID uuid.UUID) (*models.ExchangeTransaction, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID, status *string, limit int) ([]models.ExchangeTransaction, error)
}

// CreditLedger holds per-user integer credit balances.
type CreditLedger interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	// Transfer debits from and credits to atomically within the
	// caller's storage transaction. A shortfall fails with
	// insufficient_credit and moves nothing.
	Transfer(ctx context.Context, from, to uuid.UUID, amount int) error
}

// MessageBinding manages the conversation message a transaction is
// anchored to.
type MessageBinding interface {
	// Create inserts the anchor message, finding or creating the
	// two-party conversation when conversationID is uuid.Nil.
	Create(ctx context.Context, conversationID, senderID, peerID uuid.UUID, content string) (uuid.UUID, error)
	UpdateSnapshot(ctx context.Context, messageID uuid.UUID, view *models.TransactionView) error
}

// OfferResolver resolves and mutates the polymorphic offer reference.
// Satisfied by *offers.Registry.
type OfferResolver interface {
	GetOfferInfo(ctx context.Context, offerType string, id uuid.UUID) (*offers.Info, error)
	Reserve(ctx context.Context, offerType string, id, userID uuid.UUID, until time.Time) error
	Release(ctx context.Context, offerType string, id uuid.UUID) error
	MarkUnavailable(ctx context.Context, offerType string, id uuid.UUID) error
}

// UserDirectory reads user records for display and auth.
type UserDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	Touch(ctx context.Context, id uuid.UUID) error
}

// AuditTrail records transition history.
type AuditTrail interface {
	Log(ctx context.Context, entry models.AuditLog) error
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}

// Datastore bundles the repositories over one querier. WithinTx runs fn
// against a datastore bound to a single storage transaction; every
// engine mutation goes through it so transitions are all-or-nothing.
type Datastore interface {
	Transactions() TransactionStore
	Credits() CreditLedger
	Messages() MessageBinding
	Offers() OfferResolver
	Users() UserDirectory
	Audit() AuditTrail
	WithinTx(ctx context.Context, fn func(Datastore) error) error
}
