package services

import (
	"context"
	"time"

	"github.com/bookcircle/backend/internal/apperr"
	"github.com/bookcircle/backend/internal/config"
	"github.com/bookcircle/backend/internal/events"
	"github.com/bookcircle/backend/internal/models"
	"github.com/bookcircle/backend/internal/offers"
	"github.com/bookcircle/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransactionService drives the negotiation lifecycle of exchange
// transactions. Every mutation runs inside one storage transaction:
// the row is locked, validated, transitioned, its message snapshot
// rewritten, and any side effects (credit transfer, offer state)
// applied — all of it commits or none of it does. Events go out only
// after a successful commit.
type TransactionService struct {
	ds        repositories.Datastore
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
	now       func() time.Time
}

func NewTransactionService(ds repositories.Datastore, publisher events.Publisher, cfg *config.Config, log *zap.Logger) *TransactionService {
	return &TransactionService{
		ds:        ds,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// TransactionDetail is the full read model for one participant.
type TransactionDetail struct {
	Transaction *models.ExchangeTransaction `json:"transaction"`
	View        *models.TransactionView     `json:"view"`
	Offer       *offers.Info                `json:"offer"`
	Requester   *models.User                `json:"requester"`
	Provider    *models.User                `json:"provider"`
}

// TransactionSummary is one row of a participant's history listing.
type TransactionSummary struct {
	View       *models.TransactionView `json:"view"`
	OfferTitle string                  `json:"offer_title"`
}

type CreateTransactionInput struct {
	ProviderID      uuid.UUID
	ConversationID  uuid.UUID
	TransactionType string
	OfferType       string
	OfferID         uuid.UUID
	InitialMessage  string
	ProposedTimes   []time.Time
	CreditAmount    int
}

// Create opens a negotiation for an offer: validates the offer is
// available and owned by the provider, refuses a second live
// transaction for the same offer+requester, anchors a conversation
// message, and reserves the offer until the negotiation window closes.
func (s *TransactionService) Create(ctx context.Context, requesterID uuid.UUID, input CreateTransactionInput) (*TransactionDetail, error) {
	if requesterID == input.ProviderID {
		return nil, apperr.New(apperr.CodeValidation, "cannot open a transaction with yourself")
	}
	if !models.IsValidTransactionType(input.TransactionType) {
		return nil, apperr.Newf(apperr.CodeValidation, "invalid transaction type %q", input.TransactionType)
	}
	if input.InitialMessage == "" {
		return nil, apperr.New(apperr.CodeValidation, "initial message is required")
	}
	if len(input.ProposedTimes) > models.MaxProposedTimes {
		return nil, apperr.Newf(apperr.CodeValidation, "at most %d proposed times allowed", models.MaxProposedTimes)
	}
	amount := input.CreditAmount
	if amount == 0 {
		amount = s.cfg.DefaultCreditAmount
	}
	if amount < 0 {
		return nil, apperr.New(apperr.CodeValidation, "credit amount must be positive")
	}

	now := s.now()
	var detail *TransactionDetail

	err := s.ds.WithinTx(ctx, func(ds repositories.Datastore) error {
		info, err := ds.Offers().GetOfferInfo(ctx, input.OfferType, input.OfferID)
		if err != nil {
			return err
		}
		if info.OwnerID != input.ProviderID {
			return apperr.New(apperr.CodeForbidden, "offer does not belong to the specified provider")
		}
		if !info.IsAvailable {
			return apperr.New(apperr.CodeValidation, "offer is no longer available")
		}

		existing, err := ds.Transactions().FindActive(ctx, input.OfferType, input.OfferID, requesterID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.New(apperr.CodeValidation, "active transaction already exists for this offer")
		}

		messageID, err := ds.Messages().Create(ctx, input.ConversationID, requesterID, input.ProviderID, input.InitialMessage)
		if err != nil {
			return err
		}

		t := &models.ExchangeTransaction{
			MessageID:       messageID,
			TransactionType: input.TransactionType,
			OfferType:       input.OfferType,
			OfferID:         input.OfferID,
			RequesterID:     requesterID,
			ProviderID:      input.ProviderID,
			Status:          models.TransactionStatusPending,
			CreatedAt:       now,
			ExpiresAt:       now.Add(s.cfg.NegotiationTTL),
			ProposedTimes:   dedupeTimes(input.ProposedTimes),
			CreditAmount:    amount,
			Metadata: models.TransactionMetadata{
				OfferTitle:     info.Title,
				OfferCondition: info.Condition,
				InitialMessage: input.InitialMessage,
			},
		}
		if err := ds.Transactions().Create(ctx, t); err != nil {
			return err
		}

		// Hold the offer for this negotiation until the window closes.
		if err := ds.Offers().Reserve(ctx, input.OfferType, input.OfferID, requesterID, t.ExpiresAt); err != nil {
			return err
		}

		if err := ds.Messages().UpdateSnapshot(ctx, messageID, Project(t, uuid.Nil, now)); err != nil {
			return err
		}

		s.audit(ctx, ds, &requesterID, "user", "transaction_created", t.ID, map[string]any{
			"offer_type": t.OfferType,
			"offer_id":   t.OfferID.String(),
		})

		detail, err = s.buildDetail(ctx, ds, t, requesterID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventTransactionCreated, detail.Transaction, nil)
	return detail, nil
}

// Accept moves a pending transaction to accepted. Provider only.
func (s *TransactionService) Accept(ctx context.Context, id, actorID uuid.UUID) (*TransactionDetail, error) {
	return s.mutate(ctx, id, actorID, "", func(ds repositories.Datastore, t *models.ExchangeTransaction, now time.Time) error {
		if actorID != t.ProviderID {
			return apperr.New(apperr.CodeForbidden, "only the provider can accept the request")
		}
		if t.Status != models.TransactionStatusPending {
			return apperr.Newf(apperr.CodeInvalidState, "cannot accept a transaction in status %s", t.Status)
		}
		if t.IsExpired(now) {
			return apperr.ErrTransactionExpired
		}
		if err := s.transition(ctx, ds, t, models.TransactionStatusAccepted, &actorID, "user"); err != nil {
			return err
		}
		t.AcceptedAt = &now
		return nil
	})
}

// Reject declines a pending transaction. Provider only; a stale pending
// request may still be rejected after its window has passed.
func (s *TransactionService) Reject(ctx context.Context, id, actorID uuid.UUID, reason *string) (*TransactionDetail, error) {
	return s.mutate(ctx, id, actorID, "", func(ds repositories.Datastore, t *models.ExchangeTransaction, now time.Time) error {
		if actorID != t.ProviderID {
			return apperr.New(apperr.CodeForbidden, "only the provider can reject the request")
		}
		if t.Status != models.TransactionStatusPending {
			return apperr.Newf(apperr.CodeInvalidState, "cannot reject a transaction in status %s", t.Status)
		}
		if err := s.transition(ctx, ds, t, models.TransactionStatusRejected, &actorID, "user"); err != nil {
			return err
		}
		t.Metadata.RejectionReason = reason
		return ds.Offers().Release(ctx, t.OfferType, t.OfferID)
	})
}

// ProposeTime appends a candidate meeting time. Either participant may
// propose while the negotiation is live; duplicates (compared as
// instants) and more than MaxProposedTimes entries are refused.
func (s *TransactionService) ProposeTime(ctx context.Context, id, actorID uuid.UUID, ts time.Time) (*TransactionDetail, error) {
	return s.mutate(ctx, id, actorID, events.EventTimeProposed, func(ds repositories.Datastore, t *models.ExchangeTransaction, now time.Time) error {
		if err := requireLive(t, now); err != nil {
			return err
		}
		if t.HasProposedTime(ts) {
			return apperr.New(apperr.CodeValidation, "this time has already been proposed")
		}
		if len(t.ProposedTimes) >= models.MaxProposedTimes {
			return apperr.Newf(apperr.CodeValidation, "at most %d proposed times allowed", models.MaxProposedTimes)
		}
		t.ProposedTimes = append(t.ProposedTimes, ts)

		s.audit(ctx, ds, &actorID, "user", "time_proposed", t.ID, map[string]any{
			"proposed_time": ts.UTC().Format(time.RFC3339),
		})
		return nil
	})
}

// ConfirmTime locks in the meeting time and exact address and moves the
// transaction to time_confirmed. The confirmed time is free-form: it
// does not have to be one of the proposed candidates, which are advisory.
func (s *TransactionService) ConfirmTime(ctx context.Context, id, actorID uuid.UUID, confirmedTime time.Time, exactAddress string) (*TransactionDetail, error) {
	if exactAddress == "" {
		return nil, apperr.New(apperr.CodeValidation, "exact address is required")
	}
	return s.mutate(ctx, id, actorID, events.EventTimeConfirmed, func(ds repositories.Datastore, t *models.ExchangeTransaction, now time.Time) error {
		if err := requireLive(t, now); err != nil {
			return err
		}
		if t.Status != models.TransactionStatusTimeConfirmed {
			if err := s.transition(ctx, ds, t, models.TransactionStatusTimeConfirmed, &actorID, "user"); err != nil {
				return err
			}
		}
		t.ConfirmedTime = &confirmedTime
		t.ExactAddress = &exactAddress
		t.TimeConfirmedAt = &now
		return nil
	})
}

// ConfirmHandover records one side's confirmation that the physical
// handover happened. Re-confirming by the same side is a no-op. Once
// both sides have confirmed, the transaction completes: the credit
// moves from requester to provider exactly once and the offer is
// retired. A failed credit transfer rolls the whole confirmation back.
func (s *TransactionService) ConfirmHandover(ctx context.Context, id, actorID uuid.UUID, note *string) (*TransactionDetail, error) {
	return s.mutate(ctx, id, actorID, events.EventHandoverConfirmed, func(ds repositories.Datastore, t *models.ExchangeTransaction, now time.Time) error {
		if t.Status != models.TransactionStatusTimeConfirmed {
			return apperr.Newf(apperr.CodeInvalidState, "cannot confirm handover in status %s", t.Status)
		}
		if t.IsExpired(now) {
			return apperr.ErrTransactionExpired
		}

		if actorID == t.RequesterID {
			t.RequesterConfirmedHandover = true
			if note != nil {
				t.Metadata.RequesterNote = note
			}
		} else {
			t.ProviderConfirmedHandover = true
			if note != nil {
				t.Metadata.ProviderNote = note
			}
		}

		s.audit(ctx, ds, &actorID, "user", "handover_confirmed", t.ID, map[string]any{
			"requester_confirmed": t.RequesterConfirmedHandover,
			"provider_confirmed":  t.ProviderConfirmedHandover,
		})

		if !t.RequesterConfirmedHandover || !t.ProviderConfirmedHandover {
			return nil
		}

		if err := s.transition(ctx, ds, t, models.TransactionStatusCompleted, &actorID, "user"); err != nil {
			return err
		}
		t.CompletedAt = &now

		// The transferred flag guards the exactly-once payout; it is
		// written in the same storage transaction as the status.
		if !t.CreditTransferred && t.CreditAmount > 0 {
			if err := ds.Credits().Transfer(ctx, t.RequesterID, t.ProviderID, t.CreditAmount); err != nil {
				return err
			}
			t.CreditTransferred = true
		}

		return ds.Offers().MarkUnavailable(ctx, t.OfferType, t.OfferID)
	})
}

// Cancel withdraws a live transaction. Either participant may cancel;
// the reason and who cancelled are kept in metadata and the offer
// reservation is released.
func (s *TransactionService) Cancel(ctx context.Context, id, actorID uuid.UUID, reason *string) (*TransactionDetail, error) {
	return s.mutate(ctx, id, actorID, "", func(ds repositories.Datastore, t *models.ExchangeTransaction, now time.Time) error {
		if err := requireLive(t, now); err != nil {
			return err
		}
		if err := s.transition(ctx, ds, t, models.TransactionStatusCancelled, &actorID, "user"); err != nil {
			return err
		}
		t.Metadata.CancellationReason = reason
		cancelledBy := actorID
		t.Metadata.CancelledBy = &cancelledBy
		return ds.Offers().Release(ctx, t.OfferType, t.OfferID)
	})
}

// Get returns the full read model for one participant.
func (s *TransactionService) Get(ctx context.Context, id, viewerID uuid.UUID) (*TransactionDetail, error) {
	t, err := s.ds.Transactions().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsParticipant(viewerID) {
		return nil, apperr.ErrNotParticipant
	}
	return s.buildDetail(ctx, s.ds, t, viewerID, s.now())
}

// List returns the viewer's transaction history, newest first.
func (s *TransactionService) List(ctx context.Context, viewerID uuid.UUID, status *string, limit int) ([]TransactionSummary, error) {
	txs, err := s.ds.Transactions().ListByParticipant(ctx, viewerID, status, limit)
	if err != nil {
		return nil, err
	}
	now := s.now()
	summaries := make([]TransactionSummary, 0, len(txs))
	for i := range txs {
		summaries = append(summaries, TransactionSummary{
			View:       Project(&txs[i], viewerID, now),
			OfferTitle: txs[i].Metadata.OfferTitle,
		})
	}
	return summaries, nil
}

// Events returns the audit trail of a transaction to its participants.
func (s *TransactionService) Events(ctx context.Context, id, viewerID uuid.UUID) ([]models.AuditLog, error) {
	t, err := s.ds.Transactions().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsParticipant(viewerID) {
		return nil, apperr.ErrNotParticipant
	}
	return s.ds.Audit().ListByEntity(ctx, "exchange_transaction", id, 100, 0)
}

// --- helpers ---

// mutate runs one locked transition: load FOR UPDATE, participant
// check, apply fn, persist, rewrite the message snapshot. After the
// commit it publishes a status change event, or sameStatusEvent when
// the operation mutated the row without changing status.
func (s *TransactionService) mutate(ctx context.Context, id, actorID uuid.UUID, sameStatusEvent string, fn func(ds repositories.Datastore, t *models.ExchangeTransaction, now time.Time) error) (*TransactionDetail, error) {
	now := s.now()
	var (
		detail    *TransactionDetail
		oldStatus string
	)

	err := s.ds.WithinTx(ctx, func(ds repositories.Datastore) error {
		t, err := ds.Transactions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !t.IsParticipant(actorID) {
			return apperr.ErrNotParticipant
		}
		oldStatus = t.Status

		if err := fn(ds, t, now); err != nil {
			return err
		}
		if err := ds.Transactions().Update(ctx, t); err != nil {
			return err
		}
		if err := ds.Messages().UpdateSnapshot(ctx, t.MessageID, Project(t, uuid.Nil, now)); err != nil {
			return err
		}

		detail, err = s.buildDetail(ctx, ds, t, actorID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if detail.Transaction.Status != oldStatus {
		s.publish(ctx, events.EventTransactionStatusChanged, detail.Transaction, map[string]any{
			"old_status": oldStatus,
		})
	} else if sameStatusEvent != "" {
		s.publish(ctx, sameStatusEvent, detail.Transaction, nil)
	}
	return detail, nil
}

// transition validates and performs a status transition with audit logging.
func (s *TransactionService) transition(ctx context.Context, ds repositories.Datastore, t *models.ExchangeTransaction, newStatus string, actorID *uuid.UUID, actorType string) error {
	if !models.IsValidTransactionTransition(t.Status, newStatus) {
		return apperr.Newf(apperr.CodeInvalidState, "cannot transition from %s to %s", t.Status, newStatus)
	}
	oldStatus := t.Status
	t.Status = newStatus

	s.audit(ctx, ds, actorID, actorType, "transaction_status_"+oldStatus+"_to_"+newStatus, t.ID, map[string]any{
		"old_status": oldStatus,
		"new_status": newStatus,
	})
	return nil
}

func (s *TransactionService) audit(ctx context.Context, ds repositories.Datastore, actorID *uuid.UUID, actorType, action string, entityID uuid.UUID, meta map[string]any) {
	if err := ds.Audit().Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      action,
		EntityType:  "exchange_transaction",
		EntityID:    &entityID,
		Meta:        meta,
	}); err != nil {
		s.log.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *TransactionService) publish(ctx context.Context, eventType string, t *models.ExchangeTransaction, extra map[string]any) {
	payload := map[string]any{
		"transaction_id": t.ID.String(),
		"status":         t.Status,
		"requester_id":   t.RequesterID.String(),
		"provider_id":    t.ProviderID.String(),
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.publisher.Publish(ctx, events.StreamTransactions, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *TransactionService) buildDetail(ctx context.Context, ds repositories.Datastore, t *models.ExchangeTransaction, viewerID uuid.UUID, now time.Time) (*TransactionDetail, error) {
	info, err := ds.Offers().GetOfferInfo(ctx, t.OfferType, t.OfferID)
	if err != nil {
		return nil, err
	}
	requester, err := ds.Users().Get(ctx, t.RequesterID)
	if err != nil {
		return nil, err
	}
	provider, err := ds.Users().Get(ctx, t.ProviderID)
	if err != nil {
		return nil, err
	}
	return &TransactionDetail{
		Transaction: t,
		View:        Project(t, viewerID, now),
		Offer:       info,
		Requester:   requester,
		Provider:    provider,
	}, nil
}

// requireLive fails when the transaction can no longer be negotiated:
// terminal status or an elapsed window.
func requireLive(t *models.ExchangeTransaction, now time.Time) error {
	if t.IsTerminal() {
		return apperr.Newf(apperr.CodeInvalidState, "transaction is already %s", t.Status)
	}
	if t.IsExpired(now) {
		return apperr.ErrTransactionExpired
	}
	return nil
}

func dedupeTimes(in []time.Time) []time.Time {
	out := make([]time.Time, 0, len(in))
	for _, ts := range in {
		dup := false
		for _, seen := range out {
			if seen.Equal(ts) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, ts)
		}
	}
	return out
}
