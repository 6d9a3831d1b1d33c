package services

import (
	"time"

	"github.com/bookcircle/backend/internal/models"
	"github.com/google/uuid"
)

// Project computes the display snapshot of a transaction for one viewer
// at one instant. It is a pure function of its inputs: no storage reads,
// no writes, so the same row always projects the same view.
//
// A uuid.Nil viewer is the neutral observer used for the stored message
// snapshot; it is not a participant, so every action flag is false.
func Project(t *models.ExchangeTransaction, viewerID uuid.UUID, now time.Time) *models.TransactionView {
	isProvider := viewerID == t.ProviderID
	isParticipant := t.IsParticipant(viewerID)
	expired := t.IsExpired(now)
	canUpdate := isParticipant && t.CanBeUpdated(now)

	view := &models.TransactionView{
		TransactionID:   t.ID,
		TransactionType: t.TransactionType,
		Status:          t.Status,
		OfferType:       t.OfferType,
		OfferID:         t.OfferID,
		RequesterID:     t.RequesterID,
		ProviderID:      t.ProviderID,

		ProposedTimes: t.ProposedTimes,
		ConfirmedTime: t.ConfirmedTime,

		RequesterConfirmed: t.RequesterConfirmedHandover,
		ProviderConfirmed:  t.ProviderConfirmedHandover,

		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
		IsExpired: expired,

		CanAccept:          isProvider && t.Status == models.TransactionStatusPending && !expired,
		CanReject:          isProvider && t.Status == models.TransactionStatusPending,
		CanProposeTime:     canUpdate && (t.Status == models.TransactionStatusPending || t.Status == models.TransactionStatusAccepted),
		CanConfirmTime:     canUpdate && t.Status == models.TransactionStatusAccepted,
		CanConfirmHandover: canUpdate && t.Status == models.TransactionStatusTimeConfirmed,
		CanCancel:          canUpdate,
	}

	// The meeting address is only shown once the meeting is locked in.
	switch t.Status {
	case models.TransactionStatusTimeConfirmed, models.TransactionStatusCompleted:
		view.ExactAddress = t.ExactAddress
	}

	return view
}
