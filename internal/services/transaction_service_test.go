package services

import (
	"context"
	"testing"
	"time"

	"github.com/bookcircle/backend/internal/apperr"
	"github.com/bookcircle/backend/internal/config"
	"github.com/bookcircle/backend/internal/events"
	"github.com/bookcircle/backend/internal/models"
	"github.com/bookcircle/backend/internal/offers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store     *fakeStore
	publisher *fakePublisher
	svc       *TransactionService

	requester uuid.UUID
	provider  uuid.UUID
	stranger  uuid.UUID
	offerID   uuid.UUID

	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     newFakeStore(),
		publisher: &fakePublisher{},
		requester: uuid.New(),
		provider:  uuid.New(),
		stranger:  uuid.New(),
		offerID:   uuid.New(),
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	f.store.users[f.requester] = &models.User{ID: f.requester, Email: "reader@example.com", DisplayName: "Reader", CreditBalance: 3}
	f.store.users[f.provider] = &models.User{ID: f.provider, Email: "owner@example.com", DisplayName: "Owner", CreditBalance: 0}
	f.store.users[f.stranger] = &models.User{ID: f.stranger, Email: "other@example.com", DisplayName: "Other", CreditBalance: 1}

	condition := models.ConditionGood
	f.store.offerInfos[f.offerID] = &offers.Info{
		OwnerID:        f.provider,
		IsAvailable:    true,
		Title:          "The Master and Margarita",
		Condition:      &condition,
		DisplayAddress: "Kreuzberg",
	}

	cfg := &config.Config{
		NegotiationTTL:      168 * time.Hour,
		DefaultCreditAmount: 1,
	}
	f.svc = NewTransactionService(f.store, f.publisher, cfg, zap.NewNop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) create(t *testing.T) *TransactionDetail {
	t.Helper()
	detail, err := f.svc.Create(context.Background(), f.requester, CreateTransactionInput{
		ProviderID:      f.provider,
		TransactionType: models.TransactionTypeBookExchange,
		OfferType:       models.OfferTypeBook,
		OfferID:         f.offerID,
		InitialMessage:  "Hi, I'd love to borrow this one",
	})
	require.NoError(t, err)
	return detail
}

func TestCreateTransaction(t *testing.T) {
	f := newFixture(t)

	detail := f.create(t)
	tx := detail.Transaction

	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	assert.Equal(t, f.now.Add(168*time.Hour), tx.ExpiresAt)
	assert.Equal(t, 1, tx.CreditAmount)
	assert.False(t, tx.CreditTransferred)
	assert.Equal(t, "The Master and Margarita", tx.Metadata.OfferTitle)
	assert.Equal(t, "Hi, I'd love to borrow this one", tx.Metadata.InitialMessage)

	// Offer is reserved for the requester.
	assert.Equal(t, f.requester, f.store.reservations[f.offerID])

	// Anchor message snapshot is the neutral view: no action flags.
	snap := f.store.snapshots[tx.MessageID]
	require.NotNil(t, snap)
	assert.False(t, snap.CanAccept)
	assert.False(t, snap.CanCancel)
	assert.Equal(t, models.TransactionStatusPending, snap.Status)

	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, events.EventTransactionCreated, f.publisher.published[0].Type)
}

func TestCreateTransactionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := CreateTransactionInput{
		ProviderID:      f.provider,
		TransactionType: models.TransactionTypeBookExchange,
		OfferType:       models.OfferTypeBook,
		OfferID:         f.offerID,
		InitialMessage:  "hello",
	}

	t.Run("self transaction", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.provider, base)
		assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
	})

	t.Run("unknown transaction type", func(t *testing.T) {
		in := base
		in.TransactionType = "barter"
		_, err := f.svc.Create(ctx, f.requester, in)
		assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
	})

	t.Run("missing initial message", func(t *testing.T) {
		in := base
		in.InitialMessage = ""
		_, err := f.svc.Create(ctx, f.requester, in)
		assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
	})

	t.Run("wrong provider", func(t *testing.T) {
		in := base
		in.ProviderID = f.stranger
		_, err := f.svc.Create(ctx, f.requester, in)
		assert.True(t, apperr.IsCode(err, apperr.CodeForbidden))
	})

	t.Run("unavailable offer", func(t *testing.T) {
		f.store.offerInfos[f.offerID].IsAvailable = false
		_, err := f.svc.Create(ctx, f.requester, base)
		assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
		f.store.offerInfos[f.offerID].IsAvailable = true
	})

	t.Run("duplicate active transaction", func(t *testing.T) {
		f.create(t)
		_, err := f.svc.Create(ctx, f.requester, base)
		assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
	})
}

func TestNegotiationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txID := f.create(t).Transaction.ID

	// Requester cannot accept their own request.
	_, err := f.svc.Accept(ctx, txID, f.requester)
	assert.True(t, apperr.IsCode(err, apperr.CodeForbidden))

	detail, err := f.svc.Accept(ctx, txID, f.provider)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusAccepted, detail.Transaction.Status)
	require.NotNil(t, detail.Transaction.AcceptedAt)

	// Accepting twice is an invalid state, not a silent no-op.
	_, err = f.svc.Accept(ctx, txID, f.provider)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))

	meeting := time.Date(2025, 6, 3, 18, 30, 0, 0, time.UTC)
	detail, err = f.svc.ProposeTime(ctx, txID, f.requester, meeting)
	require.NoError(t, err)
	assert.Len(t, detail.Transaction.ProposedTimes, 1)

	detail, err = f.svc.ConfirmTime(ctx, txID, f.provider, meeting, "Bergmannstr. 5, by the fountain")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusTimeConfirmed, detail.Transaction.Status)
	require.NotNil(t, detail.Transaction.ConfirmedTime)
	require.NotNil(t, detail.View.ExactAddress)

	// One-sided confirmation keeps the transaction open.
	detail, err = f.svc.ConfirmHandover(ctx, txID, f.requester, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusTimeConfirmed, detail.Transaction.Status)
	assert.True(t, detail.Transaction.RequesterConfirmedHandover)
	assert.False(t, detail.Transaction.ProviderConfirmedHandover)

	note := "great meeting"
	detail, err = f.svc.ConfirmHandover(ctx, txID, f.provider, &note)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, detail.Transaction.Status)
	assert.True(t, detail.Transaction.CreditTransferred)
	require.NotNil(t, detail.Transaction.CompletedAt)
	assert.Equal(t, &note, detail.Transaction.Metadata.ProviderNote)

	// Credit moved exactly once, offer retired.
	assert.Equal(t, 2, f.store.users[f.requester].CreditBalance)
	assert.Equal(t, 1, f.store.users[f.provider].CreditBalance)
	assert.False(t, f.store.offerInfos[f.offerID].IsAvailable)

	// Completed is terminal.
	_, err = f.svc.Cancel(ctx, txID, f.requester, nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))
}

func TestConfirmHandoverSameSideTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txID := f.create(t).Transaction.ID

	_, err := f.svc.Accept(ctx, txID, f.provider)
	require.NoError(t, err)
	_, err = f.svc.ConfirmTime(ctx, txID, f.provider, f.now.Add(24*time.Hour), "library entrance")
	require.NoError(t, err)

	_, err = f.svc.ConfirmHandover(ctx, txID, f.requester, nil)
	require.NoError(t, err)
	detail, err := f.svc.ConfirmHandover(ctx, txID, f.requester, nil)
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusTimeConfirmed, detail.Transaction.Status)
	assert.False(t, detail.Transaction.CreditTransferred)
	assert.Equal(t, 3, f.store.users[f.requester].CreditBalance)
}

func TestInsufficientCreditRollsBackCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.users[f.requester].CreditBalance = 0

	txID := f.create(t).Transaction.ID
	_, err := f.svc.Accept(ctx, txID, f.provider)
	require.NoError(t, err)
	_, err = f.svc.ConfirmTime(ctx, txID, f.provider, f.now.Add(24*time.Hour), "park bench")
	require.NoError(t, err)
	_, err = f.svc.ConfirmHandover(ctx, txID, f.requester, nil)
	require.NoError(t, err)

	_, err = f.svc.ConfirmHandover(ctx, txID, f.provider, nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeInsufficientCredit))

	// The failed completion left nothing behind: the provider's flag,
	// the status and both balances are as before the call.
	tx, err := f.svc.Get(ctx, txID, f.provider)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusTimeConfirmed, tx.Transaction.Status)
	assert.False(t, tx.Transaction.ProviderConfirmedHandover)
	assert.False(t, tx.Transaction.CreditTransferred)
	assert.Equal(t, 0, f.store.users[f.requester].CreditBalance)
	assert.Equal(t, 0, f.store.users[f.provider].CreditBalance)

	// Retry succeeds once the requester has credit again.
	f.store.users[f.requester].CreditBalance = 1
	detail, err := f.svc.ConfirmHandover(ctx, txID, f.provider, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, detail.Transaction.Status)
	assert.Equal(t, 1, f.store.users[f.provider].CreditBalance)
}

func TestProposeTimeLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txID := f.create(t).Transaction.ID

	ts := time.Date(2025, 6, 3, 18, 0, 0, 0, time.UTC)
	_, err := f.svc.ProposeTime(ctx, txID, f.requester, ts)
	require.NoError(t, err)

	// Same instant in another zone is a duplicate.
	_, err = f.svc.ProposeTime(ctx, txID, f.provider, ts.In(time.FixedZone("CEST", 2*3600)))
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	for i := 1; i < models.MaxProposedTimes; i++ {
		_, err = f.svc.ProposeTime(ctx, txID, f.requester, ts.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	_, err = f.svc.ProposeTime(ctx, txID, f.requester, ts.Add(999*time.Hour))
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestExpiryBlocksNegotiation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txID := f.create(t).Transaction.ID

	f.now = f.now.Add(169 * time.Hour)

	_, err := f.svc.Accept(ctx, txID, f.provider)
	assert.True(t, apperr.IsCode(err, apperr.CodeExpired))
	_, err = f.svc.ProposeTime(ctx, txID, f.requester, f.now.Add(time.Hour))
	assert.True(t, apperr.IsCode(err, apperr.CodeExpired))
	_, err = f.svc.Cancel(ctx, txID, f.requester, nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeExpired))

	// Rejecting a stale pending request still works.
	detail, err := f.svc.Reject(ctx, txID, f.provider, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRejected, detail.Transaction.Status)
}

func TestCancelReleasesOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txID := f.create(t).Transaction.ID

	reason := "found it elsewhere"
	detail, err := f.svc.Cancel(ctx, txID, f.requester, &reason)
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusCancelled, detail.Transaction.Status)
	assert.Equal(t, &reason, detail.Transaction.Metadata.CancellationReason)
	require.NotNil(t, detail.Transaction.Metadata.CancelledBy)
	assert.Equal(t, f.requester, *detail.Transaction.Metadata.CancelledBy)

	_, reserved := f.store.reservations[f.offerID]
	assert.False(t, reserved)
	assert.True(t, f.store.released[f.offerID])
	assert.True(t, f.store.offerInfos[f.offerID].IsAvailable)
}

func TestNonParticipantIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txID := f.create(t).Transaction.ID

	_, err := f.svc.Get(ctx, txID, f.stranger)
	assert.True(t, apperr.IsCode(err, apperr.CodeForbidden))
	_, err = f.svc.Accept(ctx, txID, f.stranger)
	assert.True(t, apperr.IsCode(err, apperr.CodeForbidden))
	_, err = f.svc.Cancel(ctx, txID, f.stranger, nil)
	assert.True(t, apperr.IsCode(err, apperr.CodeForbidden))
	_, err = f.svc.Events(ctx, txID, f.stranger)
	assert.True(t, apperr.IsCode(err, apperr.CodeForbidden))
}

func TestSnapshotFollowsEveryMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t).Transaction

	_, err := f.svc.Accept(ctx, tx.ID, f.provider)
	require.NoError(t, err)
	snap := f.store.snapshots[tx.MessageID]
	require.NotNil(t, snap)
	assert.Equal(t, models.TransactionStatusAccepted, snap.Status)

	reason := "changed my mind"
	_, err = f.svc.Cancel(ctx, tx.ID, f.provider, &reason)
	require.NoError(t, err)
	snap = f.store.snapshots[tx.MessageID]
	assert.Equal(t, models.TransactionStatusCancelled, snap.Status)
}

func TestEventsTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txID := f.create(t).Transaction.ID

	_, err := f.svc.Accept(ctx, txID, f.provider)
	require.NoError(t, err)

	trail, err := f.svc.Events(ctx, txID, f.requester)
	require.NoError(t, err)
	require.NotEmpty(t, trail)
	assert.Equal(t, "transaction_created", trail[0].Action)
}
