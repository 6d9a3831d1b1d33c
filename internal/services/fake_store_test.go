package services

import (
	"context"
	"time"

	"github.com/bookcircle/backend/internal/apperr"
	"github.com/bookcircle/backend/internal/events"
	"github.com/bookcircle/backend/internal/models"
	"github.com/bookcircle/backend/internal/offers"
	"github.com/bookcircle/backend/internal/repositories"
	"github.com/google/uuid"
)

// fakeStore is an in-memory Datastore. WithinTx snapshots the state and
// restores it when fn fails, so rollback semantics hold in tests.
type fakeStore struct {
	transactions map[uuid.UUID]*models.ExchangeTransaction
	users        map[uuid.UUID]*models.User
	offerInfos   map[uuid.UUID]*offers.Info
	snapshots    map[uuid.UUID]*models.TransactionView
	reservations map[uuid.UUID]uuid.UUID
	released     map[uuid.UUID]bool
	auditLog     []models.AuditLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		transactions: make(map[uuid.UUID]*models.ExchangeTransaction),
		users:        make(map[uuid.UUID]*models.User),
		offerInfos:   make(map[uuid.UUID]*offers.Info),
		snapshots:    make(map[uuid.UUID]*models.TransactionView),
		reservations: make(map[uuid.UUID]uuid.UUID),
		released:     make(map[uuid.UUID]bool),
	}
}

func cloneTx(t *models.ExchangeTransaction) *models.ExchangeTransaction {
	cp := *t
	cp.ProposedTimes = append([]time.Time(nil), t.ProposedTimes...)
	return &cp
}

func (f *fakeStore) snapshot() *fakeStore {
	cp := newFakeStore()
	for id, t := range f.transactions {
		cp.transactions[id] = cloneTx(t)
	}
	for id, u := range f.users {
		uc := *u
		cp.users[id] = &uc
	}
	for id, o := range f.offerInfos {
		oc := *o
		cp.offerInfos[id] = &oc
	}
	for id, v := range f.snapshots {
		if v == nil {
			cp.snapshots[id] = nil
			continue
		}
		vc := *v
		cp.snapshots[id] = &vc
	}
	for k, v := range f.reservations {
		cp.reservations[k] = v
	}
	for k, v := range f.released {
		cp.released[k] = v
	}
	cp.auditLog = append([]models.AuditLog(nil), f.auditLog...)
	return cp
}

func (f *fakeStore) restore(from *fakeStore) {
	f.transactions = from.transactions
	f.users = from.users
	f.offerInfos = from.offerInfos
	f.snapshots = from.snapshots
	f.reservations = from.reservations
	f.released = from.released
	f.auditLog = from.auditLog
}

func (f *fakeStore) WithinTx(ctx context.Context, fn func(repositories.Datastore) error) error {
	saved := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(saved)
		return err
	}
	return nil
}

func (f *fakeStore) Transactions() repositories.TransactionStore { return (*fakeTxStore)(f) }
func (f *fakeStore) Credits() repositories.CreditLedger          { return (*fakeCredits)(f) }
func (f *fakeStore) Messages() repositories.MessageBinding       { return (*fakeMessages)(f) }
func (f *fakeStore) Offers() repositories.OfferResolver          { return (*fakeOffers)(f) }
func (f *fakeStore) Users() repositories.UserDirectory           { return (*fakeUsers)(f) }
func (f *fakeStore) Audit() repositories.AuditTrail              { return (*fakeAudit)(f) }

type fakeTxStore fakeStore

func (f *fakeTxStore) Create(ctx context.Context, t *models.ExchangeTransaction) error {
	t.ID = uuid.New()
	f.transactions[t.ID] = cloneTx(t)
	return nil
}

func (f *fakeTxStore) Get(ctx context.Context, id uuid.UUID) (*models.ExchangeTransaction, error) {
	t, ok := f.transactions[id]
	if !ok {
		return nil, apperr.ErrTransactionNotFound
	}
	return cloneTx(t), nil
}

func (f *fakeTxStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeTransaction, error) {
	return f.Get(ctx, id)
}

func (f *fakeTxStore) Update(ctx context.Context, t *models.ExchangeTransaction) error {
	if _, ok := f.transactions[t.ID]; !ok {
		return apperr.ErrTransactionNotFound
	}
	f.transactions[t.ID] = cloneTx(t)
	return nil
}

func (f *fakeTxStore) FindActive(ctx context.Context, offerType string, offerID, requesterID uuid.UUID) (*models.ExchangeTransaction, error) {
	for _, t := range f.transactions {
		if t.OfferType == offerType && t.OfferID == offerID && t.RequesterID == requesterID && !t.IsTerminal() {
			return cloneTx(t), nil
		}
	}
	return nil, nil
}

func (f *fakeTxStore) ListByParticipant(ctx context.Context, userID uuid.UUID, status *string, limit int) ([]models.ExchangeTransaction, error) {
	var out []models.ExchangeTransaction
	for _, t := range f.transactions {
		if !t.IsParticipant(userID) {
			continue
		}
		if status != nil && t.Status != *status {
			continue
		}
		out = append(out, *cloneTx(t))
	}
	return out, nil
}

type fakeCredits fakeStore

func (f *fakeCredits) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	u, ok := f.users[userID]
	if !ok {
		return 0, apperr.ErrUserNotFound
	}
	return u.CreditBalance, nil
}

func (f *fakeCredits) Transfer(ctx context.Context, from, to uuid.UUID, amount int) error {
	src, ok := f.users[from]
	if !ok {
		return apperr.ErrUserNotFound
	}
	dst, ok := f.users[to]
	if !ok {
		return apperr.ErrUserNotFound
	}
	if src.CreditBalance < amount {
		return apperr.ErrInsufficientCredit
	}
	src.CreditBalance -= amount
	dst.CreditBalance += amount
	return nil
}

type fakeMessages fakeStore

func (f *fakeMessages) Create(ctx context.Context, conversationID, senderID, peerID uuid.UUID, content string) (uuid.UUID, error) {
	id := uuid.New()
	f.snapshots[id] = nil
	return id, nil
}

func (f *fakeMessages) UpdateSnapshot(ctx context.Context, messageID uuid.UUID, view *models.TransactionView) error {
	if _, ok := f.snapshots[messageID]; !ok {
		return apperr.ErrMessageNotFound
	}
	vc := *view
	f.snapshots[messageID] = &vc
	return nil
}

type fakeOffers fakeStore

func (f *fakeOffers) GetOfferInfo(ctx context.Context, offerType string, id uuid.UUID) (*offers.Info, error) {
	info, ok := f.offerInfos[id]
	if !ok {
		return nil, apperr.ErrOfferNotFound
	}
	ic := *info
	return &ic, nil
}

func (f *fakeOffers) Reserve(ctx context.Context, offerType string, id, userID uuid.UUID, until time.Time) error {
	f.reservations[id] = userID
	return nil
}

func (f *fakeOffers) Release(ctx context.Context, offerType string, id uuid.UUID) error {
	delete(f.reservations, id)
	f.released[id] = true
	return nil
}

func (f *fakeOffers) MarkUnavailable(ctx context.Context, offerType string, id uuid.UUID) error {
	if info, ok := f.offerInfos[id]; ok {
		info.IsAvailable = false
	}
	delete(f.reservations, id)
	return nil
}

type fakeUsers fakeStore

func (f *fakeUsers) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	uc := *u
	return &uc, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			uc := *u
			return &uc, nil
		}
	}
	return nil, apperr.ErrUserNotFound
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) error {
	u.ID = uuid.New()
	uc := *u
	f.users[u.ID] = &uc
	return nil
}

func (f *fakeUsers) Touch(ctx context.Context, id uuid.UUID) error { return nil }

type fakeAudit fakeStore

func (f *fakeAudit) Log(ctx context.Context, entry models.AuditLog) error {
	entry.ID = uuid.New()
	f.auditLog = append(f.auditLog, entry)
	return nil
}

func (f *fakeAudit) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, e := range f.auditLog {
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakePublisher records published events in order.
type fakePublisher struct {
	published []events.Event
}

func (p *fakePublisher) Publish(ctx context.Context, stream string, event events.Event) error {
	p.published = append(p.published, event)
	return nil
}
