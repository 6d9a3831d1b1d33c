package repositories

import (
	"context"

	"github.com/bookcircle/backend/internal/offers"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBTX is the querier shared by *pgxpool.Pool and pgx.Tx, so the same
// repositories work inside and outside a storage transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements Datastore over postgres.
type Store struct {
	db   DBTX
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewStore(pool *pgxpool.Pool, log *zap.Logger) *Store {
	return &Store{db: pool, pool: pool, log: log}
}

func (s *Store) Transactions() TransactionStore { return NewTransactionRepo(s.db) }
func (s *Store) Credits() CreditLedger          { return NewCreditRepo(s.db) }
func (s *Store) Messages() MessageBinding       { return NewMessageRepo(s.db) }
func (s *Store) Users() UserDirectory           { return NewUserRepo(s.db) }
func (s *Store) Audit() AuditTrail              { return NewAuditRepo(s.db) }

func (s *Store) Offers() OfferResolver {
	return offers.NewRegistry(NewBookOfferRepo(s.db))
}

// WithinTx runs fn in one database transaction. Nested calls reuse the
// transaction already in progress.
func (s *Store) WithinTx(ctx context.Context, fn func(Datastore) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&Store{db: tx, log: s.log})
	})
}
