/*
store.go - Persistence interface for the ledger

PURPOSE:
  Defines what the ledger needs from storage. Two implementations exist:
  ledger/store (in-memory, for tests and dev) and store/sqlite.

APPEND-ONLY ENFORCEMENT:
  Transactions and redemptions have no update or delete operations. The
  only mutable record is the per-user RewardsBalance, and only the Service
  writes it.

ATOMICITY:
  WithTx executes a function against a transactional view of the store.
  The Service uses it to make "append transaction + update balance" one
  atomic unit, so a payment can never be recorded without its accrual.
*/
package ledger

import "context"

// Store is the persistence boundary for the ledger.
//
// Implementations must be safe for concurrent use. Per-user serialization
// of balance read-modify-write is the Service's responsibility, not the
// store's.
type Store interface {
	// AppendTransaction durably persists a new immutable payment record.
	// It never mutates an existing record.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// TransactionsByUser returns the user's full payment history, newest
	// first. A fresh call re-reads everything; no cursor state is kept.
	TransactionsByUser(ctx context.Context, userID string) ([]Transaction, error)

	// TransactionByRequestID returns the user's transaction recorded under
	// the given idempotency key, or nil if none exists. Keys are scoped per
	// user: the same requestID from two users names two distinct payments.
	TransactionByRequestID(ctx context.Context, userID, requestID string) (*Transaction, error)

	// AppendRedemption durably persists a new immutable redemption record.
	AppendRedemption(ctx context.Context, r Redemption) error

	// RedemptionsByUser returns the user's redemption history, newest first.
	RedemptionsByUser(ctx context.Context, userID string) ([]Redemption, error)

	// Balance returns the user's stored aggregate, or nil if the user has
	// no balance yet.
	Balance(ctx context.Context, userID string) (*RewardsBalance, error)

	// SaveBalance creates or replaces the user's stored aggregate.
	SaveBalance(ctx context.Context, b RewardsBalance) error

	// WithTx executes fn against a transactional view of the store.
	// If fn returns an error, nothing it wrote is visible.
	WithTx(ctx context.Context, fn func(Store) error) error
}
