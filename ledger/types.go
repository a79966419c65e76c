/*
Package ledger implements the payment-to-rewards accrual ledger.

PURPOSE:
  This package contains the core types and logic for recording qualifying
  payments (rent, tax, utility), deriving the reward points each payment
  earns, and keeping a per-user rewards balance consistent with the
  immutable transaction history.

KEY CONCEPTS IN THIS FILE (types.go):
  - PaymentType: The closed set of qualifying payment categories
  - Transaction: An immutable record of one accepted payment
  - Redemption: An immutable record of points spent against a catalog item
  - RewardsBalance: The per-user derived aggregate (points, lifetime totals)

DESIGN PRINCIPLES:
  1. Immutability: Transactions and redemptions are never modified
  2. Precision: Uses decimal.Decimal for currency amounts
  3. Derivability: RewardsBalance is always recomputable from history
  4. Single writer: Only the Service mutates RewardsBalance

SEE ALSO:
  - policy.go: Points computation from payment amounts
  - service.go: Orchestration and per-user serialization
  - store.go: Persistence interface
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT TYPE - Closed enumeration of qualifying payments
// =============================================================================

// PaymentType identifies the category of a qualifying payment.
// The set is closed: no other values are ever accepted.
type PaymentType string

const (
	PaymentRent    PaymentType = "rent"
	PaymentTax     PaymentType = "tax"
	PaymentUtility PaymentType = "utility"
)

// Valid reports whether t is one of the accepted payment types.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentRent, PaymentTax, PaymentUtility:
		return true
	}
	return false
}

// ParsePaymentType converts a raw string into a PaymentType.
// Returns ErrInvalidType for anything outside the closed set.
func ParsePaymentType(s string) (PaymentType, error) {
	t := PaymentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// =============================================================================
// TRANSACTION - Immutable record of one accepted payment
// =============================================================================

// TransactionStatus is the lifecycle state of a transaction.
// Payments are recorded synchronously, so the only reachable state is
// completed; the field exists so pending/failed states can attach later
// without a schema change.
type TransactionStatus string

const StatusCompleted TransactionStatus = "completed"

// Transaction is one accepted payment. Once created it never changes.
//
// INVARIANT: PointsEarned == floor(Amount * 0.25), recomputed at
// write time by the Service and never trusted from a caller.
type Transaction struct {
	ID           string
	UserID       string
	Type         PaymentType
	Amount       decimal.Decimal
	PointsEarned int64
	Status       TransactionStatus

	// RequestID is an optional caller-supplied idempotency key. A replayed
	// request with the same RequestID returns the original transaction
	// instead of accruing twice.
	RequestID string

	CreatedAt time.Time
}

// =============================================================================
// REDEMPTION - Immutable record of points spent
// =============================================================================

// Redemption records points spent against a catalog item. It is the audit
// trail counterpart of a payment Transaction; the PaymentType enumeration
// stays closed, so redemptions live in their own record type.
type Redemption struct {
	ID         string
	UserID     string
	ItemID     string
	PointsCost int64
	CreatedAt  time.Time
}

// =============================================================================
// REWARDS BALANCE - Per-user derived aggregate
// =============================================================================

// RewardsBalance is the mutable per-user aggregate, created lazily on the
// first accrual. It is a cache of the transaction and redemption history:
// at any quiescent point Points == TotalEarned - TotalRedeemed, and
// TotalEarned equals the sum of PointsEarned over the user's transactions.
//
// All read-modify-write sequences are serialized per user by the Service.
type RewardsBalance struct {
	UserID        string
	Points        int64
	TotalEarned   int64
	TotalRedeemed int64
	UpdatedAt     time.Time
}

// ZeroBalance returns the default balance for a user with no history.
func ZeroBalance(userID string) RewardsBalance {
	return RewardsBalance{UserID: userID}
}

// Consistent reports whether the internal identity of the aggregate holds.
func (b RewardsBalance) Consistent() bool {
	return b.Points == b.TotalEarned-b.TotalRedeemed &&
		b.Points >= 0 && b.TotalEarned >= 0 && b.TotalRedeemed >= 0
}
