/*
service.go - Ledger orchestration

PURPOSE:
  The Service is the only component with write authority over the ledger.
  It validates a payment, computes its points, appends the transaction,
  and reconciles the user's rewards balance as one logical unit of work.

CONCURRENCY:
  Balance updates are read-modify-write over shared per-user state. Two
  concurrent accruals for the same user must not both read the same stale
  balance and lose one increment. The Service serializes all balance
  mutations per user with a keyed mutex; different users proceed fully in
  parallel. Inside the lock, Store.WithTx makes the transaction append and
  the balance write one atomic commit.

IDEMPOTENCY:
  recordPayment accepts an optional caller-supplied request id. A replayed
  request with the same id returns the originally recorded transaction and
  the current balance instead of accruing twice, which makes retries after
  timeouts safe.

SEE ALSO:
  - policy.go: Points computation
  - reconcile.go: Rebuilding the balance from history
  - catalog: Redeemable items consulted by Redeem
*/
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/paylane/rewards-ledger/catalog"
)

// PaymentResult is the success payload of RecordPayment.
type PaymentResult struct {
	Transaction Transaction
	Balance     RewardsBalance

	// Replayed is true when the request id matched an earlier payment and
	// no new accrual happened.
	Replayed bool
}

// Service orchestrates validation, point computation, transaction append,
// and balance reconciliation. It exclusively owns writes to Transaction
// and RewardsBalance records; everything else only reads.
type Service struct {
	store   Store
	catalog *catalog.Catalog

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewService creates a ledger service over the given store and catalog.
func NewService(store Store, cat *catalog.Catalog) *Service {
	return &Service{
		store:   store,
		catalog: cat,
		users:   make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing balance mutations for one user.
// Locks are never released from the map; the user population is bounded
// by the member base and each entry is a single mutex.
func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.users[userID]
	if !ok {
		l = &sync.Mutex{}
		s.users[userID] = l
	}
	return l
}

// =============================================================================
// RECORD PAYMENT
// =============================================================================

// RecordPayment records a qualifying payment and accrues its points.
//
// Validation errors (ErrInvalidType, ErrInvalidAmount) are returned before
// any write happens. On success the returned balance already reflects the
// accrual. requestID may be empty; when set it deduplicates retries.
func (s *Service) RecordPayment(ctx context.Context, userID string, typ PaymentType, amount decimal.Decimal, requestID string) (PaymentResult, error) {
	if !typ.Valid() {
		return PaymentResult{}, ErrInvalidType
	}
	points, err := ComputePoints(amount)
	if err != nil {
		return PaymentResult{}, err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	var result PaymentResult
	err = s.store.WithTx(ctx, func(tx Store) error {
		if requestID != "" {
			prior, err := tx.TransactionByRequestID(ctx, userID, requestID)
			if err != nil {
				return err
			}
			if prior != nil {
				balance, err := s.loadBalance(ctx, tx, userID)
				if err != nil {
					return err
				}
				result = PaymentResult{Transaction: *prior, Balance: balance, Replayed: true}
				return nil
			}
		}

		record := Transaction{
			ID:           uuid.NewString(),
			UserID:       userID,
			Type:         typ,
			Amount:       amount,
			PointsEarned: points,
			Status:       StatusCompleted,
			RequestID:    requestID,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.AppendTransaction(ctx, record); err != nil {
			return err
		}

		balance, err := s.loadBalance(ctx, tx, userID)
		if err != nil {
			return err
		}
		balance.Points += points
		balance.TotalEarned += points
		balance.UpdatedAt = record.CreatedAt
		if err := tx.SaveBalance(ctx, balance); err != nil {
			return err
		}

		result = PaymentResult{Transaction: record, Balance: balance}
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"type":    typ,
			"amount":  amount.String(),
			"error":   err.Error(),
		}).Error("payment record failed")
		return PaymentResult{}, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":        userID,
		"transaction_id": result.Transaction.ID,
		"type":           typ,
		"amount":         amount.String(),
		"points_earned":  result.Transaction.PointsEarned,
		"replayed":       result.Replayed,
	}).Info("payment recorded")
	return result, nil
}

// =============================================================================
// REDEEM
// =============================================================================

// Redeem spends points against a catalog item and returns the updated
// balance. The insufficiency check and the deduction are part of the same
// serialized step, so two concurrent redemptions cannot both pass the
// check against the same snapshot.
func (s *Service) Redeem(ctx context.Context, userID, itemID string) (RewardsBalance, error) {
	item, ok := s.catalog.Lookup(itemID)
	if !ok {
		return RewardsBalance{}, ErrUnknownItem
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	var updated RewardsBalance
	err := s.store.WithTx(ctx, func(tx Store) error {
		balance, err := s.loadBalance(ctx, tx, userID)
		if err != nil {
			return err
		}
		if item.PointsCost > balance.Points {
			return &InsufficientPointsError{
				UserID:    userID,
				Available: balance.Points,
				Required:  item.PointsCost,
			}
		}

		now := time.Now().UTC()
		redemption := Redemption{
			ID:         uuid.NewString(),
			UserID:     userID,
			ItemID:     item.ID,
			PointsCost: item.PointsCost,
			CreatedAt:  now,
		}
		if err := tx.AppendRedemption(ctx, redemption); err != nil {
			return err
		}

		balance.Points -= item.PointsCost
		balance.TotalRedeemed += item.PointsCost
		balance.UpdatedAt = now
		if err := tx.SaveBalance(ctx, balance); err != nil {
			return err
		}
		updated = balance
		return nil
	})
	if err != nil {
		return RewardsBalance{}, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"item_id":     item.ID,
		"points_cost": item.PointsCost,
		"points_left": updated.Points,
	}).Info("points redeemed")
	return updated, nil
}

// =============================================================================
// READS
// =============================================================================

// GetBalance returns the user's rewards balance, zero-valued if the user
// has no history yet.
func (s *Service) GetBalance(ctx context.Context, userID string) (RewardsBalance, error) {
	return s.loadBalance(ctx, s.store, userID)
}

// ListTransactions returns the user's payment history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]Transaction, error) {
	return s.store.TransactionsByUser(ctx, userID)
}

// ListRedemptions returns the user's redemption history, newest first.
func (s *Service) ListRedemptions(ctx context.Context, userID string) ([]Redemption, error) {
	return s.store.RedemptionsByUser(ctx, userID)
}

func (s *Service) loadBalance(ctx context.Context, store Store, userID string) (RewardsBalance, error) {
	b, err := store.Balance(ctx, userID)
	if err != nil {
		return RewardsBalance{}, err
	}
	if b == nil {
		return ZeroBalance(userID), nil
	}
	return *b, nil
}
