// Package store provides an in-memory ledger.Store implementation,
// used by tests and for dev servers that don't need durability.
package store

import (
	"context"
	"sync"

	"github.com/paylane/rewards-ledger/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[string][]ledger.Transaction // userID -> newest first
	redemptions  map[string][]ledger.Redemption  // userID -> newest first
	balances     map[string]ledger.RewardsBalance
	byRequestID  map[requestKey]ledger.Transaction
}

// requestKey scopes idempotency keys per user; the same request id from
// two users names two distinct payments.
type requestKey struct {
	userID    string
	requestID string
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[string][]ledger.Transaction),
		redemptions:  make(map[string][]ledger.Redemption),
		balances:     make(map[string]ledger.RewardsBalance),
		byRequestID:  make(map[requestKey]ledger.Transaction),
	}
}

// AppendTransaction adds a payment record. Append-only.
func (m *Memory) AppendTransaction(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendTransactionLocked(tx)
}

func (m *Memory) appendTransactionLocked(tx ledger.Transaction) error {
	// Newest first: reads hand the slice back without sorting.
	m.transactions[tx.UserID] = append([]ledger.Transaction{tx}, m.transactions[tx.UserID]...)
	if tx.RequestID != "" {
		m.byRequestID[requestKey{tx.UserID, tx.RequestID}] = tx
	}
	return nil
}

func (m *Memory) TransactionsByUser(_ context.Context, userID string) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transactionsLocked(userID), nil
}

func (m *Memory) transactionsLocked(userID string) []ledger.Transaction {
	result := make([]ledger.Transaction, len(m.transactions[userID]))
	copy(result, m.transactions[userID])
	return result
}

func (m *Memory) TransactionByRequestID(_ context.Context, userID, requestID string) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byRequestIDLocked(userID, requestID), nil
}

func (m *Memory) byRequestIDLocked(userID, requestID string) *ledger.Transaction {
	tx, ok := m.byRequestID[requestKey{userID, requestID}]
	if !ok {
		return nil
	}
	return &tx
}

// AppendRedemption adds a redemption record. Append-only.
func (m *Memory) AppendRedemption(_ context.Context, r ledger.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendRedemptionLocked(r)
}

func (m *Memory) appendRedemptionLocked(r ledger.Redemption) error {
	m.redemptions[r.UserID] = append([]ledger.Redemption{r}, m.redemptions[r.UserID]...)
	return nil
}

func (m *Memory) RedemptionsByUser(_ context.Context, userID string) ([]ledger.Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.redemptionsLocked(userID), nil
}

func (m *Memory) redemptionsLocked(userID string) []ledger.Redemption {
	result := make([]ledger.Redemption, len(m.redemptions[userID]))
	copy(result, m.redemptions[userID])
	return result
}

func (m *Memory) Balance(_ context.Context, userID string) (*ledger.RewardsBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceLocked(userID), nil
}

func (m *Memory) balanceLocked(userID string) *ledger.RewardsBalance {
	b, ok := m.balances[userID]
	if !ok {
		return nil
	}
	return &b
}

func (m *Memory) SaveBalance(_ context.Context, b ledger.RewardsBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveBalanceLocked(b)
}

func (m *Memory) saveBalanceLocked(b ledger.RewardsBalance) error {
	m.balances[b.UserID] = b
	return nil
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// WithTx executes fn against a transactional view. For the memory store
// this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	transactions map[string][]ledger.Transaction
	redemptions  map[string][]ledger.Redemption
	balances     map[string]ledger.RewardsBalance
	byRequestID  map[requestKey]ledger.Transaction
}

func (m *Memory) snapshot() memorySnapshot {
	txs := make(map[string][]ledger.Transaction, len(m.transactions))
	for k, v := range m.transactions {
		txs[k] = append([]ledger.Transaction{}, v...)
	}
	reds := make(map[string][]ledger.Redemption, len(m.redemptions))
	for k, v := range m.redemptions {
		reds[k] = append([]ledger.Redemption{}, v...)
	}
	bals := make(map[string]ledger.RewardsBalance, len(m.balances))
	for k, v := range m.balances {
		bals[k] = v
	}
	byReq := make(map[requestKey]ledger.Transaction, len(m.byRequestID))
	for k, v := range m.byRequestID {
		byReq[k] = v
	}
	return memorySnapshot{transactions: txs, redemptions: reds, balances: bals, byRequestID: byReq}
}

func (m *Memory) restore(s memorySnapshot) {
	m.transactions = s.transactions
	m.redemptions = s.redemptions
	m.balances = s.balances
	m.byRequestID = s.byRequestID
}

// txView routes through the locked helpers; the parent mutex is already
// held for the duration of WithTx.
type txView struct {
	parent *Memory
}

func (tv *txView) AppendTransaction(_ context.Context, tx ledger.Transaction) error {
	return tv.parent.appendTransactionLocked(tx)
}

func (tv *txView) TransactionsByUser(_ context.Context, userID string) ([]ledger.Transaction, error) {
	return tv.parent.transactionsLocked(userID), nil
}

func (tv *txView) TransactionByRequestID(_ context.Context, userID, requestID string) (*ledger.Transaction, error) {
	return tv.parent.byRequestIDLocked(userID, requestID), nil
}

func (tv *txView) AppendRedemption(_ context.Context, r ledger.Redemption) error {
	return tv.parent.appendRedemptionLocked(r)
}

func (tv *txView) RedemptionsByUser(_ context.Context, userID string) ([]ledger.Redemption, error) {
	return tv.parent.redemptionsLocked(userID), nil
}

func (tv *txView) Balance(_ context.Context, userID string) (*ledger.RewardsBalance, error) {
	return tv.parent.balanceLocked(userID), nil
}

func (tv *txView) SaveBalance(_ context.Context, b ledger.RewardsBalance) error {
	return tv.parent.saveBalanceLocked(b)
}

func (tv *txView) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	// Already inside a transaction; run against the same view.
	return fn(tv)
}
