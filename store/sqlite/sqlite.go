/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store and gate.ScoreStore using SQLite. In production
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements ever touch the transactions or
  redemptions tables. The only mutable row is the per-user balance.

KEY TABLES:
  transactions:  Immutable payment records
  redemptions:   Immutable redemption records
  balances:      One mutable aggregate row per user
  user_scores:   Latest credit score per user (gate)

IDEMPOTENCY:
  A unique partial index on transactions.request_id backs the caller
  supplied request ids: a replayed insert fails at the database even if
  the service-level dedupe check was bypassed.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, a single writer at a time, better crash
  recovery.

USAGE:
  store, err := sqlite.New("./data/rewards.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definition
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/paylane/rewards-ledger/ledger"
)

// Store implements ledger.Store and gate.ScoreStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes
	// writers at the driver level.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Payment records (append-only)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		points_earned INTEGER NOT NULL,
		status TEXT NOT NULL,
		request_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON transactions(user_id, created_at DESC);

	-- Backs request-id deduplication even if the service check is bypassed.
	-- Scoped per user: distinct users may reuse the same request id.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_user_request_id
		ON transactions(user_id, request_id) WHERE request_id IS NOT NULL;

	-- Redemption records (append-only)
	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		points_cost INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_user
		ON redemptions(user_id, created_at DESC);

	-- Derived per-user aggregate (the only mutable table on the ledger path)
	CREATE TABLE IF NOT EXISTS balances (
		user_id TEXT PRIMARY KEY,
		points INTEGER NOT NULL,
		total_earned INTEGER NOT NULL,
		total_redeemed INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Latest credit score per user (access gate)
	CREATE TABLE IF NOT EXISTS user_scores (
		user_id TEXT PRIMARY KEY,
		score INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx, so the same statement
// helpers serve direct calls and transactional views.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONS (ledger.Store)
// =============================================================================

// AppendTransaction adds a payment record to the ledger.
func (s *Store) AppendTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransaction(ctx, s.db, tx)
}

func appendTransaction(ctx context.Context, q queryer, tx ledger.Transaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, user_id, payment_type, amount, points_earned, status, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.UserID,
		string(tx.Type),
		tx.Amount.String(),
		tx.PointsEarned,
		string(tx.Status),
		nullString(tx.RequestID),
		tx.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &ledger.StoreError{Op: "append transaction", Err: err}
	}
	return nil
}

// TransactionsByUser returns the user's payment history, newest first.
func (s *Store) TransactionsByUser(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionsByUser(ctx, s.db, userID)
}

func transactionsByUser(ctx context.Context, q queryer, userID string) ([]ledger.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, payment_type, amount, points_earned, status, request_id, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, &ledger.StoreError{Op: "list transactions", Err: err}
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, &ledger.StoreError{Op: "list transactions", Err: err}
	}
	return transactions, nil
}

// TransactionByRequestID returns the user's payment recorded under an
// idempotency key, or nil if none exists. Keys are scoped per user.
func (s *Store) TransactionByRequestID(ctx context.Context, userID, requestID string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionByRequestID(ctx, s.db, userID, requestID)
}

func transactionByRequestID(ctx context.Context, q queryer, userID, requestID string) (*ledger.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, payment_type, amount, points_earned, status, request_id, created_at
		FROM transactions
		WHERE user_id = ? AND request_id = ?`,
		userID, requestID,
	)
	if err != nil {
		return nil, &ledger.StoreError{Op: "lookup request id", Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, &ledger.StoreError{Op: "lookup request id", Err: err}
		}
		return nil, nil
	}
	tx, err := scanTransaction(rows)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx        ledger.Transaction
		amount    string
		requestID sql.NullString
		createdAt string
	)
	err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &amount, &tx.PointsEarned,
		&tx.Status, &requestID, &createdAt)
	if err != nil {
		return tx, &ledger.StoreError{Op: "scan transaction", Err: err}
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return tx, &ledger.StoreError{Op: "parse amount", Err: err}
	}
	tx.RequestID = requestID.String
	tx.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return tx, &ledger.StoreError{Op: "parse created_at", Err: err}
	}
	return tx, nil
}

// =============================================================================
// REDEMPTIONS (ledger.Store)
// =============================================================================

// AppendRedemption adds a redemption record.
func (s *Store) AppendRedemption(ctx context.Context, r ledger.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendRedemption(ctx, s.db, r)
}

func appendRedemption(ctx context.Context, q queryer, r ledger.Redemption) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO redemptions (id, user_id, item_id, points_cost, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.ItemID, r.PointsCost, r.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &ledger.StoreError{Op: "append redemption", Err: err}
	}
	return nil
}

// RedemptionsByUser returns the user's redemption history, newest first.
func (s *Store) RedemptionsByUser(ctx context.Context, userID string) ([]ledger.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return redemptionsByUser(ctx, s.db, userID)
}

func redemptionsByUser(ctx context.Context, q queryer, userID string) ([]ledger.Redemption, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, item_id, points_cost, created_at
		FROM redemptions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, &ledger.StoreError{Op: "list redemptions", Err: err}
	}
	defer rows.Close()

	var redemptions []ledger.Redemption
	for rows.Next() {
		var (
			r         ledger.Redemption
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.ItemID, &r.PointsCost, &createdAt); err != nil {
			return nil, &ledger.StoreError{Op: "scan redemption", Err: err}
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, &ledger.StoreError{Op: "parse created_at", Err: err}
		}
		redemptions = append(redemptions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &ledger.StoreError{Op: "list redemptions", Err: err}
	}
	return redemptions, nil
}

// =============================================================================
// BALANCES (ledger.Store)
// =============================================================================

// Balance returns the user's stored aggregate, or nil if absent.
func (s *Store) Balance(ctx context.Context, userID string) (*ledger.RewardsBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return balance(ctx, s.db, userID)
}

func balance(ctx context.Context, q queryer, userID string) (*ledger.RewardsBalance, error) {
	var (
		b         ledger.RewardsBalance
		updatedAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT user_id, points, total_earned, total_redeemed, updated_at
		FROM balances WHERE user_id = ?`,
		userID,
	).Scan(&b.UserID, &b.Points, &b.TotalEarned, &b.TotalRedeemed, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &ledger.StoreError{Op: "load balance", Err: err}
	}
	b.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, &ledger.StoreError{Op: "parse updated_at", Err: err}
	}
	return &b, nil
}

// SaveBalance creates or replaces the user's aggregate.
func (s *Store) SaveBalance(ctx context.Context, b ledger.RewardsBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBalance(ctx, s.db, b)
}

func saveBalance(ctx context.Context, q queryer, b ledger.RewardsBalance) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO balances (user_id, points, total_earned, total_redeemed, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			points = excluded.points,
			total_earned = excluded.total_earned,
			total_redeemed = excluded.total_redeemed,
			updated_at = excluded.updated_at`,
		b.UserID, b.Points, b.TotalEarned, b.TotalRedeemed,
		b.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &ledger.StoreError{Op: "save balance", Err: err}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL VIEW (ledger.Store)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &ledger.StoreError{Op: "begin transaction", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &ledger.StoreError{Op: "commit transaction", Err: err}
	}
	return nil
}

// txStore routes every operation through the open sql.Tx. The parent
// mutex is held for the duration of WithTx, so no extra locking here.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) AppendTransaction(ctx context.Context, tx ledger.Transaction) error {
	return appendTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) TransactionsByUser(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	return transactionsByUser(ctx, ts.tx, userID)
}

func (ts *txStore) TransactionByRequestID(ctx context.Context, userID, requestID string) (*ledger.Transaction, error) {
	return transactionByRequestID(ctx, ts.tx, userID, requestID)
}

func (ts *txStore) AppendRedemption(ctx context.Context, r ledger.Redemption) error {
	return appendRedemption(ctx, ts.tx, r)
}

func (ts *txStore) RedemptionsByUser(ctx context.Context, userID string) ([]ledger.Redemption, error) {
	return redemptionsByUser(ctx, ts.tx, userID)
}

func (ts *txStore) Balance(ctx context.Context, userID string) (*ledger.RewardsBalance, error) {
	return balance(ctx, ts.tx, userID)
}

func (ts *txStore) SaveBalance(ctx context.Context, b ledger.RewardsBalance) error {
	return saveBalance(ctx, ts.tx, b)
}

func (ts *txStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	// Already inside a transaction; run against the same view.
	return fn(ts)
}

// =============================================================================
// CREDIT SCORES (gate.ScoreStore)
// =============================================================================

// SaveScore records the user's latest credit score.
func (s *Store) SaveScore(ctx context.Context, userID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_scores (user_id, score, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			score = excluded.score,
			updated_at = excluded.updated_at`,
		userID, score, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &ledger.StoreError{Op: "save score", Err: err}
	}
	return nil
}

// Score returns the user's recorded credit score, with ok=false if none
// exists.
func (s *Store) Score(ctx context.Context, userID string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var score int
	err := s.db.QueryRowContext(ctx,
		"SELECT score FROM user_scores WHERE user_id = ?", userID,
	).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &ledger.StoreError{Op: "load score", Err: err}
	}
	return score, true, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
