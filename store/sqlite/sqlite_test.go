package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paylane/rewards-ledger/ledger"
	"github.com/paylane/rewards-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func paymentTx(userID, txID string, points int64, at time.Time) ledger.Transaction {
	return ledger.Transaction{
		ID:           txID,
		UserID:       userID,
		Type:         ledger.PaymentRent,
		Amount:       decimal.NewFromInt(points * 4),
		PointsEarned: points,
		Status:       ledger.StatusCompleted,
		CreatedAt:    at,
	}
}

// =============================================================================
// TRANSACTION PERSISTENCE
// =============================================================================

func TestAppendTransaction_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	tx := ledger.Transaction{
		ID:           "tx-1",
		UserID:       "user-1",
		Type:         ledger.PaymentUtility,
		Amount:       decimal.RequireFromString("123.45"),
		PointsEarned: 30,
		Status:       ledger.StatusCompleted,
		RequestID:    "req-1",
		CreatedAt:    now,
	}
	require.NoError(t, st.AppendTransaction(ctx, tx))

	txs, err := st.TransactionsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)

	got := txs[0]
	assert.Equal(t, "tx-1", got.ID)
	assert.Equal(t, ledger.PaymentUtility, got.Type)
	assert.True(t, got.Amount.Equal(tx.Amount), "amount %s", got.Amount)
	assert.Equal(t, int64(30), got.PointsEarned)
	assert.Equal(t, "req-1", got.RequestID)
	assert.True(t, got.CreatedAt.Equal(now))
}

func TestTransactionsByUser_NewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, st.AppendTransaction(ctx, paymentTx("user-1", "tx-old", 10, base.Add(-2*time.Hour))))
	require.NoError(t, st.AppendTransaction(ctx, paymentTx("user-1", "tx-new", 10, base)))
	require.NoError(t, st.AppendTransaction(ctx, paymentTx("user-1", "tx-mid", 10, base.Add(-time.Hour))))
	require.NoError(t, st.AppendTransaction(ctx, paymentTx("user-2", "tx-other", 10, base)))

	txs, err := st.TransactionsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "tx-new", txs[0].ID)
	assert.Equal(t, "tx-mid", txs[1].ID)
	assert.Equal(t, "tx-old", txs[2].ID)
}

func TestTransactionByRequestID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tx := paymentTx("user-1", "tx-1", 25, time.Now().UTC())
	tx.RequestID = "req-1"
	require.NoError(t, st.AppendTransaction(ctx, tx))

	found, err := st.TransactionByRequestID(ctx, "user-1", "req-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "tx-1", found.ID)

	missing, err := st.TransactionByRequestID(ctx, "user-1", "req-unseen")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// The key is scoped per user: another user never sees this record.
	other, err := st.TransactionByRequestID(ctx, "user-2", "req-1")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestAppendTransaction_DuplicateRequestID_Rejected(t *testing.T) {
	// The unique index is the last line of defense under the service-level
	// dedupe; a second insert with the same request id must fail.
	st := newTestStore(t)
	ctx := context.Background()

	tx1 := paymentTx("user-1", "tx-1", 25, time.Now().UTC())
	tx1.RequestID = "req-1"
	require.NoError(t, st.AppendTransaction(ctx, tx1))

	tx2 := paymentTx("user-1", "tx-2", 25, time.Now().UTC())
	tx2.RequestID = "req-1"
	err := st.AppendTransaction(ctx, tx2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrStoreUnavailable)

	// A different user may reuse the same request id.
	tx3 := paymentTx("user-2", "tx-3", 25, time.Now().UTC())
	tx3.RequestID = "req-1"
	assert.NoError(t, st.AppendTransaction(ctx, tx3))
}

// =============================================================================
// BALANCE PERSISTENCE
// =============================================================================

func TestBalance_MissingUser_Nil(t *testing.T) {
	st := newTestStore(t)

	b, err := st.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestSaveBalance_Upsert(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, st.SaveBalance(ctx, ledger.RewardsBalance{
		UserID: "user-1", Points: 100, TotalEarned: 100, UpdatedAt: now,
	}))
	require.NoError(t, st.SaveBalance(ctx, ledger.RewardsBalance{
		UserID: "user-1", Points: 50, TotalEarned: 100, TotalRedeemed: 50, UpdatedAt: now,
	}))

	b, err := st.Balance(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, int64(50), b.Points)
	assert.Equal(t, int64(100), b.TotalEarned)
	assert.Equal(t, int64(50), b.TotalRedeemed)
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

func TestRedemptions_RoundTripNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, st.AppendRedemption(ctx, ledger.Redemption{
		ID: "rd-1", UserID: "user-1", ItemID: "amazon-25", PointsCost: 100, CreatedAt: base.Add(-time.Hour),
	}))
	require.NoError(t, st.AppendRedemption(ctx, ledger.Redemption{
		ID: "rd-2", UserID: "user-1", ItemID: "rent-discount-50", PointsCost: 200, CreatedAt: base,
	}))

	rds, err := st.RedemptionsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rds, 2)
	assert.Equal(t, "rd-2", rds[0].ID)
	assert.Equal(t, "amazon-25", rds[1].ItemID)
}

// =============================================================================
// TRANSACTIONAL WRITES
// =============================================================================

func TestWithTx_CommitsAtomically(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AppendTransaction(ctx, paymentTx("user-1", "tx-1", 25, time.Now().UTC())); err != nil {
			return err
		}
		return tx.SaveBalance(ctx, ledger.RewardsBalance{UserID: "user-1", Points: 25, TotalEarned: 25})
	})
	require.NoError(t, err)

	txs, err := st.TransactionsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	b, err := st.Balance(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, int64(25), b.Points)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A callback that appends a transaction then fails
	// WHEN: WithTx returns the error
	// THEN: Nothing from the callback is visible afterwards

	st := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AppendTransaction(ctx, paymentTx("user-1", "tx-1", 25, time.Now().UTC())); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	txs, err := st.TransactionsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, txs, "rolled-back transaction must not persist")
}

func TestWithTx_ReadsSeeUncommittedWrites(t *testing.T) {
	// The service reads the balance back inside the same transaction it
	// appends to; the tx view must observe its own writes.
	st := newTestStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AppendTransaction(ctx, paymentTx("user-1", "tx-1", 25, time.Now().UTC())); err != nil {
			return err
		}
		txs, err := tx.TransactionsByUser(ctx, "user-1")
		if err != nil {
			return err
		}
		if len(txs) != 1 {
			return errors.New("tx view must see its own append")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestTransactionsByUser_CorruptTimestamp_Surfaced(t *testing.T) {
	// GIVEN: A row whose created_at is not a parseable timestamp
	// WHEN: Reading the user's history
	// THEN: A store error, not a silent zero timestamp

	path := filepath.Join(t.TempDir(), "rewards.db")
	st, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec(`
		INSERT INTO transactions
		(id, user_id, payment_type, amount, points_earned, status, request_id, created_at)
		VALUES ('tx-bad', 'user-1', 'rent', '100', 25, 'completed', NULL, 'not-a-time')`)
	require.NoError(t, err)

	_, err = st.TransactionsByUser(context.Background(), "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrStoreUnavailable)
}

// =============================================================================
// CREDIT SCORES
// =============================================================================

func TestScores_SaveAndOverwrite(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, ok, err := st.Score(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SaveScore(ctx, "user-1", 650))
	require.NoError(t, st.SaveScore(ctx, "user-1", 720))

	score, ok, err := st.Score(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 720, score)
}
